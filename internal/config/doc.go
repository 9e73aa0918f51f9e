// Package config defines configuration structures for the photofetch CLI.
//
// Configuration can be provided via, in increasing precedence:
//   - YAML configuration file
//   - Environment variables (PHOTOFETCH_ prefix)
//   - Command-line flags
//
// # Structure
//
//	type Config struct {
//	    Folder         string
//	    Search         string
//	    Count          int
//	    Workers        int
//	    Resolver       string // flickr | list
//	    ListFile       string
//	    Ledger         string // json | bolt | sqlite
//	    FilePattern    string
//	    PollInterval   time.Duration
//	    RequestTimeout time.Duration
//	    UserAgent      string
//	    Retry          RetryConfig
//	    Flickr         FlickrConfig
//	}
//
//	type RetryConfig struct {
//	    MaxRetries int
//	    Delay      time.Duration
//	}
package config
