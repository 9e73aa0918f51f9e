package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ligustah/photofetch/pkg/ledger"
)

// Resolver names.
const (
	ResolverFlickr = "flickr"
	ResolverList   = "list"
)

// DefaultUserAgent is a browser-like agent; some image hosts refuse Go's.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// Config defines configuration for the photofetch CLI.
type Config struct {
	Folder         string        `yaml:"folder"`
	Search         string        `yaml:"search"`
	Count          int           `yaml:"count"`
	Workers        int           `yaml:"workers"`
	Resolver       string        `yaml:"resolver"`
	ListFile       string        `yaml:"list_file"`
	Ledger         string        `yaml:"ledger"`
	FilePattern    string        `yaml:"file_pattern"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
	Retry          RetryConfig   `yaml:"retry"`
	Flickr         FlickrConfig  `yaml:"flickr"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	// MaxRetries is the total number of attempts per image.
	MaxRetries int           `yaml:"max_retries"`
	Delay      time.Duration `yaml:"delay"`
}

// FlickrConfig holds Flickr API credentials and the license filter.
type FlickrConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	License   string `yaml:"license"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Count:          20,
		Workers:        5,
		Resolver:       ResolverFlickr,
		Ledger:         string(ledger.JSON),
		FilePattern:    "image_%d",
		PollInterval:   100 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		UserAgent:      DefaultUserAgent,
		Retry: RetryConfig{
			MaxRetries: 3,
			Delay:      3 * time.Second,
		},
		Flickr: FlickrConfig{
			License: "1,2,3,4,5,6",
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Folder         string           `yaml:"folder"`
	Search         string           `yaml:"search"`
	Count          int              `yaml:"count"`
	Workers        int              `yaml:"workers"`
	Resolver       string           `yaml:"resolver"`
	ListFile       string           `yaml:"list_file"`
	Ledger         string           `yaml:"ledger"`
	FilePattern    string           `yaml:"file_pattern"`
	PollInterval   string           `yaml:"poll_interval"`
	RequestTimeout string           `yaml:"request_timeout"`
	UserAgent      string           `yaml:"user_agent"`
	Retry          yamlRetryConfig  `yaml:"retry"`
	Flickr         yamlFlickrConfig `yaml:"flickr"`
}

type yamlRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	Delay      string `yaml:"delay"`
}

type yamlFlickrConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	License   string `yaml:"license"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	setString(&cfg.Folder, yc.Folder)
	setString(&cfg.Search, yc.Search)
	setString(&cfg.Resolver, yc.Resolver)
	setString(&cfg.ListFile, yc.ListFile)
	setString(&cfg.Ledger, yc.Ledger)
	setString(&cfg.FilePattern, yc.FilePattern)
	setString(&cfg.UserAgent, yc.UserAgent)
	setString(&cfg.Flickr.APIKey, yc.Flickr.APIKey)
	setString(&cfg.Flickr.APISecret, yc.Flickr.APISecret)
	setString(&cfg.Flickr.License, yc.Flickr.License)
	if yc.Count != 0 {
		cfg.Count = yc.Count
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *yc.Retry.MaxRetries
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"poll_interval", yc.PollInterval, &cfg.PollInterval},
		{"request_timeout", yc.RequestTimeout, &cfg.RequestTimeout},
		{"retry.delay", yc.Retry.Delay, &cfg.Retry.Delay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the PHOTOFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"PHOTOFETCH_FOLDER":            &c.Folder,
		"PHOTOFETCH_SEARCH":            &c.Search,
		"PHOTOFETCH_RESOLVER":          &c.Resolver,
		"PHOTOFETCH_LIST_FILE":         &c.ListFile,
		"PHOTOFETCH_LEDGER":            &c.Ledger,
		"PHOTOFETCH_FILE_PATTERN":      &c.FilePattern,
		"PHOTOFETCH_USER_AGENT":        &c.UserAgent,
		"PHOTOFETCH_FLICKR_API_KEY":    &c.Flickr.APIKey,
		"PHOTOFETCH_FLICKR_API_SECRET": &c.Flickr.APISecret,
		"PHOTOFETCH_FLICKR_LICENSE":    &c.Flickr.License,
	}
	for name, dst := range strs {
		setString(dst, os.Getenv(name))
	}

	ints := map[string]*int{
		"PHOTOFETCH_COUNT":             &c.Count,
		"PHOTOFETCH_WORKERS":           &c.Workers,
		"PHOTOFETCH_RETRY_MAX_RETRIES": &c.Retry.MaxRetries,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"PHOTOFETCH_POLL_INTERVAL":   &c.PollInterval,
		"PHOTOFETCH_REQUEST_TIMEOUT": &c.RequestTimeout,
		"PHOTOFETCH_RETRY_DELAY":     &c.Retry.Delay,
	}
	for name, dst := range durations {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Folder == "" {
		return errors.New("config: folder is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Count <= 0 {
		return errors.New("config: count must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return errors.New("config: retry.max_retries must not be negative")
	}
	if c.Retry.Delay < 0 {
		return errors.New("config: retry.delay must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request_timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll_interval must be positive")
	}
	if _, err := ledger.ParseBackend(c.Ledger); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := checkFilePattern(c.FilePattern); err != nil {
		return fmt.Errorf("config: file_pattern %q: %w", c.FilePattern, err)
	}

	switch c.Resolver {
	case ResolverFlickr:
		if c.Search == "" {
			return errors.New("config: search is required for the flickr resolver")
		}
		if c.Flickr.APIKey == "" {
			return errors.New("config: flickr.api_key is required for the flickr resolver")
		}
	case ResolverList:
		if c.ListFile == "" {
			return errors.New("config: list_file is required for the list resolver")
		}
	default:
		return fmt.Errorf("config: unknown resolver %q", c.Resolver)
	}
	return nil
}

// checkFilePattern accepts a fmt pattern with exactly one integer verb, such
// as image_%d or cat_%03d, that stays inside the folder.
func checkFilePattern(pattern string) error {
	if pattern == "" {
		return errors.New("must not be empty")
	}
	if strings.ContainsAny(pattern, `/\`) {
		return errors.New("must not contain a path separator")
	}

	verbs := 0
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' {
			continue
		}
		i++
		for i < len(pattern) && strings.IndexByte("+-# 0123456789.", pattern[i]) >= 0 {
			i++
		}
		if i == len(pattern) {
			return errors.New("ends inside a verb")
		}
		switch pattern[i] {
		case '%':
		case 'd', 'x', 'X', 'o', 'b':
			verbs++
		default:
			return fmt.Errorf("verb %%%c does not format an integer", pattern[i])
		}
	}
	if verbs != 1 {
		return fmt.Errorf("needs exactly one integer verb, found %d", verbs)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	setString(&c.Folder, override.Folder)
	setString(&c.Search, override.Search)
	setString(&c.Resolver, override.Resolver)
	setString(&c.ListFile, override.ListFile)
	setString(&c.Ledger, override.Ledger)
	setString(&c.FilePattern, override.FilePattern)
	setString(&c.UserAgent, override.UserAgent)
	setString(&c.Flickr.APIKey, override.Flickr.APIKey)
	setString(&c.Flickr.APISecret, override.Flickr.APISecret)
	setString(&c.Flickr.License, override.Flickr.License)
	if override.Count != 0 {
		c.Count = override.Count
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.PollInterval != 0 {
		c.PollInterval = override.PollInterval
	}
	if override.RequestTimeout != 0 {
		c.RequestTimeout = override.RequestTimeout
	}
	if override.Retry.MaxRetries != 0 {
		c.Retry.MaxRetries = override.Retry.MaxRetries
	}
	if override.Retry.Delay != 0 {
		c.Retry.Delay = override.Retry.Delay
	}
	return c
}
