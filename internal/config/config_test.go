package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Workers != 5 {
		t.Errorf("expected default workers 5, got %d", cfg.Workers)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.Delay != 3*time.Second {
		t.Errorf("expected default retry delay 3s, got %v", cfg.Retry.Delay)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("expected default request timeout 10s, got %v", cfg.RequestTimeout)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("expected default poll interval 100ms, got %v", cfg.PollInterval)
	}
	if cfg.Resolver != ResolverFlickr {
		t.Errorf("expected default resolver flickr, got %q", cfg.Resolver)
	}
	if cfg.Ledger != "json" {
		t.Errorf("expected default ledger json, got %q", cfg.Ledger)
	}
	if cfg.Flickr.License != "1,2,3,4,5,6" {
		t.Errorf("expected default license filter, got %q", cfg.Flickr.License)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
folder: ./cats
search: kittens
count: 40
workers: 8
ledger: sqlite
poll_interval: 250ms
request_timeout: 5s
retry:
  max_retries: 4
  delay: 1s
flickr:
  api_key: abc
  api_secret: def
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Folder != "./cats" {
		t.Errorf("expected folder ./cats, got %q", cfg.Folder)
	}
	if cfg.Search != "kittens" {
		t.Errorf("expected search kittens, got %q", cfg.Search)
	}
	if cfg.Count != 40 {
		t.Errorf("expected count 40, got %d", cfg.Count)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Workers)
	}
	if cfg.Ledger != "sqlite" {
		t.Errorf("expected ledger sqlite, got %q", cfg.Ledger)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %v", cfg.PollInterval)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("expected request timeout 5s, got %v", cfg.RequestTimeout)
	}
	if cfg.Retry.MaxRetries != 4 {
		t.Errorf("expected max retries 4, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.Delay != time.Second {
		t.Errorf("expected retry delay 1s, got %v", cfg.Retry.Delay)
	}
	if cfg.Flickr.APIKey != "abc" || cfg.Flickr.APISecret != "def" {
		t.Errorf("unexpected flickr credentials %+v", cfg.Flickr)
	}

	// Unset keys keep their defaults.
	if cfg.Resolver != ResolverFlickr {
		t.Errorf("expected resolver default, got %q", cfg.Resolver)
	}
	if cfg.Flickr.License != "1,2,3,4,5,6" {
		t.Errorf("expected license default, got %q", cfg.Flickr.License)
	}
}

func TestLoadFromYAMLExplicitZeroRetries(t *testing.T) {
	path := writeConfig(t, "retry:\n  max_retries: 0\n  delay: 0s\n")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("expected max retries 0, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.Delay != 0 {
		t.Errorf("expected retry delay 0, got %v", cfg.Retry.Delay)
	}
}

func TestLoadFromYAMLBadDuration(t *testing.T) {
	path := writeConfig(t, "retry:\n  delay: soon\n")

	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PHOTOFETCH_FOLDER", "/srv/cats")
	t.Setenv("PHOTOFETCH_WORKERS", "12")
	t.Setenv("PHOTOFETCH_RETRY_MAX_RETRIES", "7")
	t.Setenv("PHOTOFETCH_RETRY_DELAY", "500ms")
	t.Setenv("PHOTOFETCH_LEDGER", "bolt")
	t.Setenv("PHOTOFETCH_FLICKR_API_KEY", "envkey")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Folder != "/srv/cats" {
		t.Errorf("expected folder /srv/cats, got %q", cfg.Folder)
	}
	if cfg.Workers != 12 {
		t.Errorf("expected workers 12, got %d", cfg.Workers)
	}
	if cfg.Retry.MaxRetries != 7 {
		t.Errorf("expected max retries 7, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.Delay != 500*time.Millisecond {
		t.Errorf("expected retry delay 500ms, got %v", cfg.Retry.Delay)
	}
	if cfg.Ledger != "bolt" {
		t.Errorf("expected ledger bolt, got %q", cfg.Ledger)
	}
	if cfg.Flickr.APIKey != "envkey" {
		t.Errorf("expected api key envkey, got %q", cfg.Flickr.APIKey)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("PHOTOFETCH_WORKERS", "many")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for non-numeric workers")
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.Folder = "./cats"
	cfg.Search = "cats"
	cfg.Flickr.APIKey = "key"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing folder", mutate: func(c *Config) { c.Folder = "" }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "negative count", mutate: func(c *Config) { c.Count = -1 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.Retry.MaxRetries = -1 }, wantErr: true},
		{name: "zero retries", mutate: func(c *Config) { c.Retry.MaxRetries = 0 }},
		{name: "negative delay", mutate: func(c *Config) { c.Retry.Delay = -time.Second }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: true},
		{name: "unknown ledger", mutate: func(c *Config) { c.Ledger = "xml" }, wantErr: true},
		{name: "unknown resolver", mutate: func(c *Config) { c.Resolver = "bing" }, wantErr: true},
		{name: "flickr without key", mutate: func(c *Config) { c.Flickr.APIKey = "" }, wantErr: true},
		{name: "flickr without search", mutate: func(c *Config) { c.Search = "" }, wantErr: true},
		{
			name: "list resolver",
			mutate: func(c *Config) {
				c.Resolver = ResolverList
				c.ListFile = "urls.txt"
				c.Flickr.APIKey = ""
				c.Search = ""
			},
		},
		{name: "list without file", mutate: func(c *Config) { c.Resolver = ResolverList }, wantErr: true},
		{name: "padded pattern", mutate: func(c *Config) { c.FilePattern = "cat_%03d" }},
		{name: "pattern with literal percent", mutate: func(c *Config) { c.FilePattern = "100%%_%d" }},
		{name: "pattern without verb", mutate: func(c *Config) { c.FilePattern = "image" }, wantErr: true},
		{name: "pattern with two verbs", mutate: func(c *Config) { c.FilePattern = "image_%d_%d" }, wantErr: true},
		{name: "pattern with string verb", mutate: func(c *Config) { c.FilePattern = "image_%s" }, wantErr: true},
		{name: "pattern ends in percent", mutate: func(c *Config) { c.FilePattern = "image_%d%" }, wantErr: true},
		{name: "pattern with directory", mutate: func(c *Config) { c.FilePattern = "sub/image_%d" }, wantErr: true},
		{name: "empty pattern", mutate: func(c *Config) { c.FilePattern = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := validConfig()
	base.Workers = 8

	override := Config{
		Workers: 32,
		Search:  "dogs",
		Retry:   RetryConfig{Delay: time.Second},
	}

	merged := base.Merge(override)

	if merged.Folder != "./cats" {
		t.Errorf("expected folder preserved, got %q", merged.Folder)
	}
	if merged.Retry.MaxRetries != 3 {
		t.Errorf("expected max retries preserved, got %d", merged.Retry.MaxRetries)
	}
	if merged.Workers != 32 {
		t.Errorf("expected workers overridden to 32, got %d", merged.Workers)
	}
	if merged.Search != "dogs" {
		t.Errorf("expected search overridden, got %q", merged.Search)
	}
	if merged.Retry.Delay != time.Second {
		t.Errorf("expected delay overridden to 1s, got %v", merged.Retry.Delay)
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := LoadFromFile(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
