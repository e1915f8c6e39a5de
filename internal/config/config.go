// Package config loads blueprint.yaml. Values may reference environment
// variables (${OPENAI_API_KEY}); BLUEPRINT_* variables override the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/provider"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "blueprint.yaml"

// Config is the application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`
	Publish  PublishConfig  `yaml:"publish"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
}

// ProviderConfig selects the AI provider used by `export --ai`.
type ProviderConfig struct {
	Name              string        `yaml:"name"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Settings converts c for provider.New.
func (c ProviderConfig) Settings() provider.Settings {
	return provider.Settings{
		Name:    c.Name,
		APIKey:  c.APIKey,
		Model:   c.Model,
		BaseURL: c.BaseURL,
		Timeout: c.Timeout,
	}
}

// CacheConfig controls the AI response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

// ServerConfig configures `blueprint serve`.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PublishConfig lists optional archive destinations.
type PublishConfig struct {
	OCI         OCIConfig         `yaml:"oci"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
}

// OCIConfig pushes archives to a registry when Reference is set.
type OCIConfig struct {
	Reference string `yaml:"reference"`
	Insecure  bool   `yaml:"insecure"`
}

// ObjectStoreConfig uploads archives to an S3-compatible bucket when Endpoint is set.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// EventsConfig publishes progress events to NATS when URL is set.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig sets the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Logger builds a logger from c.
func (c LogConfig) Logger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.Level)
	cfg.Format = log.ParseFormat(c.Format)
	return log.New(cfg)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:    provider.NameOpenAI,
			Model:   "gpt-4o-mini",
			Timeout: 120 * time.Second,
		},
		Cache: CacheConfig{Enabled: true, Size: 256},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Events: EventsConfig{SubjectPrefix: "blueprint.export"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// LoadDotEnv loads .env files into the environment. Missing files are
// ignored and existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads path over the defaults, applies environment overrides, and
// validates the result. A missing file is not an error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, berrors.Wrap(berrors.ErrCodeConfigInvalid, fmt.Sprintf("failed to parse %s", path), err)
		}
	case errors.Is(err, fs.ErrNotExist) && optional:
	case errors.Is(err, fs.ErrNotExist):
		return nil, berrors.NewFileNotFoundError(path)
	default:
		return nil, berrors.Wrap(berrors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BLUEPRINT_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("BLUEPRINT_PROVIDER", &c.Provider.Name)
	str("BLUEPRINT_API_KEY", &c.Provider.APIKey)
	str("BLUEPRINT_MODEL", &c.Provider.Model)
	str("BLUEPRINT_BASE_URL", &c.Provider.BaseURL)
	str("BLUEPRINT_ADDR", &c.Server.Addr)
	str("BLUEPRINT_NATS_URL", &c.Events.NATSURL)
	str("BLUEPRINT_LOG_LEVEL", &c.Log.Level)
	str("BLUEPRINT_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("BLUEPRINT_RPS"); ok && strings.TrimSpace(v) != "" {
		rps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return berrors.NewConfigInvalidError(fmt.Sprintf("BLUEPRINT_RPS: %q is not a number", v))
		}
		c.Provider.RequestsPerSecond = rps
	}
	return nil
}

// Validate reports every invalid field in one CONFIG-001 error.
func (c *Config) Validate() error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if !slices.Contains(provider.Names(), strings.ToLower(c.Provider.Name)) {
		add("provider.name %q is not one of %s", c.Provider.Name, strings.Join(provider.Names(), ", "))
	}
	if c.Provider.RequestsPerSecond < 0 {
		add("provider.requests_per_second must not be negative")
	}
	if c.Provider.Timeout <= 0 {
		add("provider.timeout must be positive")
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		add("cache.size must be positive when the cache is enabled")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		add("server timeouts must be positive")
	}
	if store := c.Publish.ObjectStore; store.Endpoint != "" && store.Bucket == "" {
		add("publish.object_store.bucket is required when an endpoint is set")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.Log.Level)) {
		add("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if !slices.Contains([]string{"json", "text"}, strings.ToLower(c.Log.Format)) {
		add("log.format %q is not one of json, text", c.Log.Format)
	}

	if len(issues) > 0 {
		return berrors.NewConfigInvalidError(strings.Join(issues, "; "))
	}
	return nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return berrors.NewFileWriteError(path, err)
	}
	return nil
}
