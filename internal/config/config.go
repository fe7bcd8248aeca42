package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/flagstream-dev/flagstream/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "flagstream.json"

	// DefaultAddr is the default flag service listen address.
	DefaultAddr = ":8099"

	// DefaultHeartbeat is the default live feed ping interval.
	DefaultHeartbeat = "30s"

	// DefaultReadTimeout is the default live feed read deadline.
	DefaultReadTimeout = "60s"

	// DefaultWriteTimeout is the default live feed write deadline.
	DefaultWriteTimeout = "10s"

	// DefaultArchivePrefix is the default S3 key prefix for snapshots.
	DefaultArchivePrefix = "flags/"

	// DefaultArchiveDebounce is the default archive debounce window.
	DefaultArchiveDebounce = "2s"
)

// Config represents the complete flagstream.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Disabled puts the flag layer in degraded mode: accessors see an
	// empty mapping, mutations are dropped, and nothing subscribes.
	Disabled bool `json:"disabled,omitempty"`

	// Flags is the initial flag mapping loaded into the store.
	Flags map[string]any `json:"flags,omitempty"`

	// Service contains flag service settings.
	Service ServiceConfig `json:"service,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Archive contains S3 snapshot archive settings.
	Archive ArchiveConfig `json:"archive,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServiceConfig contains flag service settings.
type ServiceConfig struct {
	// Addr is the listen address (e.g., ":8099").
	Addr string `json:"addr,omitempty"`

	// Heartbeat is the live feed ping interval (e.g., "30s").
	Heartbeat string `json:"heartbeat,omitempty"`

	// ReadTimeout is the live feed read deadline (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// WriteTimeout is the live feed write deadline (e.g., "10s").
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// SendBuffer is the per-client outbound event queue size.
	SendBuffer int `json:"sendBuffer,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default "flagstream").
	Namespace string `json:"namespace,omitempty"`

	// Subsystem is the metrics subsystem.
	Subsystem string `json:"subsystem,omitempty"`
}

// ArchiveConfig contains S3 snapshot archive settings.
type ArchiveConfig struct {
	// Bucket is the target S3 bucket. Archiving is off when empty.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the key prefix for snapshot objects.
	Prefix string `json:"prefix,omitempty"`

	// Debounce is how long to wait after the last mutation before
	// uploading (e.g., "2s").
	Debounce string `json:"debounce,omitempty"`

	// Retention is how long snapshots are kept before pruning
	// (e.g., "720h"). Zero disables pruning.
	Retention string `json:"retention,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Service: ServiceConfig{
			Addr:         DefaultAddr,
			Heartbeat:    DefaultHeartbeat,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Archive: ArchiveConfig{
			Prefix:   DefaultArchivePrefix,
			Debounce: DefaultArchiveDebounce,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for flagstream.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No flagstream.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'flagstream init' to create one")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse flagstream.json: " + err.Error()).
			WithSuggestion("Check that flagstream.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Service.Addr == "" {
		c.Service.Addr = DefaultAddr
	}
	if c.Service.Heartbeat == "" {
		c.Service.Heartbeat = DefaultHeartbeat
	}
	if c.Service.ReadTimeout == "" {
		c.Service.ReadTimeout = DefaultReadTimeout
	}
	if c.Service.WriteTimeout == "" {
		c.Service.WriteTimeout = DefaultWriteTimeout
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = DefaultArchivePrefix
	}
	if c.Archive.Debounce == "" {
		c.Archive.Debounce = DefaultArchiveDebounce
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Service.SendBuffer < 0 {
		return errors.New("E103").
			WithDetail("service.sendBuffer must not be negative")
	}

	for field, value := range map[string]string{
		"service.heartbeat":    c.Service.Heartbeat,
		"service.readTimeout":  c.Service.ReadTimeout,
		"service.writeTimeout": c.Service.WriteTimeout,
		"archive.debounce":     c.Archive.Debounce,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return errors.New("E104").
				WithDetail(field + " holds " + value)
		}
	}

	if c.Archive.Retention != "" {
		if _, err := time.ParseDuration(c.Archive.Retention); err != nil {
			return errors.New("E104").
				WithDetail("archive.retention holds " + c.Archive.Retention)
		}
	}

	return nil
}

// HeartbeatInterval returns the parsed live feed ping interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return mustDuration(c.Service.Heartbeat, DefaultHeartbeat)
}

// ReadTimeout returns the parsed live feed read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return mustDuration(c.Service.ReadTimeout, DefaultReadTimeout)
}

// WriteTimeout returns the parsed live feed write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return mustDuration(c.Service.WriteTimeout, DefaultWriteTimeout)
}

// ArchiveDebounce returns the parsed archive debounce window.
func (c *Config) ArchiveDebounce() time.Duration {
	return mustDuration(c.Archive.Debounce, DefaultArchiveDebounce)
}

// ArchiveRetention returns the parsed archive retention, or zero when
// pruning is disabled.
func (c *Config) ArchiveRetention() time.Duration {
	if c.Archive.Retention == "" {
		return 0
	}
	return mustDuration(c.Archive.Retention, "0s")
}

// HasArchive reports whether snapshot archiving is configured.
func (c *Config) HasArchive() bool {
	return c.Archive.Bucket != ""
}

// mustDuration parses a duration that Validate already checked.
func mustDuration(value, fallback string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing flagstream.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("No flagstream.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'flagstream init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
