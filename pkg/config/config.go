// Package config loads the vestel-tv configuration file.
//
// Config file locations (priority order):
//  1. $VESTEL_TV_CONFIG
//  2. ./vestel-tv.yaml
//  3. $XDG_CONFIG_HOME/vestel-tv/config.yaml
//  4. ~/.config/vestel-tv/config.yaml
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/dial"
)

// Validation errors.
var (
	ErrInvalidLogLevel   = errors.New("invalid log level")
	ErrInvalidDropPolicy = errors.New("invalid drop policy")
	ErrDuplicateDevice   = errors.New("duplicate device")
)

// Config is the configuration file.
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Discovery DiscoveryConfig  `yaml:"discovery"`
	Dial      DialConfig       `yaml:"dial"`
	Trace     TraceConfig      `yaml:"trace"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	OTel      OTelConfig       `yaml:"otel"`
	Cache     CacheConfig      `yaml:"cache"`
	Devices   []device.Context `yaml:"devices,omitempty"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
}

// DiscoveryConfig configures SSDP discovery.
type DiscoveryConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Interface string        `yaml:"interface,omitempty"`
	Attempts  int           `yaml:"attempts"`
	MX        int           `yaml:"mx"`

	// DialFromApplicationURL enables DIAL for televisions that advertise an
	// Application-URL header.
	DialFromApplicationURL bool `yaml:"dial_from_application_url,omitempty"`
}

// DialConfig configures the DIAL client.
type DialConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	QueueSize        int           `yaml:"queue_size"`
	DropPolicy       string        `yaml:"drop_policy"`
	LegacyFirstProbe bool          `yaml:"legacy_first_probe,omitempty"`
}

// TraceConfig configures the protocol trace file.
type TraceConfig struct {
	// File is the CBOR trace output. Empty disables tracing.
	File string `yaml:"file,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen,omitempty"`
}

// OTelConfig configures OpenTelemetry tracing.
type OTelConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CacheConfig configures the discovered-device cache.
type CacheConfig struct {
	// File is the cache location. Empty selects the per-user cache directory.
	File string `yaml:"file,omitempty"`

	// Disabled turns the cache off.
	Disabled bool `yaml:"disabled,omitempty"`

	// MaxAge drops entries not seen by discovery for this long.
	MaxAge time.Duration `yaml:"max_age"`
}

// Load finds and loads the config file, or returns defaults if none is found.
// The returned path is empty when defaults are used.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads and validates the config file at path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, path, nil
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Discovery.Timeout <= 0 {
		c.Discovery.Timeout = 5 * time.Second
	}
	if c.Discovery.Attempts <= 0 {
		c.Discovery.Attempts = 2
	}
	if c.Discovery.MX <= 0 {
		c.Discovery.MX = 2
	}
	if c.Dial.Timeout <= 0 {
		c.Dial.Timeout = dial.DefaultHTTPTimeout
	}
	if c.Dial.QueueSize <= 0 {
		c.Dial.QueueSize = dial.DefaultQueueSize
	}
	if c.Dial.DropPolicy == "" {
		c.Dial.DropPolicy = "oldest"
	}
	if c.Cache.MaxAge <= 0 {
		c.Cache.MaxAge = 30 * 24 * time.Hour
	}
	for i := range c.Devices {
		c.Devices[i] = c.Devices[i].WithDefaults()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.DropPolicy(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
		if seen[d.UUID] {
			return fmt.Errorf("%w: %s", ErrDuplicateDevice, d.UUID)
		}
		seen[d.UUID] = true
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := ParseLogLevel(c.Log.Level)
	return level
}

// DropPolicy returns the configured SmartCenter queue drop policy.
func (c *Config) DropPolicy() (dial.DropPolicy, error) {
	switch strings.ToLower(c.Dial.DropPolicy) {
	case "", "oldest":
		return dial.DropOldest, nil
	case "newest":
		return dial.DropNewest, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDropPolicy, c.Dial.DropPolicy)
	}
}

// Device returns the configured device whose UUID or display name matches
// key, case-insensitively.
func (c *Config) Device(key string) (device.Context, bool) {
	for _, d := range c.Devices {
		if strings.EqualFold(d.UUID, key) || (d.DisplayName != "" && strings.EqualFold(d.DisplayName, key)) {
			return d, true
		}
	}
	return device.Context{}, false
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
}
