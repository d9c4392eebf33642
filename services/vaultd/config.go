package vaultd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for vaultd.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	DataDir       string          `yaml:"data_dir"`
	GenesisPath   string          `yaml:"genesis"`
	Environment   string          `yaml:"env"`
	Audit         AuditConfig     `yaml:"audit"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Admin         AdminConfig     `yaml:"admin"`
	Log           LogConfig       `yaml:"log"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Timeouts      TimeoutConfig   `yaml:"timeouts"`
}

// AuditConfig selects the audit event store.
type AuditConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures principal authentication on the public API.
type AuthConfig struct {
	HMACSecret     string   `yaml:"hmac_secret"`
	HMACSecretFile string   `yaml:"hmac_secret_file"`
	Issuer         string   `yaml:"issuer"`
	Audience       string   `yaml:"audience"`
	ClockSkew      Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds requests per principal, or per client address
// before authentication.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// AdminConfig captures security settings for the admin API.
type AdminConfig struct {
	ListenAddress   string `yaml:"listen"`
	BearerToken     string `yaml:"bearer_token"`
	BearerTokenFile string `yaml:"bearer_token_file"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	Metrics     bool    `yaml:"metrics"`
	Traces      bool    `yaml:"traces"`
	SampleRatio float64 `yaml:"sample_ratio"`
	Gzip        bool    `yaml:"gzip"`
	// Timeout bounds one export call; PushInterval paces metric exports.
	Timeout      Duration `yaml:"timeout"`
	PushInterval Duration `yaml:"push_interval"`
}

// TimeoutConfig bounds HTTP server phases.
type TimeoutConfig struct {
	Read     Duration `yaml:"read"`
	Write    Duration `yaml:"write"`
	Idle     Duration `yaml:"idle"`
	Shutdown Duration `yaml:"shutdown"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Admin.normalise(); err != nil {
		return cfg, fmt.Errorf("admin security: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = "127.0.0.1:7091"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data/vaultd"
	}
	if cfg.GenesisPath == "" {
		cfg.GenesisPath = "config/genesis.toml"
	}
	cfg.Audit.Driver = strings.ToLower(strings.TrimSpace(cfg.Audit.Driver))
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = "sqlite"
	}
	if cfg.Audit.DSN == "" && cfg.Audit.Driver == "sqlite" {
		cfg.Audit.DSN = "file:vaultd-audit.db?_pragma=journal_mode(WAL)"
	}
	if cfg.Auth.ClockSkew.Duration <= 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 28
	}
	if cfg.Timeouts.Read.Duration <= 0 {
		cfg.Timeouts.Read.Duration = 15 * time.Second
	}
	if cfg.Timeouts.Write.Duration <= 0 {
		cfg.Timeouts.Write.Duration = 30 * time.Second
	}
	if cfg.Timeouts.Idle.Duration <= 0 {
		cfg.Timeouts.Idle.Duration = 60 * time.Second
	}
	if cfg.Timeouts.Shutdown.Duration <= 0 {
		cfg.Timeouts.Shutdown.Duration = 10 * time.Second
	}
}

func validateConfig(cfg Config) error {
	switch cfg.Audit.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("audit driver %q must be sqlite or postgres", cfg.Audit.Driver)
	}
	if strings.TrimSpace(cfg.Audit.DSN) == "" {
		return fmt.Errorf("audit dsn must be configured")
	}
	if len(cfg.Auth.HMACSecret) < 32 {
		return fmt.Errorf("auth hmac_secret must be at least 32 bytes")
	}
	if cfg.Admin.BearerToken == "" {
		return fmt.Errorf("admin bearer_token must be configured")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample_ratio must be within [0,1]")
	}
	return nil
}

func readSecret(inline, path, field string) (string, error) {
	value := strings.TrimSpace(inline)
	if path = strings.TrimSpace(path); path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", field, err)
		}
		value = strings.TrimSpace(string(contents))
	}
	return value, nil
}

func (a *AuthConfig) normalise() error {
	secret, err := readSecret(a.HMACSecret, a.HMACSecretFile, "hmac_secret_file")
	if err != nil {
		return err
	}
	a.HMACSecret = secret
	a.Issuer = strings.TrimSpace(a.Issuer)
	a.Audience = strings.TrimSpace(a.Audience)
	return nil
}

func (a *AdminConfig) normalise() error {
	token, err := readSecret(a.BearerToken, a.BearerTokenFile, "bearer_token_file")
	if err != nil {
		return err
	}
	a.BearerToken = token
	return nil
}
