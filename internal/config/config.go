// Package config provides configuration management for the monitoring engine.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, REDIS_URL)
// 3. Default values
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Integration IntegrationConfig `mapstructure:"integration"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Poll        PollConfig        `mapstructure:"poll"`
	Log         LogConfig         `mapstructure:"log"`
	Ops         OpsConfig         `mapstructure:"ops"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// RedisConfig contains LockService and ticket registry connection settings.
type RedisConfig struct {
	URL string `mapstructure:"url"`

	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntegrationConfig controls adapter mode.
// In the current phase MockMode MUST be true; startup aborts otherwise.
type IntegrationConfig struct {
	MockMode   bool   `mapstructure:"mock_mode"`
	FixtureDir string `mapstructure:"fixture_dir"`
}

// VaultConfig holds credential encryption keys. Current is mandatory
// (64 hex chars = 32 bytes); Previous is tried only when Current fails,
// to support rotation.
type VaultConfig struct {
	MasterKeyCurrent  string `mapstructure:"master_key_current"`
	MasterKeyPrevious string `mapstructure:"master_key_previous"`
}

// PollConfig contains scheduler and pipeline timing settings.
type PollConfig struct {
	IntervalSeconds              int `mapstructure:"interval_seconds"`
	JobTimeoutSeconds            int `mapstructure:"job_timeout_seconds"`
	AdapterRequestTimeoutSeconds int `mapstructure:"adapter_request_timeout_seconds"`
	DrainTimeoutSeconds          int `mapstructure:"drain_timeout_seconds"`
}

// Interval returns the scheduler period P.
func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// JobTimeout returns the per-job total budget.
func (c PollConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// AdapterRequestTimeout returns the per adapter call timeout.
func (c PollConfig) AdapterRequestTimeout() time.Duration {
	return time.Duration(c.AdapterRequestTimeoutSeconds) * time.Second
}

// DrainTimeout returns the shutdown queue drain deadline.
func (c PollConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

// LockTTL is 2×P so a crashed executor's lock expires within two scheduling
// intervals without operator action.
func (c PollConfig) LockTTL() time.Duration {
	return 2 * c.Interval()
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// OpsConfig contains the operational HTTP server settings.
type OpsConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/solarinvest-monitor")

	// Environment variable override, no prefix: DATABASE_URL, REDIS_URL, …
	// Nested config maps via replacer: database.max_conns → DATABASE_MAX_CONNS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat well-known names that do not follow the section_key pattern.
	bindings := map[string]string{
		"vault.master_key_current":             "MASTER_KEY_CURRENT",
		"vault.master_key_previous":            "MASTER_KEY_PREVIOUS",
		"poll.interval_seconds":                "POLL_INTERVAL_SECONDS",
		"poll.job_timeout_seconds":             "JOB_TIMEOUT_SECONDS",
		"poll.adapter_request_timeout_seconds": "ADAPTER_REQUEST_TIMEOUT_SECONDS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	// Phase gate: live adapters are not enabled yet.
	if !c.Integration.MockMode {
		return fmt.Errorf("INTEGRATION_MOCK_MODE must be true in the current phase")
	}
	if err := validateMasterKey(c.Vault.MasterKeyCurrent); err != nil {
		return fmt.Errorf("MASTER_KEY_CURRENT: %w", err)
	}
	if c.Vault.MasterKeyPrevious != "" {
		if err := validateMasterKey(c.Vault.MasterKeyPrevious); err != nil {
			return fmt.Errorf("MASTER_KEY_PREVIOUS: %w", err)
		}
	}
	if c.Poll.IntervalSeconds < 1 {
		return fmt.Errorf("poll.interval_seconds must be >= 1, got %d", c.Poll.IntervalSeconds)
	}
	if c.Poll.JobTimeoutSeconds < 1 {
		return fmt.Errorf("poll.job_timeout_seconds must be >= 1, got %d", c.Poll.JobTimeoutSeconds)
	}
	if c.Poll.AdapterRequestTimeoutSeconds < 1 {
		return fmt.Errorf("poll.adapter_request_timeout_seconds must be >= 1, got %d", c.Poll.AdapterRequestTimeoutSeconds)
	}
	return nil
}

// validateMasterKey enforces the 64-hex-char (32-byte) key format.
func validateMasterKey(key string) error {
	if len(key) != 64 {
		return fmt.Errorf("must be 64 hex chars, got %d", len(key))
	}
	if _, err := hex.DecodeString(key); err != nil {
		return fmt.Errorf("not valid hex: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Database. The empty url default keeps the key visible to Unmarshal so
	// the DATABASE_URL override is picked up.
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "solarinvest")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "solarinvest")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")

	// Redis (locks + ticket registry)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Integration
	v.SetDefault("integration.mock_mode", true)
	v.SetDefault("integration.fixture_dir", "fixtures")

	// Poll cadence: P=600s, job budget 60s, adapter call 8s
	v.SetDefault("poll.interval_seconds", 600)
	v.SetDefault("poll.job_timeout_seconds", 60)
	v.SetDefault("poll.adapter_request_timeout_seconds", 8)
	v.SetDefault("poll.drain_timeout_seconds", 30)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Ops server
	v.SetDefault("ops.port", 8080)
	v.SetDefault("ops.shutdown_timeout", "30s")
}
