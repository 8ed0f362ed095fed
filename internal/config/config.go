package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the address the HTTP server listens on.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// SecureCookies marks session cookies as Secure (HTTPS only).
	SecureCookies bool `mapstructure:"secure_cookies" yaml:"secure_cookies"`
}

// SessionConfig holds session and credential-vault settings.
type SessionConfig struct {
	// Secret is the shared secret the vault key is derived from.
	// If empty, the secret is looked up in the OS keyring.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// TTLHours is the session lifetime in hours.
	TTLHours int `mapstructure:"ttl_hours" yaml:"ttl_hours"`
}

// MailConfig holds gateway tunables.
type MailConfig struct {
	// ConnectTimeoutSec bounds every IMAP/SMTP connection attempt.
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`

	// DraftAutosaveSec is the suggested client-side draft autosave
	// interval, surfaced through /settings.
	DraftAutosaveSec int `mapstructure:"draft_autosave_sec" yaml:"draft_autosave_sec"`
}

// RateLimitConfig bounds login attempts per email address.
type RateLimitConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	WindowSec   int `mapstructure:"window_sec" yaml:"window_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Mail      MailConfig      `mapstructure:"mail" yaml:"mail"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// DBPath is the SQLite database path for organizations and settings.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// SessionTTL returns the configured session lifetime as a duration.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// ConnectTimeout returns the configured connect timeout as a duration.
func (c *AppConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Mail.ConnectTimeoutSec) * time.Second
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Session: SessionConfig{
			TTLHours: 24,
		},
		Mail: MailConfig{
			ConnectTimeoutSec: 10,
			DraftAutosaveSec:  3,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 5,
			WindowSec:   900,
		},
		DBPath:   "webmail.db",
		LogLevel: "info",
	}
}

// Load reads configuration from the given YAML file path using Viper,
// with WEBMAIL_* environment variables taking precedence. If the file
// does not exist, defaults plus environment overrides are returned.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("WEBMAIL")
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("mail.connect_timeout_sec", 10)
	v.SetDefault("mail.draft_autosave_sec", 3)
	v.SetDefault("rate_limit.max_attempts", 5)
	v.SetDefault("rate_limit.window_sec", 900)
	v.SetDefault("db_path", "webmail.db")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			cfg := defaultAppConfig()
			applyEnv(v, cfg)
			return cfg, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := defaultAppConfig()
			applyEnv(v, cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// applyEnv copies environment-sourced values into a default config when
// no config file is present.
func applyEnv(v *viper.Viper, cfg *AppConfig) {
	if err := v.Unmarshal(cfg); err != nil {
		// Defaults stay in place when the environment is unparsable.
		return
	}
}
