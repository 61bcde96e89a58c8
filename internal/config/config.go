package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/email-threat-triage/")
	v.AddConfigPath("$HOME/.email-threat-triage")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("THREAT_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile loads the configuration from an explicit file path
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)

	v.AutomaticEnv()
	v.SetEnvPrefix("THREAT_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.filters", []string{"postfix", "http"})
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.block_malicious", false)
	v.SetDefault("server.modify_subject", false)
	v.SetDefault("server.subject_prefix", "[THREAT] ")
	v.SetDefault("server.max_body_chars", 50000)
	v.SetDefault("server.headers.classification", "X-Threat-Classification")
	v.SetDefault("server.headers.score", "X-Threat-Score")
	v.SetDefault("server.headers.action", "X-Threat-Action")
	v.SetDefault("server.headers.reason", "X-Threat-Reason")
	v.SetDefault("server.headers.verdict_id", "X-Threat-Verdict-ID")
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10026)

	// HTTP API defaults
	v.SetDefault("api.listen_address", "0.0.0.0:8080")
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.max_request_bytes", 1<<20)

	// Analysis defaults
	v.SetDefault("analysis.analyzer_timeout", "5s")
	v.SetDefault("analysis.confidence", 92)
	v.SetDefault("analysis.weights.attachment", 0.35)
	v.SetDefault("analysis.weights.domain", 0.30)
	v.SetDefault("analysis.weights.url", 0.20)
	v.SetDefault("analysis.weights.social_engineering", 0.15)
	v.SetDefault("analysis.thresholds.suspicious", 31)
	v.SetDefault("analysis.thresholds.malicious", 61)

	// Analyzer defaults; empty lists fall back to the built-in ones
	v.SetDefault("domain.trusted_domains", []string{})
	v.SetDefault("domain.blocklist", []string{})
	v.SetDefault("domain.brands", []string{})
	v.SetDefault("domain.suspicious_tlds", []string{})
	v.SetDefault("domain.check_mx", false)
	v.SetDefault("urls.shorteners", []string{})
	v.SetDefault("urls.suspicious_tlds", []string{})
	v.SetDefault("urls.phishing_patterns", []string{})

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/verdict_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/threat_triage")

	// Verdict history defaults
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.dsn", "/data/verdicts.db")

	// Event defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "email.verdicts")
	v.SetDefault("events.threat_topic", "email.threats")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// Set overrides a configuration value
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
