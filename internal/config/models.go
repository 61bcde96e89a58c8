package config

import (
	"time"
)

// HeaderNames are the headers added to filtered messages
type HeaderNames struct {
	Classification string
	Score          string
	Action         string
	Reason         string
	VerdictID      string
}

// ServerConfig represents the mail filter configuration
type ServerConfig struct {
	Filters        []string
	ListenAddress  string
	BlockMalicious bool
	ModifySubject  bool
	SubjectPrefix  string
	MaxBodyChars   int
	Headers        HeaderNames
	PostfixAddress string
	PostfixPort    int
}

// APIConfig represents the HTTP API configuration
type APIConfig struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRequestBytes int64
}

// AnalysisConfig represents orchestration and scoring settings
type AnalysisConfig struct {
	AnalyzerTimeout     time.Duration
	Confidence          int
	AttachmentWeight    float64
	DomainWeight        float64
	URLWeight           float64
	SocialWeight        float64
	SuspiciousThreshold int
	MaliciousThreshold  int
}

// DomainIntelConfig represents the sender domain analyzer settings
type DomainIntelConfig struct {
	TrustedDomains []string
	Blocklist      []string
	Brands         []string
	SuspiciousTLDs []string
	CheckMX        bool
}

// URLScanConfig represents the URL scanner settings
type URLScanConfig struct {
	Shorteners       []string
	SuspiciousTLDs   []string
	PhishingPatterns []string
}

// CacheConfig represents the verdict cache settings
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// StoreConfig represents the verdict history settings
type StoreConfig struct {
	Enabled bool
	Driver  string
	DSN     string
}

// EventsConfig represents the verdict event stream settings
type EventsConfig struct {
	Enabled     bool
	Brokers     []string
	Topic       string
	ThreatTopic string
}

// GetServer returns the mail filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Filters:        c.GetStringSlice("server.filters"),
		ListenAddress:  c.GetString("server.listen_address"),
		BlockMalicious: c.GetBool("server.block_malicious"),
		ModifySubject:  c.GetBool("server.modify_subject"),
		SubjectPrefix:  c.GetString("server.subject_prefix"),
		MaxBodyChars:   c.GetInt("server.max_body_chars"),
		Headers: HeaderNames{
			Classification: c.GetString("server.headers.classification"),
			Score:          c.GetString("server.headers.score"),
			Action:         c.GetString("server.headers.action"),
			Reason:         c.GetString("server.headers.reason"),
			VerdictID:      c.GetString("server.headers.verdict_id"),
		},
		PostfixAddress: c.GetString("server.postfix.address"),
		PostfixPort:    c.GetInt("server.postfix.port"),
	}
}

// GetAPI returns the HTTP API configuration
func (c *Config) GetAPI() (APIConfig, error) {
	read, err := c.GetDuration("api.read_timeout")
	if err != nil {
		return APIConfig{}, err
	}
	write, err := c.GetDuration("api.write_timeout")
	if err != nil {
		return APIConfig{}, err
	}
	return APIConfig{
		ListenAddress:   c.GetString("api.listen_address"),
		ReadTimeout:     read,
		WriteTimeout:    write,
		MaxRequestBytes: int64(c.GetInt("api.max_request_bytes")),
	}, nil
}

// GetAnalysis returns the orchestration and scoring configuration
func (c *Config) GetAnalysis() (AnalysisConfig, error) {
	timeout, err := c.GetDuration("analysis.analyzer_timeout")
	if err != nil {
		return AnalysisConfig{}, err
	}
	return AnalysisConfig{
		AnalyzerTimeout:     timeout,
		Confidence:          c.GetInt("analysis.confidence"),
		AttachmentWeight:    c.GetFloat64("analysis.weights.attachment"),
		DomainWeight:        c.GetFloat64("analysis.weights.domain"),
		URLWeight:           c.GetFloat64("analysis.weights.url"),
		SocialWeight:        c.GetFloat64("analysis.weights.social_engineering"),
		SuspiciousThreshold: c.GetInt("analysis.thresholds.suspicious"),
		MaliciousThreshold:  c.GetInt("analysis.thresholds.malicious"),
	}, nil
}

// GetDomainIntel returns the domain analyzer configuration
func (c *Config) GetDomainIntel() DomainIntelConfig {
	return DomainIntelConfig{
		TrustedDomains: c.GetStringSlice("domain.trusted_domains"),
		Blocklist:      c.GetStringSlice("domain.blocklist"),
		Brands:         c.GetStringSlice("domain.brands"),
		SuspiciousTLDs: c.GetStringSlice("domain.suspicious_tlds"),
		CheckMX:        c.GetBool("domain.check_mx"),
	}
}

// GetURLScan returns the URL scanner configuration
func (c *Config) GetURLScan() URLScanConfig {
	return URLScanConfig{
		Shorteners:       c.GetStringSlice("urls.shorteners"),
		SuspiciousTLDs:   c.GetStringSlice("urls.suspicious_tlds"),
		PhishingPatterns: c.GetStringSlice("urls.phishing_patterns"),
	}
}

// GetCache returns the verdict cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}, nil
}

// GetStore returns the verdict history configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Enabled: c.GetBool("store.enabled"),
		Driver:  c.GetString("store.driver"),
		DSN:     c.GetString("store.dsn"),
	}
}

// GetEvents returns the event stream configuration
func (c *Config) GetEvents() EventsConfig {
	return EventsConfig{
		Enabled:     c.GetBool("events.enabled"),
		Brokers:     c.GetStringSlice("events.brokers"),
		Topic:       c.GetString("events.topic"),
		ThreatTopic: c.GetString("events.threat_topic"),
	}
}

// MetricsEnabled reports whether Prometheus metrics are collected
func (c *Config) MetricsEnabled() bool {
	return c.GetBool("metrics.enabled")
}
