package core

import (
	"context"
	"time"
)

// DomainAnalyzer scores how trustworthy the sender domain is
type DomainAnalyzer interface {
	// AnalyzeSender returns a trust-polarity outcome for the sender address
	AnalyzeSender(ctx context.Context, sender string) (*AnalyzerOutcome, error)
}

// URLScanner scores the links found in an email body
type URLScanner interface {
	// ScanBody returns a risk-polarity outcome for the URLs in body
	ScanBody(ctx context.Context, body string) (*AnalyzerOutcome, error)
}

// AttachmentAnalyzer scores declared attachments
type AttachmentAnalyzer interface {
	// AnalyzeAttachments returns a risk-polarity outcome for the attachments
	AnalyzeAttachments(ctx context.Context, attachments []Attachment) (*AnalyzerOutcome, error)
}

// SocialEngineeringDetector scores manipulation patterns in the message text
type SocialEngineeringDetector interface {
	// Detect returns a risk-polarity outcome for subject and body
	Detect(ctx context.Context, subject, body string) (*AnalyzerOutcome, error)
}

// CacheRepository defines the interface for caching verdicts
type CacheRepository interface {
	// Get retrieves a cached entry for a request fingerprint
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, fingerprint string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// VerdictStore keeps the history of produced verdicts
type VerdictStore interface {
	Save(ctx context.Context, verdict *SecurityVerdict) error
	Get(ctx context.Context, id string) (*SecurityVerdict, error)
	ListRecent(ctx context.Context, limit int) ([]VerdictSummary, error)
}

// EventPublisher announces verdicts to downstream consumers
type EventPublisher interface {
	PublishVerdict(ctx context.Context, verdict *SecurityVerdict) error
}

// MetricsRecorder receives orchestration measurements
type MetricsRecorder interface {
	ObserveAnalyzer(name string, elapsed time.Duration, failed bool)
	ObserveVerdict(classification Classification, finalScore int)
	ObserveCacheHit()
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) ObserveAnalyzer(string, time.Duration, bool) {}
func (NopMetrics) ObserveVerdict(Classification, int)          {}
func (NopMetrics) ObserveCacheHit()                            {}
