package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// TriageService is the core service for email threat triage.
// It fronts the orchestrator with a verdict cache and fans each fresh
// verdict out to the history store and event stream.
type TriageService struct {
	orchestrator *Orchestrator
	cache        CacheRepository
	store        VerdictStore
	publisher    EventPublisher
	metrics      MetricsRecorder
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewTriageService creates a new triage service. A nil cache, store or
// publisher disables that side effect.
func NewTriageService(
	orchestrator *Orchestrator,
	cache CacheRepository,
	store VerdictStore,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *TriageService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &TriageService{
		orchestrator: orchestrator,
		cache:        cache,
		store:        store,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
	}
}

// Fingerprint identifies a request by its content, for cache lookups
func Fingerprint(req *AnalysisRequest) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(req.senderEmail)
	write(req.subject)
	write(req.body)
	for _, a := range req.attachments {
		write(a.Filename)
		write(a.MIMEType)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze returns a verdict for the request, served from cache when possible
func (s *TriageService) Analyze(ctx context.Context, req *AnalysisRequest) (*SecurityVerdict, error) {
	if req == nil {
		return s.orchestrator.Analyze(ctx, req)
	}

	fingerprint := Fingerprint(req)

	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, fingerprint); err == nil && entry != nil && entry.Verdict != nil {
			s.logger.Debug("Cache hit for request",
				zap.String("sender", req.SenderEmail()),
				zap.String("verdict_id", entry.Verdict.ID))
			s.metrics.ObserveCacheHit()
			return entry.Verdict, nil
		}
	}

	verdict, err := s.orchestrator.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	// Fallback scores only stand for this request; the next one retries the analyzers.
	if s.cacheEnabled && verdict.Degraded() {
		s.logger.Debug("Not caching degraded verdict",
			zap.String("verdict_id", verdict.ID),
			zap.Strings("failed_analyzers", verdict.FailedAnalyzers))
	} else if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Fingerprint: fingerprint,
			Verdict:     verdict,
			LastSeen:    now,
			ExpiresAt:   now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Save(ctx, verdict); err != nil {
			s.logger.Error("Failed to save verdict",
				zap.String("verdict_id", verdict.ID),
				zap.Error(err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishVerdict(ctx, verdict); err != nil {
			s.logger.Error("Failed to publish verdict",
				zap.String("verdict_id", verdict.ID),
				zap.Error(err))
		}
	}

	return verdict, nil
}

// Verdict looks up a stored verdict by ID
func (s *TriageService) Verdict(ctx context.Context, id string) (*SecurityVerdict, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.Get(ctx, id)
}

// RecentVerdicts lists the most recent stored verdicts
func (s *TriageService) RecentVerdicts(ctx context.Context, limit int) ([]VerdictSummary, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.ListRecent(ctx, limit)
}
