package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/config"
	"github.com/mikey/email-threat-triage/internal/core"
)

// EngineFactory creates the scoring and orchestration components
type EngineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, logger *zap.Logger) *EngineFactory {
	return &EngineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAggregator creates the weighted aggregator
func (f *EngineFactory) CreateAggregator() (*core.Aggregator, error) {
	ac, err := f.cfg.GetAnalysis()
	if err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	return core.NewAggregator(core.Weights{
		Attachment:        ac.AttachmentWeight,
		Domain:            ac.DomainWeight,
		URL:               ac.URLWeight,
		SocialEngineering: ac.SocialWeight,
	})
}

// CreateClassifier creates the threshold classifier
func (f *EngineFactory) CreateClassifier() (*core.Classifier, error) {
	ac, err := f.cfg.GetAnalysis()
	if err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	return core.NewClassifier(core.ClassificationPolicy{
		SuspiciousFrom: ac.SuspiciousThreshold,
		MaliciousFrom:  ac.MaliciousThreshold,
	})
}

// GetOrchestratorConfig returns the orchestrator tunables
func (f *EngineFactory) GetOrchestratorConfig() (core.OrchestratorConfig, error) {
	ac, err := f.cfg.GetAnalysis()
	if err != nil {
		return core.OrchestratorConfig{}, fmt.Errorf("invalid analysis config: %w", err)
	}
	return core.OrchestratorConfig{
		AnalyzerTimeout: ac.AnalyzerTimeout,
		Confidence:      ac.Confidence,
	}, nil
}
