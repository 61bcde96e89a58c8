package ports

import (
	"context"

	"github.com/mikey/email-threat-triage/internal/core"
)

// EmailFilter is a front end that feeds emails into the triage service
type EmailFilter interface {
	// ProcessEmail analyzes a validated request and returns its verdict
	ProcessEmail(ctx context.Context, req *core.AnalysisRequest) (*core.SecurityVerdict, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}

// Triage is the part of the triage service that front ends depend on
type Triage interface {
	Analyze(ctx context.Context, req *core.AnalysisRequest) (*core.SecurityVerdict, error)
	Verdict(ctx context.Context, id string) (*core.SecurityVerdict, error)
	RecentVerdicts(ctx context.Context, limit int) ([]core.VerdictSummary, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}
