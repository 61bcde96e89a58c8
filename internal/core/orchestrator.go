package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// DefaultConfidence is a placeholder until a real confidence model exists
const DefaultConfidence = 92

// OrchestratorConfig holds the tunables of the orchestrator
type OrchestratorConfig struct {
	// AnalyzerTimeout bounds each analyzer call; zero disables the bound
	AnalyzerTimeout time.Duration
	// Confidence is reported verbatim on every verdict
	Confidence int
}

// Slots are fixed; their order is the trace order.
const (
	slotDomain = iota
	slotURL
	slotAttachments
	slotSocial
	slotCount
)

type analyzerCall func(ctx context.Context) (*AnalyzerOutcome, error)

type slot struct {
	tool     string
	polarity Polarity
	params   map[string]any
	skip     bool
	call     analyzerCall
}

type slotResult struct {
	calledAt time.Time
	outcome  *AnalyzerOutcome
}

// Orchestrator runs the analyzers concurrently and turns their outcomes into a verdict
type Orchestrator struct {
	domain      DomainAnalyzer
	urls        URLScanner
	attachments AttachmentAnalyzer
	social      SocialEngineeringDetector
	aggregator  *Aggregator
	classifier  *Classifier
	metrics     MetricsRecorder
	logger      *zap.Logger
	timeout     time.Duration
	confidence  int
	now         func() time.Time
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	domain DomainAnalyzer,
	urls URLScanner,
	attachments AttachmentAnalyzer,
	social SocialEngineeringDetector,
	aggregator *Aggregator,
	classifier *Classifier,
	metrics MetricsRecorder,
	logger *zap.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Orchestrator{
		domain:      domain,
		urls:        urls,
		attachments: attachments,
		social:      social,
		aggregator:  aggregator,
		classifier:  classifier,
		metrics:     metrics,
		logger:      logger,
		timeout:     cfg.AnalyzerTimeout,
		confidence:  ClampScore(cfg.Confidence),
		now:         time.Now,
	}
}

// Analyze produces a verdict for the request. Analyzer failures are absorbed into
// fallback outcomes; an error is returned for a nil request or a caller that has
// gone away before the join completes.
func (o *Orchestrator) Analyze(ctx context.Context, req *AnalysisRequest) (*SecurityVerdict, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrOrchestration)
	}

	o.logger.Info("Dispatching analyzers",
		zap.String("sender", req.SenderEmail()),
		zap.String("subject", req.Subject()),
		zap.Int("attachments", len(req.attachments)))

	slots := o.slots(req)

	// Each goroutine writes only its own index.
	var results [slotCount]slotResult
	var wg conc.WaitGroup
	for i := range slots {
		i := i
		wg.Go(func() {
			results[i] = o.invoke(ctx, slots[i])
		})
	}
	wg.Wait()

	// Caller cancellation is not an analyzer failure.
	if err := ctx.Err(); err != nil {
		o.logger.Warn("Analysis abandoned by caller",
			zap.String("sender", req.SenderEmail()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrchestration, err)
	}

	trace := newTraceBuilder(slotCount)
	var failed []string
	for i, s := range slots {
		if s.skip {
			continue
		}
		trace.record(s.tool, results[i].calledAt, s.params, results[i].outcome)
		if results[i].outcome.Failed {
			failed = append(failed, s.tool)
		}
	}

	scores := AggregatedScores{
		URLRisk:               results[slotURL].outcome.Score,
		DomainRisk:            MaxScore - results[slotDomain].outcome.Score,
		AttachmentRisk:        results[slotAttachments].outcome.Score,
		SocialEngineeringRisk: results[slotSocial].outcome.Score,
	}

	final := o.aggregator.Aggregate(scores)
	classification, action := o.classifier.Classify(final)

	verdict := &SecurityVerdict{
		ID: uuid.NewString(),
		Metadata: EmailMetadata{
			Sender:     req.SenderEmail(),
			Subject:    req.Subject(),
			AnalyzedAt: o.now().UTC(),
		},
		Trace:                trace.build(),
		Scores:               scores,
		FinalRiskScore:       final,
		Classification:       classification,
		RecommendedAction:    action,
		ReasoningSummary:     Explain(scores, classification),
		ConfidencePercentage: o.confidence,
		FailedAnalyzers:      failed,
	}

	o.metrics.ObserveVerdict(classification, final)
	o.logger.Info("Analysis complete",
		zap.String("verdict_id", verdict.ID),
		zap.String("classification", classification.String()),
		zap.Int("final_risk_score", final),
		zap.Strings("failed_analyzers", failed))

	return verdict, nil
}

func (o *Orchestrator) slots(req *AnalysisRequest) [slotCount]slot {
	attachments := req.Attachments()
	return [slotCount]slot{
		slotDomain: {
			tool:     ToolDomainReputation,
			polarity: PolarityTrust,
			params:   domainTraceParams(req),
			call: func(ctx context.Context) (*AnalyzerOutcome, error) {
				return o.domain.AnalyzeSender(ctx, req.SenderEmail())
			},
		},
		slotURL: {
			tool:     ToolURLScan,
			polarity: PolarityRisk,
			params:   urlTraceParams(req),
			call: func(ctx context.Context) (*AnalyzerOutcome, error) {
				return o.urls.ScanBody(ctx, req.Body())
			},
		},
		slotAttachments: {
			tool:     ToolAttachments,
			polarity: PolarityRisk,
			params:   attachmentTraceParams(req),
			skip:     len(attachments) == 0,
			call: func(ctx context.Context) (*AnalyzerOutcome, error) {
				return o.attachments.AnalyzeAttachments(ctx, attachments)
			},
		},
		slotSocial: {
			tool:     ToolSocialEngineering,
			polarity: PolarityRisk,
			params:   socialTraceParams(req),
			call: func(ctx context.Context) (*AnalyzerOutcome, error) {
				return o.social.Detect(ctx, req.Subject(), req.Body())
			},
		},
	}
}

// invoke never fails: any analyzer error becomes a fallback outcome
func (o *Orchestrator) invoke(ctx context.Context, s slot) slotResult {
	calledAt := o.now().UTC()
	if s.skip {
		return slotResult{
			calledAt: calledAt,
			outcome: &AnalyzerOutcome{
				Score:    0,
				Findings: []string{},
				Summary:  "No attachments to analyze",
			},
		}
	}

	start := time.Now()
	outcome, err := o.call(ctx, s.call)
	elapsed := time.Since(start)
	if err == nil && outcome == nil {
		err = errors.New("analyzer returned no outcome")
	}

	if err != nil {
		o.logger.Error("Analyzer failed, using fallback outcome",
			zap.String("analyzer", s.tool),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		o.metrics.ObserveAnalyzer(s.tool, elapsed, true)
		return slotResult{calledAt: calledAt, outcome: FallbackOutcome(s.polarity, elapsed)}
	}

	o.metrics.ObserveAnalyzer(s.tool, elapsed, false)
	return slotResult{calledAt: calledAt, outcome: normalizeOutcome(outcome)}
}

// call bounds the analyzer by the configured timeout. A stuck analyzer keeps
// its goroutine but no longer holds up the verdict.
func (o *Orchestrator) call(ctx context.Context, fn analyzerCall) (*AnalyzerOutcome, error) {
	if o.timeout <= 0 {
		return guarded(ctx, fn)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type result struct {
		outcome *AnalyzerOutcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := guarded(callCtx, fn)
		done <- result{outcome: outcome, err: err}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-callCtx.Done():
		return nil, fmt.Errorf("analyzer did not finish: %w", callCtx.Err())
	}
}

func guarded(ctx context.Context, fn analyzerCall) (outcome *AnalyzerOutcome, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		outcome, err = fn(ctx)
	})
	if r := pc.Recovered(); r != nil {
		return nil, fmt.Errorf("analyzer panicked: %v", r.Value)
	}
	return outcome, err
}

func normalizeOutcome(in *AnalyzerOutcome) *AnalyzerOutcome {
	out := &AnalyzerOutcome{
		Score:           ClampScore(in.Score),
		Findings:        make([]string, len(in.Findings)),
		Summary:         in.Summary,
		ExecutionTimeMS: in.ExecutionTimeMS,
	}
	copy(out.Findings, in.Findings)
	if out.ExecutionTimeMS < 0 {
		out.ExecutionTimeMS = 0
	}
	return out
}
