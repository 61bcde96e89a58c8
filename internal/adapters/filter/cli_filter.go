package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/ports"
	"github.com/mikey/email-threat-triage/internal/utils"
)

// Output formats supported by the CLI filter
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// CliFilter implements a command-line interface for threat triage
type CliFilter struct {
	triage  ports.Triage
	tp      *utils.TextProcessor
	logger  *zap.Logger
	out     io.Writer
	format  string
	verbose bool
}

// NewCliFilter creates a new CLI filter writing to out
func NewCliFilter(triage ports.Triage, tp *utils.TextProcessor, logger *zap.Logger, out io.Writer, format string, verbose bool) (*CliFilter, error) {
	format = strings.ToLower(format)
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return &CliFilter{
		triage:  triage,
		tp:      tp,
		logger:  logger,
		out:     out,
		format:  format,
		verbose: verbose,
	}, nil
}

// AnalyzeRaw parses an RFC 5322 message, analyzes it and prints the verdict
func (f *CliFilter) AnalyzeRaw(ctx context.Context, raw []byte) (*core.SecurityVerdict, error) {
	parsed, err := ParseMessage(raw)
	if err != nil {
		return nil, err
	}

	req, err := NewRequestFromMessage(f.tp, "", parsed, core.MaxBodyLength)
	if err != nil {
		return nil, err
	}

	return f.ProcessEmail(ctx, req)
}

// ProcessEmail analyzes a request and prints the verdict
func (f *CliFilter) ProcessEmail(ctx context.Context, req *core.AnalysisRequest) (*core.SecurityVerdict, error) {
	f.logger.Debug("Processing email", zap.String("sender", req.SenderEmail()))

	startTime := time.Now()
	verdict, err := f.triage.Analyze(ctx, req)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}

	f.logger.Debug("Analysis finished", zap.Duration("duration", time.Since(startTime)))

	if err := f.render(req, verdict); err != nil {
		return nil, err
	}
	return verdict, nil
}

func (f *CliFilter) render(req *core.AnalysisRequest, v *core.SecurityVerdict) error {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(f.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	w := f.out
	fmt.Fprintf(w, "\n=== Email Summary ===\n")
	fmt.Fprintf(w, "From: %s\n", req.SenderEmail())
	fmt.Fprintf(w, "Subject: %s\n", req.Subject())
	fmt.Fprintf(w, "Body length: %d chars\n", len([]rune(req.Body())))
	for _, a := range req.Attachments() {
		fmt.Fprintf(w, "Attachment: %s (%s)\n", a.Filename, utils.OrPlaceholder(a.MIMEType, "unknown type"))
	}

	if f.verbose {
		fmt.Fprintf(w, "\nBody preview:\n%s\n", utils.Preview(req.Body(), 500))
		fmt.Fprintf(w, "\n=== Analyzers ===\n")
		for _, t := range v.Trace {
			fmt.Fprintf(w, "%-26s %5dms  %s\n", t.ToolName, t.ExecutionTimeMS, t.OutputSummary)
		}
	}

	fmt.Fprintf(w, "\n=== Verdict ===\n")
	fmt.Fprintf(w, "ID: %s\n", v.ID)
	fmt.Fprintf(w, "Classification: %s\n", v.Classification)
	fmt.Fprintf(w, "Final risk score: %d/100\n", v.FinalRiskScore)
	fmt.Fprintf(w, "Recommended action: %s\n", v.RecommendedAction)
	fmt.Fprintf(w, "Scores: attachment=%d domain=%d url=%d social=%d\n",
		v.Scores.AttachmentRisk, v.Scores.DomainRisk, v.Scores.URLRisk, v.Scores.SocialEngineeringRisk)
	fmt.Fprintf(w, "Confidence: %d%%\n", v.ConfidencePercentage)
	fmt.Fprintf(w, "Reasoning: %s\n", v.ReasoningSummary)
	return nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
