package core

import (
	"time"
	"unicode/utf8"

	"github.com/mikey/email-threat-triage/internal/utils"
)

// Tool names as they appear in the execution trace
const (
	ToolDomainReputation  = "check_domain_reputation"
	ToolURLScan           = "scan_urls"
	ToolAttachments       = "analyze_attachments"
	ToolSocialEngineering = "detect_social_engineering"
)

// bodyPreviewLength bounds how much of the body is copied into the trace
const bodyPreviewLength = 50

// traceBuilder accumulates entries in the order they are recorded
type traceBuilder struct {
	entries []TraceEntry
}

func newTraceBuilder(capacity int) *traceBuilder {
	return &traceBuilder{entries: make([]TraceEntry, 0, capacity)}
}

func (b *traceBuilder) record(tool string, calledAt time.Time, params map[string]any, outcome *AnalyzerOutcome) {
	b.entries = append(b.entries, TraceEntry{
		ToolName:        tool,
		CalledAt:        calledAt,
		InputParams:     params,
		OutputSummary:   outcome.Summary,
		ExecutionTimeMS: outcome.ExecutionTimeMS,
	})
}

func (b *traceBuilder) build() []TraceEntry {
	out := make([]TraceEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func domainTraceParams(req *AnalysisRequest) map[string]any {
	return map[string]any{"sender_email": req.SenderEmail()}
}

func urlTraceParams(req *AnalysisRequest) map[string]any {
	return map[string]any{"email_body": utils.Preview(req.Body(), bodyPreviewLength)}
}

func attachmentTraceParams(req *AnalysisRequest) map[string]any {
	names := make([]string, 0, len(req.attachments))
	for _, a := range req.attachments {
		names = append(names, a.Filename)
	}
	return map[string]any{"filenames": names}
}

func socialTraceParams(req *AnalysisRequest) map[string]any {
	return map[string]any{
		"subject":     req.Subject(),
		"body_length": utf8.RuneCountInString(req.Body()),
	}
}
