package core

import (
	"time"
)

// Attachment is a file attached to an email, as declared by the sender
type Attachment struct {
	Filename string `json:"filename" yaml:"filename"`
	MIMEType string `json:"mime_type" yaml:"mime_type"`
}

// AnalysisRequest is a validated email awaiting analysis.
// It is immutable once built by NewAnalysisRequest.
type AnalysisRequest struct {
	senderEmail string
	subject     string
	body        string
	attachments []Attachment
}

// SenderEmail returns the normalized sender address
func (r *AnalysisRequest) SenderEmail() string {
	return r.senderEmail
}

// Subject returns the email subject
func (r *AnalysisRequest) Subject() string {
	return r.subject
}

// Body returns the email body
func (r *AnalysisRequest) Body() string {
	return r.body
}

// Attachments returns a copy of the declared attachments
func (r *AnalysisRequest) Attachments() []Attachment {
	out := make([]Attachment, len(r.attachments))
	copy(out, r.attachments)
	return out
}

// HasAttachments reports whether any attachment was declared
func (r *AnalysisRequest) HasAttachments() bool {
	return len(r.attachments) > 0
}

// Polarity describes what a high analyzer score means
type Polarity int

const (
	// PolarityRisk means higher is worse
	PolarityRisk Polarity = iota
	// PolarityTrust means higher is better
	PolarityTrust
)

// AnalyzerOutcome is the result reported by a single analyzer
type AnalyzerOutcome struct {
	Score           int      `json:"score" yaml:"score"`
	Findings        []string `json:"findings" yaml:"findings"`
	Summary         string   `json:"output_summary" yaml:"output_summary"`
	ExecutionTimeMS int64    `json:"execution_time_ms" yaml:"execution_time_ms"`
	Failed          bool     `json:"failed,omitempty" yaml:"failed,omitempty"`
}

const (
	failedFinding = "analysis failed"
	failedSummary = "Analysis failed"
)

// FallbackOutcome returns the neutral outcome substituted for a failed analyzer.
// Risk analyzers fall back to zero risk, the trust analyzer to full trust.
func FallbackOutcome(p Polarity, elapsed time.Duration) *AnalyzerOutcome {
	score := 0
	if p == PolarityTrust {
		score = MaxScore
	}
	return &AnalyzerOutcome{
		Score:           score,
		Findings:        []string{failedFinding},
		Summary:         failedSummary,
		ExecutionTimeMS: elapsed.Milliseconds(),
		Failed:          true,
	}
}

// TraceEntry records one analyzer invocation
type TraceEntry struct {
	ToolName        string         `json:"tool_name" yaml:"tool_name"`
	CalledAt        time.Time      `json:"called_at" yaml:"called_at"`
	InputParams     map[string]any `json:"input_params" yaml:"input_params"`
	OutputSummary   string         `json:"output_summary" yaml:"output_summary"`
	ExecutionTimeMS int64          `json:"execution_time_ms" yaml:"execution_time_ms"`
}

// AggregatedScores holds the four component scores, all in risk polarity
type AggregatedScores struct {
	URLRisk               int `json:"url_risk" yaml:"url_risk"`
	DomainRisk            int `json:"domain_risk" yaml:"domain_risk"`
	AttachmentRisk        int `json:"attachment_risk" yaml:"attachment_risk"`
	SocialEngineeringRisk int `json:"social_engineering_risk" yaml:"social_engineering_risk"`
}

// Classification is the threat tier of a verdict
type Classification string

const (
	ClassificationSafe       Classification = "SAFE"
	ClassificationSuspicious Classification = "SUSPICIOUS"
	ClassificationMalicious  Classification = "MALICIOUS"
)

// String returns the tier name
func (c Classification) String() string {
	return string(c)
}

// Action is the directive recommended to the mail system or user
type Action string

const (
	ActionAllow       Action = "allow"
	ActionWarnUser    Action = "warn_user"
	ActionBlockSender Action = "block_sender"
)

// EmailMetadata identifies the analyzed email inside a verdict
type EmailMetadata struct {
	Sender     string    `json:"sender" yaml:"sender"`
	Subject    string    `json:"subject" yaml:"subject"`
	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`
}

// SecurityVerdict is the terminal result of one analysis request
type SecurityVerdict struct {
	ID                   string           `json:"id" yaml:"id"`
	Metadata             EmailMetadata    `json:"email_metadata" yaml:"email_metadata"`
	Trace                []TraceEntry     `json:"tool_execution_trace" yaml:"tool_execution_trace"`
	Scores               AggregatedScores `json:"aggregated_scores" yaml:"aggregated_scores"`
	FinalRiskScore       int              `json:"final_risk_score" yaml:"final_risk_score"`
	Classification       Classification   `json:"classification" yaml:"classification"`
	RecommendedAction    Action           `json:"recommended_action" yaml:"recommended_action"`
	ReasoningSummary     string           `json:"reasoning_summary" yaml:"reasoning_summary"`
	ConfidencePercentage int              `json:"confidence_percentage" yaml:"confidence_percentage"`
	// FailedAnalyzers names the tools whose outcome was replaced by a fallback
	FailedAnalyzers      []string         `json:"failed_analyzers,omitempty" yaml:"failed_analyzers,omitempty"`
}

// Degraded reports whether any analyzer fell back during this verdict
func (v *SecurityVerdict) Degraded() bool {
	return len(v.FailedAnalyzers) > 0
}

// VerdictSummary is the compact form listed from the verdict history
type VerdictSummary struct {
	ID             string         `json:"id"`
	Sender         string         `json:"sender"`
	Subject        string         `json:"subject"`
	FinalRiskScore int            `json:"final_risk_score"`
	Classification Classification `json:"classification"`
	AnalyzedAt     time.Time      `json:"analyzed_at"`
}

// CacheEntry is a cached verdict keyed by request fingerprint
type CacheEntry struct {
	Fingerprint string
	Verdict     *SecurityVerdict
	LastSeen    time.Time
	ExpiresAt   time.Time
}

// MinScore and MaxScore bound every score in the system
const (
	MinScore = 0
	MaxScore = 100
)

// ClampScore bounds a score to [MinScore, MaxScore]
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
