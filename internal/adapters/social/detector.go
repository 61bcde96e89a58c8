package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/mikey/email-threat-triage/internal/core"
)

// pattern is a family of phrases contributing a fixed risk when any of them appears
type pattern struct {
	finding  string
	risk     int
	phrases  []string
	bodyOnly bool
}

var patterns = []pattern{
	{
		finding: "Urgency language detected",
		risk:    25,
		phrases: []string{"urgent", "immediate", "action required", "suspended", "verify now",
			"within 24 hours", "final notice", "expires today"},
	},
	{
		finding:  "Financial transaction language detected",
		risk:     20,
		bodyOnly: true,
		phrases: []string{"payment", "invoice", "wire transfer", "bitcoin", "bank account",
			"gift card", "refund"},
	},
	{
		finding:  "Credential harvesting pattern detected",
		risk:     30,
		bodyOnly: true,
		phrases: []string{"verify your account", "confirm your identity", "update password",
			"login here", "reset your password", "confirm your password"},
	},
	{
		finding:  "Secrecy request detected",
		risk:     15,
		bodyOnly: true,
		phrases:  []string{"keep this confidential", "do not tell", "don't tell anyone", "between us"},
	},
}

// Detector scores manipulation language in a message
type Detector struct {
	logger *zap.Logger
}

// NewDetector creates a social engineering detector
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{logger: logger}
}

// Detect returns additive risk for each pattern family found, capped at 100
func (d *Detector) Detect(ctx context.Context, subject, body string) (*core.AnalyzerOutcome, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subj := normalize(subject)
	text := normalize(body)

	risk := 0
	findings := []string{}
	for _, p := range patterns {
		if p.matches(subj, text) {
			risk += p.risk
			findings = append(findings, p.finding)
		}
	}
	risk = core.ClampScore(risk)

	described := "No manipulation patterns detected"
	if len(findings) > 0 {
		described = strings.Join(findings, ", ")
	}

	d.logger.Debug("Social engineering checked",
		zap.Int("risk_score", risk),
		zap.Strings("findings", findings))

	return &core.AnalyzerOutcome{
		Score:           risk,
		Findings:        findings,
		Summary:         fmt.Sprintf("Social Engineering Risk: %d/100 | %s", risk, described),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (p pattern) matches(subject, body string) bool {
	for _, phrase := range p.phrases {
		if !p.bodyOnly && strings.Contains(subject, phrase) {
			return true
		}
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

// normalize folds compatibility forms and case so that "ＵＲＧＥＮＴ" matches "urgent"
func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
