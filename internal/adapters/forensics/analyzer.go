package forensics

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/core"
)

// Base scores per detected file kind
const (
	doubleExtensionScore = 95
	executableScore      = 85
	scriptScore          = 70
	macroScore           = 60
	archiveScore         = 25

	mimeMismatchRisk = 20
	namePatternRisk  = 10
)

var (
	executableExts = extSet(".exe", ".dll", ".bat", ".cmd", ".com", ".scr", ".vbs", ".js",
		".jar", ".msi", ".app", ".deb", ".rpm", ".pif", ".hta", ".lnk")
	scriptExts  = extSet(".ps1", ".sh", ".py", ".pl", ".rb", ".php", ".wsf")
	macroExts   = extSet(".docm", ".xlsm", ".pptm", ".dotm", ".xltm", ".potm")
	archiveExts = extSet(".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".iso", ".img")
	decoyExts   = extSet(".pdf", ".txt", ".jpg", ".jpeg", ".png", ".gif", ".bmp",
		".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx")

	expectedMIME = map[string]string{
		".pdf":  "application/pdf",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".exe":  "application/x-msdownload",
		".zip":  "application/zip",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
	}

	suspiciousNames = []*regexp.Regexp{
		regexp.MustCompile(`invoice.*\d+`),
		regexp.MustCompile(`payment.*details`),
		regexp.MustCompile(`urgent.*document`),
		regexp.MustCompile(`password.*reset`),
		regexp.MustCompile(`account.*verification`),
	}
)

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

func in(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

// FileReport is the assessment of a single attachment
type FileReport struct {
	Filename   string
	Score      int
	Severity   Severity
	Indicators []string
}

// Analyzer inspects attachment names and declared types
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates an attachment analyzer
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// AnalyzeAttachments scores each file; the overall score is the worst file's
func (a *Analyzer) AnalyzeAttachments(ctx context.Context, attachments []core.Attachment) (*core.AnalyzerOutcome, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(attachments) == 0 {
		return &core.AnalyzerOutcome{
			Findings:        []string{},
			Summary:         "No attachments to analyze",
			ExecutionTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	score := 0
	maxSeverity := SeveritySafe
	findings := []string{}
	for _, att := range attachments {
		report := Inspect(att)
		if report.Score > score {
			score = report.Score
		}
		maxSeverity = MaxSeverity(maxSeverity, report.Severity)
		for _, ind := range report.Indicators {
			findings = append(findings, fmt.Sprintf("%s: %s", report.Filename, ind))
		}
	}

	described := "All files appear safe"
	if len(findings) > 0 {
		described = strings.Join(findings, ", ")
	}

	a.logger.Debug("Attachments analyzed",
		zap.Int("attachments", len(attachments)),
		zap.Int("risk_score", score),
		zap.String("max_severity", maxSeverity.String()))

	return &core.AnalyzerOutcome{
		Score:    score,
		Findings: findings,
		Summary: fmt.Sprintf("Analyzed %d file(s) | Risk: %d/100 | Max severity: %s | %s",
			len(attachments), score, maxSeverity, described),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// Inspect assesses one attachment
func Inspect(att core.Attachment) FileReport {
	name := strings.ToLower(strings.TrimSpace(att.Filename))
	ext := path.Ext(name)
	report := FileReport{Filename: att.Filename, Severity: SeveritySafe}

	switch {
	case hasDoubleExtension(name):
		report.Score = doubleExtensionScore
		report.Severity = SeverityCritical
		report.Indicators = append(report.Indicators, "double extension attack")
	case in(executableExts, ext):
		report.Score = executableScore
		report.Severity = SeverityCritical
		report.Indicators = append(report.Indicators, "executable file type "+ext)
	case in(scriptExts, ext):
		report.Score = scriptScore
		report.Severity = SeverityHigh
		report.Indicators = append(report.Indicators, "script file type "+ext)
	case in(macroExts, ext):
		report.Score = macroScore
		report.Severity = SeverityHigh
		report.Indicators = append(report.Indicators, "macro-enabled document "+ext)
	case in(archiveExts, ext):
		report.Score = archiveScore
		report.Severity = SeverityMedium
		report.Indicators = append(report.Indicators, "archive may hide a payload "+ext)
	}

	mime := strings.ToLower(strings.TrimSpace(att.MIMEType))
	if want, ok := expectedMIME[ext]; ok && mime != "" && mime != want {
		report.Score += mimeMismatchRisk
		report.Severity = MaxSeverity(report.Severity, SeverityHigh)
		report.Indicators = append(report.Indicators,
			fmt.Sprintf("MIME type mismatch (expected %s, got %s)", want, mime))
	}

	for _, re := range suspiciousNames {
		if re.MatchString(name) {
			report.Score += namePatternRisk
			report.Severity = MaxSeverity(report.Severity, SeverityMedium)
			report.Indicators = append(report.Indicators, "suspicious filename pattern")
			break
		}
	}

	report.Score = core.ClampScore(report.Score)
	return report
}

// hasDoubleExtension detects a harmless-looking extension followed by an executable one
func hasDoubleExtension(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return false
	}
	last := "." + parts[len(parts)-1]
	if !in(executableExts, last) {
		return false
	}
	for _, p := range parts[1 : len(parts)-1] {
		if in(decoyExts, "."+p) {
			return true
		}
	}
	return false
}
