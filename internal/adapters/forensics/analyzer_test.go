package forensics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/email-threat-triage/internal/core"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		name     string
		att      core.Attachment
		score    int
		severity Severity
	}{
		{"plain pdf", core.Attachment{Filename: "report.pdf", MIMEType: "application/pdf"}, 0, SeveritySafe},
		{"double extension", core.Attachment{Filename: "report.pdf.exe"}, 95, SeverityCritical},
		{"executable", core.Attachment{Filename: "setup.EXE"}, 85, SeverityCritical},
		{"script", core.Attachment{Filename: "run.ps1"}, 70, SeverityHigh},
		{"macro", core.Attachment{Filename: "budget.xlsm"}, 60, SeverityHigh},
		{"archive", core.Attachment{Filename: "photos.zip"}, 25, SeverityMedium},
		{"mime mismatch", core.Attachment{Filename: "scan.pdf", MIMEType: "application/x-msdownload"}, 20, SeverityHigh},
		{"suspicious name", core.Attachment{Filename: "invoice_2024.pdf"}, 10, SeverityMedium},
		{"capped", core.Attachment{Filename: "invoice_1.pdf.exe", MIMEType: "application/pdf"}, 100, SeverityCritical},
		{"tar.gz is not double extension", core.Attachment{Filename: "logs.tar.gz"}, 25, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Inspect(tt.att)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.severity, r.Severity)
		})
	}
}

func TestAnalyzeAttachments(t *testing.T) {
	a := NewAnalyzer(zaptest.NewLogger(t))

	t.Run("max over files", func(t *testing.T) {
		out, err := a.AnalyzeAttachments(context.Background(), []core.Attachment{
			{Filename: "notes.txt", MIMEType: "text/plain"},
			{Filename: "budget.xlsm"},
			{Filename: "photos.zip", MIMEType: "application/zip"},
		})
		require.NoError(t, err)
		assert.Equal(t, 60, out.Score)
		assert.Contains(t, out.Summary, "Analyzed 3 file(s) | Risk: 60/100 | Max severity: HIGH")
		assert.Len(t, out.Findings, 2)
	})

	t.Run("safe files", func(t *testing.T) {
		out, err := a.AnalyzeAttachments(context.Background(), []core.Attachment{{Filename: "a.png", MIMEType: "image/png"}})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Score)
		assert.Equal(t, "Analyzed 1 file(s) | Risk: 0/100 | Max severity: SAFE | All files appear safe", out.Summary)
	})

	t.Run("empty", func(t *testing.T) {
		out, err := a.AnalyzeAttachments(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Score)
		assert.Equal(t, "No attachments to analyze", out.Summary)
	})
}

func TestSeverityOrder(t *testing.T) {
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityHigh, SeverityCritical))
	assert.Equal(t, SeverityMedium, MaxSeverity(SeverityMedium, SeverityLow))
	assert.Equal(t, "CRITICAL", SeverityCritical.String())
	assert.Equal(t, "UNKNOWN", Severity(42).String())
}
