package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/utils"
)

func newCli(t *testing.T, triage *fakeTriage, format string, verbose bool) (*CliFilter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	logger := zaptest.NewLogger(t)
	f, err := NewCliFilter(triage, utils.NewTextProcessor(logger), logger, &out, format, verbose)
	require.NoError(t, err)
	return f, &out
}

func TestCliText(t *testing.T) {
	v := verdict(core.ClassificationSuspicious, 45, core.ActionWarnUser)
	v.Trace = []core.TraceEntry{{ToolName: core.ToolURLScan, OutputSummary: "Found 1 URL(s) | Risk: 20/100 | bit.ly"}}
	triage := &fakeTriage{verdict: v}
	f, out := newCli(t, triage, "", true)

	got, err := f.AnalyzeRaw(context.Background(), crlf(multipartMessage))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	text := out.String()
	assert.Contains(t, text, "From: billing@paypa1.com")
	assert.Contains(t, text, "Attachment: invoice.pdf.exe (application/x-msdownload)")
	assert.Contains(t, text, "Classification: SUSPICIOUS")
	assert.Contains(t, text, "Final risk score: 45/100")
	assert.Contains(t, text, "scan_urls")
}

func TestCliJSON(t *testing.T) {
	triage := &fakeTriage{verdict: verdict(core.ClassificationMalicious, 80, core.ActionBlockSender)}
	f, out := newCli(t, triage, "JSON", false)

	_, err := f.AnalyzeRaw(context.Background(), crlf(multipartMessage))
	require.NoError(t, err)

	var decoded core.SecurityVerdict
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, core.ClassificationMalicious, decoded.Classification)
}

func TestCliYAML(t *testing.T) {
	triage := &fakeTriage{verdict: verdict(core.ClassificationSafe, 3, core.ActionAllow)}
	f, out := newCli(t, triage, "yaml", false)

	_, err := f.AnalyzeRaw(context.Background(), crlf(multipartMessage))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "SAFE", decoded["classification"])
	assert.Equal(t, "allow", decoded["recommended_action"])
}

func TestCliErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)
	_, err := NewCliFilter(&fakeTriage{}, utils.NewTextProcessor(logger), logger, &bytes.Buffer{}, "xml", false)
	assert.Error(t, err)

	f, _ := newCli(t, &fakeTriage{err: core.ErrOrchestration}, "text", false)
	_, err = f.AnalyzeRaw(context.Background(), crlf(multipartMessage))
	assert.ErrorIs(t, err, core.ErrOrchestration)
}
