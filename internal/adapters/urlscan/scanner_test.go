package urlscan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	s, err := NewScanner(Config{
		Shorteners:       DefaultShorteners,
		SuspiciousTLDs:   DefaultSuspiciousTLDs,
		PhishingPatterns: DefaultPhishingPatterns,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestScanBody(t *testing.T) {
	s := newTestScanner(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no urls", "Lunch at noon?", 0},
		{"plain url", "Docs at https://docs.acme.io/start.", 0},
		{"ip host", "Visit http://192.168.1.1/login now", 30},
		{"shortener", "See https://bit.ly/abc", 20},
		{"bad tld and phishing path", "Go to http://secure-login-verify.tk/x", 40},
		{"deep subdomains", "https://paypal.secure.login.example.com/", 10},
		{"capped", "http://10.0.0.1/a http://10.0.0.2/b http://10.0.0.3/c http://10.0.0.4/d", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.ScanBody(context.Background(), tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Score)
			assert.GreaterOrEqual(t, out.ExecutionTimeMS, int64(0))
		})
	}
}

func TestScanBodySummary(t *testing.T) {
	s := newTestScanner(t)

	out, err := s.ScanBody(context.Background(), "nothing here")
	require.NoError(t, err)
	assert.Equal(t, "Found 0 URL(s) | Risk: 0/100 | No suspicious URLs", out.Summary)
	assert.Empty(t, out.Findings)

	out, err = s.ScanBody(context.Background(), "See https://bit.ly/abc")
	require.NoError(t, err)
	assert.Equal(t, "Found 1 URL(s) | Risk: 20/100 | URL shortener detected: https://bit.ly/abc", out.Summary)
}

func TestScanBodyCanceled(t *testing.T) {
	s := newTestScanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ScanBody(ctx, "https://bit.ly/abc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractURLs(t *testing.T) {
	t.Run("plain text dedupes and trims punctuation", func(t *testing.T) {
		got := ExtractURLs("a https://x.io/a, then (https://x.io/a) and http://y.io.")
		assert.Equal(t, []string{"https://x.io/a", "http://y.io"}, got)
	})

	t.Run("html anchors", func(t *testing.T) {
		body := `<html><body><p>Hi, see https://docs.acme.io</p>` +
			`<a href="https://bit.ly/a?x=1&amp;y=2">here</a><a href="mailto:x@y.io">mail</a></body></html>`
		got := ExtractURLs(body)
		assert.Equal(t, []string{"https://bit.ly/a?x=1&y=2", "https://docs.acme.io"}, got)
	})
}

func TestNewScannerRejectsBadPattern(t *testing.T) {
	_, err := NewScanner(Config{PhishingPatterns: []string{"("}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
