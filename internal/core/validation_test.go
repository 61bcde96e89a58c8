package core_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/email-threat-triage/internal/core"
)

func TestNewAnalysisRequest(t *testing.T) {
	req, err := core.NewAnalysisRequest("Alice <alice@Example.COM>", "Hello", "Body text", []core.Attachment{
		{Filename: "  report.pdf ", MIMEType: "Application/PDF"},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", req.SenderEmail())
	assert.Equal(t, "Hello", req.Subject())
	assert.Equal(t, "Body text", req.Body())
	assert.True(t, req.HasAttachments())
	assert.Equal(t, []core.Attachment{{Filename: "report.pdf", MIMEType: "application/pdf"}}, req.Attachments())
}

func TestAnalysisRequestIsImmutable(t *testing.T) {
	in := []core.Attachment{{Filename: "a.pdf"}}
	req, err := core.NewAnalysisRequest("a@b.io", "s", "b", in)
	require.NoError(t, err)

	in[0].Filename = "changed.exe"
	out := req.Attachments()
	out[0].Filename = "also-changed.exe"

	assert.Equal(t, "a.pdf", req.Attachments()[0].Filename)
}

func TestNewAnalysisRequestRejects(t *testing.T) {
	tests := []struct {
		name        string
		sender      string
		subject     string
		body        string
		attachments []core.Attachment
		field       string
	}{
		{"empty sender", "", "s", "b", nil, "sender_email"},
		{"malformed sender", "not-an-address", "s", "b", nil, "sender_email"},
		{"unqualified domain", "root@localhost", "s", "b", nil, "sender_email"},
		{"empty subject", "a@b.io", "", "b", nil, "subject"},
		{"long subject", "a@b.io", strings.Repeat("x", core.MaxSubjectLength+1), "b", nil, "subject"},
		{"blank body", "a@b.io", "s", "", nil, "body"},
		{"long body", "a@b.io", "s", strings.Repeat("x", core.MaxBodyLength+1), nil, "body"},
		{"invalid utf8", "a@b.io", "s", "bad\xff", nil, "body"},
		{"empty filename", "a@b.io", "s", "b", []core.Attachment{{Filename: " "}}, "attachments[0].filename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.NewAnalysisRequest(tt.sender, tt.subject, tt.body, tt.attachments)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)

			var ve *core.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestNewAnalysisRequestAcceptsWhitespaceText(t *testing.T) {
	req, err := core.NewAnalysisRequest("a@b.io", "   ", "\n\t", nil)
	require.NoError(t, err)
	assert.Equal(t, "   ", req.Subject())
	assert.Equal(t, "\n\t", req.Body())
}

func TestNewAnalysisRequestLimitsCountCharacters(t *testing.T) {
	subject := strings.Repeat("é", core.MaxSubjectLength)
	_, err := core.NewAnalysisRequest("a@b.io", subject, "b", nil)
	assert.NoError(t, err)
}
