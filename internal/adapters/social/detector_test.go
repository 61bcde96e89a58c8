package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDetect(t *testing.T) {
	d := NewDetector(zaptest.NewLogger(t))

	tests := []struct {
		name     string
		subject  string
		body     string
		want     int
		findings []string
	}{
		{"benign", "Lunch", "See you at noon.", 0, []string{}},
		{"urgency in subject", "URGENT: review", "Please look.", 25, []string{"Urgency language detected"}},
		{"fullwidth urgency", "ＵＲＧＥＮＴ", "Please look.", 25, []string{"Urgency language detected"}},
		{"financial only counts in body", "Invoice attached", "Hello.", 0, []string{}},
		{"credential harvesting across whitespace", "Hi", "Please verify   your\naccount today.", 30,
			[]string{"Credential harvesting pattern detected"}},
		{"all families", "Action required", "Wire transfer needed. Verify your account. Keep this confidential.", 90,
			[]string{
				"Urgency language detected",
				"Financial transaction language detected",
				"Credential harvesting pattern detected",
				"Secrecy request detected",
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := d.Detect(context.Background(), tt.subject, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Score)
			assert.Equal(t, tt.findings, out.Findings)
		})
	}
}

func TestDetectSummary(t *testing.T) {
	d := NewDetector(zaptest.NewLogger(t))

	out, err := d.Detect(context.Background(), "Lunch", "noon")
	require.NoError(t, err)
	assert.Equal(t, "Social Engineering Risk: 0/100 | No manipulation patterns detected", out.Summary)
}

func TestDetectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDetector(zaptest.NewLogger(t)).Detect(ctx, "a", "b")
	assert.ErrorIs(t, err, context.Canceled)
}
