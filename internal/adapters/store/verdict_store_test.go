package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/email-threat-triage/internal/core"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLStore(DriverSQLite, filepath.Join(t.TempDir(), "verdicts.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func verdictAt(id string, at time.Time, score int, c core.Classification) *core.SecurityVerdict {
	return &core.SecurityVerdict{
		ID:       id,
		Metadata: core.EmailMetadata{Sender: "x@acme.io", Subject: "subject " + id, AnalyzedAt: at},
		Trace: []core.TraceEntry{{
			ToolName:      core.ToolDomainReputation,
			CalledAt:      at,
			InputParams:   map[string]any{"sender_email": "x@acme.io"},
			OutputSummary: "Domain: acme.io | Trust Score: 100/100 | Factors: None",
		}},
		FinalRiskScore:       score,
		Classification:       c,
		RecommendedAction:    core.ActionAllow,
		ReasoningSummary:     "ok",
		ConfidencePercentage: 92,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	v := verdictAt("v-1", at, 42, core.ClassificationSuspicious)
	require.NoError(t, s.Save(ctx, v))

	got, err := s.Get(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, 42, got.FinalRiskScore)
	assert.Equal(t, core.ClassificationSuspicious, got.Classification)
	assert.True(t, at.Equal(got.Metadata.AnalyzedAt))
	require.Len(t, got.Trace, 1)
	assert.Equal(t, core.ToolDomainReputation, got.Trace[0].ToolName)

	assert.Error(t, s.Save(ctx, v), "duplicate IDs are rejected")
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, verdictAt(fmt.Sprintf("v-%d", i), base.Add(time.Duration(i)*time.Minute), i*10, core.ClassificationSafe)))
	}

	got, err := s.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "v-4", got[0].ID)
	assert.Equal(t, "v-3", got[1].ID)
	assert.Equal(t, "v-2", got[2].ID)
	assert.Equal(t, 40, got[0].FinalRiskScore)
	assert.Equal(t, core.ClassificationSafe, got[0].Classification)
	assert.True(t, base.Add(4*time.Minute).Equal(got[0].AnalyzedAt))

	all, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore("oracle", "", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
