package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/ports"
)

type fakeTriage struct {
	analyzeErr error
	verdicts   map[string]*core.SecurityVerdict
	storeErr   error
	lastLimit  int
	lastReq    *core.AnalysisRequest
}

func (f *fakeTriage) Analyze(_ context.Context, req *core.AnalysisRequest) (*core.SecurityVerdict, error) {
	f.lastReq = req
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &core.SecurityVerdict{
		ID:                "v-1",
		Metadata:          core.EmailMetadata{Sender: req.SenderEmail(), Subject: req.Subject()},
		FinalRiskScore:    12,
		Classification:    core.ClassificationSafe,
		RecommendedAction: core.ActionAllow,
	}, nil
}

func (f *fakeTriage) Verdict(_ context.Context, id string) (*core.SecurityVerdict, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	v, ok := f.verdicts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return v, nil
}

func (f *fakeTriage) RecentVerdicts(_ context.Context, limit int) ([]core.VerdictSummary, error) {
	f.lastLimit = limit
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return []core.VerdictSummary{{ID: "v-1"}}, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, triage *fakeTriage, checks map[string]ports.HealthChecker) http.Handler {
	t.Helper()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "threat_triage_cache_hits_total 0\n")
	})
	s, err := NewServer(triage, Options{MaxRequestBytes: 4096}, metrics, checks, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAnalyze(t *testing.T) {
	triage := &fakeTriage{}
	h := newTestServer(t, triage, nil)

	rec := do(h, "POST", "/api/analyze", `{
		"sender_email": "Alice@Acme.IO",
		"subject": "Quarterly report",
		"body": "See attached",
		"attachments": [{"filename": "report.pdf", "mime_type": "application/pdf"}]
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var v core.SecurityVerdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "v-1", v.ID)
	assert.Equal(t, core.ClassificationSafe, v.Classification)

	require.NotNil(t, triage.lastReq)
	assert.Len(t, triage.lastReq.Attachments(), 1)
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{name: "malformed JSON", body: `{"sender_email":`, code: http.StatusBadRequest},
		{name: "missing body", body: `{"sender_email": "a@b.io", "subject": "hi"}`, code: http.StatusBadRequest},
		{name: "unknown field", body: `{"sender_email": "a@b.io", "subject": "hi", "body": "x", "extra": 1}`, code: http.StatusBadRequest},
		{name: "wrong type", body: `{"sender_email": "a@b.io", "subject": 5, "body": "x"}`, code: http.StatusBadRequest},
		{name: "blank subject", body: `{"sender_email": "a@b.io", "subject": "  ", "body": "x"}`, code: http.StatusBadRequest, field: "subject"},
		{name: "bad sender", body: `{"sender_email": "not-an-address", "subject": "hi", "body": "x"}`, code: http.StatusBadRequest, field: "sender_email"},
		{name: "too large", body: `{"sender_email": "a@b.io", "subject": "hi", "body": "` + strings.Repeat("x", 5000) + `"}`, code: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triage := &fakeTriage{}
			rec := do(newTestServer(t, triage, nil), "POST", "/api/analyze", tt.body)

			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Nil(t, triage.lastReq, "invalid requests never reach analysis")
			if tt.field != "" {
				assert.Equal(t, tt.field, decodeError(t, rec).Field)
			}
		})
	}
}

func TestAnalyzeOrchestrationFailure(t *testing.T) {
	triage := &fakeTriage{analyzeErr: fmt.Errorf("aggregate: %w", core.ErrOrchestration)}
	rec := do(newTestServer(t, triage, nil), "POST", "/api/analyze",
		`{"sender_email": "a@b.io", "subject": "hi", "body": "x"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "analysis failed", decodeError(t, rec).Error)
}

func TestGetVerdict(t *testing.T) {
	triage := &fakeTriage{verdicts: map[string]*core.SecurityVerdict{"abc": {ID: "abc", FinalRiskScore: 70}}}
	h := newTestServer(t, triage, nil)

	rec := do(h, "GET", "/api/verdicts/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v core.SecurityVerdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, 70, v.FinalRiskScore)

	assert.Equal(t, http.StatusNotFound, do(h, "GET", "/api/verdicts/missing", "").Code)
}

func TestVerdictsStoreDisabled(t *testing.T) {
	h := newTestServer(t, &fakeTriage{storeErr: core.ErrStoreDisabled}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, do(h, "GET", "/api/verdicts/abc", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, "GET", "/api/verdicts", "").Code)
}

func TestListVerdicts(t *testing.T) {
	triage := &fakeTriage{}
	h := newTestServer(t, triage, nil)

	rec := do(h, "GET", "/api/verdicts?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, triage.lastLimit)

	var list []core.VerdictSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusBadRequest, do(h, "GET", "/api/verdicts?limit=abc", "").Code)
	assert.Equal(t, http.StatusInternalServerError,
		do(newTestServer(t, &fakeTriage{storeErr: errors.New("disk full")}, nil), "GET", "/api/verdicts", "").Code)
}

func TestHealthAndReadiness(t *testing.T) {
	h := newTestServer(t, &fakeTriage{}, map[string]ports.HealthChecker{
		"store": pinger{},
	})

	rec := do(h, "GET", "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(h, "GET", "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ready readinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "ok", ready.Checks["store"])

	h = newTestServer(t, &fakeTriage{}, map[string]ports.HealthChecker{
		"store": pinger{err: errors.New("connection refused")},
	})
	rec = do(h, "GET", "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
}

func TestMetricsRoute(t *testing.T) {
	rec := do(newTestServer(t, &fakeTriage{}, nil), "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "threat_triage_cache_hits_total")
}

func TestStartStop(t *testing.T) {
	s, err := NewServer(&fakeTriage{}, Options{ListenAddress: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second},
		nil, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.NoError(t, s.Stop())
}
