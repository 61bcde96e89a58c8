package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/ports"
)

const serviceName = "email-threat-triage"

const requestSchemaURL = "analyze-request.schema.json"

const requestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["sender_email", "subject", "body"],
	"additionalProperties": false,
	"properties": {
		"sender_email": {"type": "string", "minLength": 3},
		"subject": {"type": "string"},
		"body": {"type": "string"},
		"attachments": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["filename"],
				"additionalProperties": false,
				"properties": {
					"filename": {"type": "string"},
					"mime_type": {"type": "string"}
				}
			}
		}
	}
}`

// Options configures the HTTP listener
type Options struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRequestBytes int64
}

// Server exposes the triage service over HTTP
type Server struct {
	triage    ports.Triage
	checks    map[string]ports.HealthChecker
	metrics   http.Handler
	schema    *jsonschema.Schema
	opts      Options
	logger    *zap.Logger
	startTime time.Time
	server    *http.Server
}

// NewServer creates the HTTP API. metrics and checks may be nil.
func NewServer(
	triage ports.Triage,
	opts Options,
	metrics http.Handler,
	checks map[string]ports.HealthChecker,
	logger *zap.Logger,
) (*Server, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(requestSchemaURL, strings.NewReader(requestSchema)); err != nil {
		return nil, fmt.Errorf("add request schema: %w", err)
	}
	schema, err := compiler.Compile(requestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}

	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = 1 << 20
	}

	return &Server{
		triage:    triage,
		checks:    checks,
		metrics:   metrics,
		schema:    schema,
		opts:      opts,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/verdicts", s.handleListVerdicts)
	mux.HandleFunc("GET /api/verdicts/{id}", s.handleGetVerdict)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start starts listening in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.ListenAddress, err)
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	s.logger.Info("HTTP API starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the listener down, waiting for in-flight requests
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ProcessEmail analyzes a request directly
func (s *Server) ProcessEmail(ctx context.Context, req *core.AnalysisRequest) (*core.SecurityVerdict, error) {
	return s.triage.Analyze(ctx, req)
}

type analyzeRequest struct {
	SenderEmail string            `json:"sender_email"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Attachments []core.Attachment `json:"attachments"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON", Detail: err.Error()})
		return
	}
	if err := s.schema.Validate(instance); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request does not match schema", Detail: err.Error()})
		return
	}

	var body analyzeRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON", Detail: err.Error()})
		return
	}

	req, err := core.NewAnalysisRequest(body.SenderEmail, body.Subject, body.Body, body.Attachments)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	verdict, err := s.triage.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			writeValidationError(w, err)
			return
		}
		s.logger.Error("Analysis failed", zap.String("sender", req.SenderEmail()), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "analysis failed"})
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleGetVerdict(w http.ResponseWriter, r *http.Request) {
	verdict, err := s.triage.Verdict(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleListVerdicts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit", Field: "limit"})
			return
		}
		limit = n
	}

	summaries, err := s.triage.RecentVerdicts(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "verdict not found"})
	case errors.Is(err, core.ErrStoreDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "verdict history is disabled"})
	default:
		s.logger.Error("Verdict store failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "verdict store failure"})
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

type readinessResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: serviceName,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readinessResponse{Status: "ready", Service: serviceName, Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: "invalid analysis request", Detail: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
		resp.Detail = ve.Reason
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
