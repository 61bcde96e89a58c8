package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/config"
	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/ports"
	"github.com/mikey/email-threat-triage/internal/utils"
)

const (
	analysisTimeout    = 30 * time.Second
	maxReasonHeaderLen = 900
	analysisErrHeader  = "X-Threat-Analysis-Error"
)

// PostfixFilter implements a Postfix content filter
type PostfixFilter struct {
	triage  ports.Triage
	tp      *utils.TextProcessor
	logger  *zap.Logger
	cfg     config.ServerConfig
	server  *smtp.Server
	forward func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	triage ports.Triage,
	tp *utils.TextProcessor,
	logger *zap.Logger,
	cfg config.ServerConfig,
) *PostfixFilter {
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = "[THREAT] "
	}

	f := &PostfixFilter{
		triage: triage,
		tp:     tp,
		logger: logger,
		cfg:    cfg,
	}
	f.forward = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	ln, err := net.Listen("tcp", f.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddress, err)
	}

	f.logger.Info("Postfix filter starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail analyzes a request directly
func (f *PostfixFilter) ProcessEmail(ctx context.Context, req *core.AnalysisRequest) (*core.SecurityVerdict, error) {
	return f.triage.Analyze(ctx, req)
}

// filterMessage analyzes a raw message and returns the bytes to re-inject.
// A non-nil error rejects the message.
func (f *PostfixFilter) filterMessage(ctx context.Context, sender string, raw []byte) ([]byte, error) {
	parsed, err := ParseMessage(raw)
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err))
		return nil, &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	req, err := NewRequestFromMessage(f.tp, sender, parsed, f.cfg.MaxBodyChars)
	if err != nil {
		f.logger.Warn("Message cannot be analyzed",
			zap.String("sender", sender),
			zap.Error(err))
		return rewriteHeaders(raw, []headerField{{analysisErrHeader, err.Error()}}, f.ownHeaders(), ""), nil
	}

	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	verdict, err := f.triage.Analyze(ctx, req)
	if err != nil {
		f.logger.Error("Failed to analyze email",
			zap.String("sender", req.SenderEmail()),
			zap.Error(err))
		return rewriteHeaders(raw, []headerField{{analysisErrHeader, err.Error()}}, f.ownHeaders(), ""), nil
	}

	if verdict.Classification == core.ClassificationMalicious && f.cfg.BlockMalicious {
		f.logger.Info("Rejecting malicious email",
			zap.String("sender", req.SenderEmail()),
			zap.String("verdict_id", verdict.ID),
			zap.Int("score", verdict.FinalRiskScore),
			zap.String("reason", verdict.ReasoningSummary))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as malicious (score: %d)", verdict.FinalRiskScore),
		}
	}

	h := f.cfg.Headers
	added := []headerField{
		{h.Classification, string(verdict.Classification)},
		{h.Score, strconv.Itoa(verdict.FinalRiskScore)},
		{h.Action, string(verdict.RecommendedAction)},
		{h.Reason, utils.Preview(verdict.ReasoningSummary, maxReasonHeaderLen)},
		{h.VerdictID, verdict.ID},
	}

	newSubject := ""
	if verdict.Classification != core.ClassificationSafe && f.cfg.ModifySubject && f.cfg.SubjectPrefix != "" {
		if !strings.HasPrefix(parsed.Subject, f.cfg.SubjectPrefix) {
			newSubject = f.cfg.SubjectPrefix + parsed.Subject
		}
	}

	f.logger.Info("Processed email",
		zap.String("sender", req.SenderEmail()),
		zap.String("verdict_id", verdict.ID),
		zap.String("classification", string(verdict.Classification)),
		zap.Int("score", verdict.FinalRiskScore))

	return rewriteHeaders(raw, added, f.ownHeaders(), newSubject), nil
}

// ownHeaders lists the header names this filter writes; incoming copies are dropped
func (f *PostfixFilter) ownHeaders() []string {
	h := f.cfg.Headers
	return []string{h.Classification, h.Score, h.Action, h.Reason, h.VerdictID, analysisErrHeader}
}

type headerField struct {
	name  string
	value string
}

// rewriteHeaders prepends added fields, drops fields named in strip and
// replaces the Subject when newSubject is set. The body is left untouched.
func rewriteHeaders(raw []byte, added []headerField, strip []string, newSubject string) []byte {
	headerEnd, sepLen := bytes.Index(raw, []byte("\r\n\r\n")), 4
	if headerEnd == -1 {
		headerEnd, sepLen = bytes.Index(raw, []byte("\n\n")), 2
	}
	if headerEnd == -1 {
		headerEnd, sepLen = len(raw), 0
	}

	var out bytes.Buffer
	for _, f := range added {
		if f.name == "" {
			continue
		}
		fmt.Fprintf(&out, "%s: %s\r\n", f.name, encodeHeaderValue(f.value))
	}

	subjectWritten := false
	for _, field := range splitHeaderFields(raw[:headerEnd]) {
		name := field
		if i := bytes.IndexByte(field, ':'); i >= 0 {
			name = field[:i]
		}
		key := strings.TrimSpace(string(name))

		if containsFold(strip, key) {
			continue
		}
		if newSubject != "" && strings.EqualFold(key, "Subject") {
			if !subjectWritten {
				fmt.Fprintf(&out, "Subject: %s\r\n", encodeHeaderValue(newSubject))
				subjectWritten = true
			}
			continue
		}
		out.Write(field)
		if !bytes.HasSuffix(field, []byte("\n")) {
			out.WriteString("\r\n")
		}
	}
	if newSubject != "" && !subjectWritten {
		fmt.Fprintf(&out, "Subject: %s\r\n", encodeHeaderValue(newSubject))
	}

	out.WriteString("\r\n")
	if sepLen > 0 {
		out.Write(raw[headerEnd+sepLen:])
	}
	return out.Bytes()
}

// splitHeaderFields splits a header block into fields, keeping folded lines together
func splitHeaderFields(block []byte) [][]byte {
	var fields [][]byte
	for len(block) > 0 {
		end := bytes.IndexByte(block, '\n')
		line := block
		if end >= 0 {
			line = block[:end+1]
		}
		if (line[0] == ' ' || line[0] == '\t') && len(fields) > 0 {
			fields[len(fields)-1] = append(fields[len(fields)-1], line...)
		} else {
			fields = append(fields, append([]byte(nil), line...))
		}
		block = block[len(line):]
	}
	return fields
}

func encodeHeaderValue(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	return mime.QEncoding.Encode("utf-8", v)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if v != "" && strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// sendToPostfix re-injects the processed email into Postfix
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.cfg.PostfixAddress, strconv.Itoa(f.cfg.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// already delivered
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	out, err := s.filter.filterMessage(context.Background(), s.sender, raw)
	if err != nil {
		return err
	}

	if err := s.filter.forward(s.sender, s.recipients, out); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.String("sender", s.sender),
			zap.Error(err))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary failure re-injecting message",
		}
	}

	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
