package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Request field limits, in characters
const (
	MaxSubjectLength = 500
	MaxBodyLength    = 50000
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("invalid analysis request")
	// ErrOrchestration is returned when the analysis machinery itself breaks
	ErrOrchestration = errors.New("orchestration failed")
	// ErrNotFound is returned by stores and caches for unknown keys
	ErrNotFound = errors.New("not found")
	// ErrStoreDisabled is returned when verdict history is not configured
	ErrStoreDisabled = errors.New("verdict store disabled")
)

// ValidationError describes a malformed request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewAnalysisRequest validates the fields and builds an immutable request
func NewAnalysisRequest(sender, subject, body string, attachments []Attachment) (*AnalysisRequest, error) {
	addr, err := normalizeSender(sender)
	if err != nil {
		return nil, err
	}

	if err := checkLength("subject", subject, MaxSubjectLength); err != nil {
		return nil, err
	}
	if err := checkLength("body", body, MaxBodyLength); err != nil {
		return nil, err
	}

	copied := make([]Attachment, 0, len(attachments))
	for i, a := range attachments {
		name := strings.TrimSpace(a.Filename)
		if name == "" {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("attachments[%d].filename", i),
				Reason: "must not be empty",
			}
		}
		copied = append(copied, Attachment{
			Filename: name,
			MIMEType: strings.ToLower(strings.TrimSpace(a.MIMEType)),
		})
	}

	return &AnalysisRequest{
		senderEmail: addr,
		subject:     subject,
		body:        body,
		attachments: copied,
	}, nil
}

func normalizeSender(sender string) (string, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return "", &ValidationError{Field: "sender_email", Reason: "must not be empty"}
	}

	parsed, err := mail.ParseAddress(sender)
	if err != nil {
		return "", &ValidationError{Field: "sender_email", Reason: "malformed address"}
	}

	at := strings.LastIndex(parsed.Address, "@")
	if at <= 0 || at == len(parsed.Address)-1 {
		return "", &ValidationError{Field: "sender_email", Reason: "malformed address"}
	}
	domain := parsed.Address[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", &ValidationError{Field: "sender_email", Reason: "domain must be fully qualified"}
	}

	return parsed.Address[:at] + "@" + strings.ToLower(domain), nil
}

func checkLength(field, value string, max int) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if !utf8.ValidString(value) {
		return &ValidationError{Field: field, Reason: "must be valid UTF-8"}
	}
	if n := utf8.RuneCountInString(value); n > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("exceeds %d characters (got %d)", max, n)}
	}
	return nil
}
