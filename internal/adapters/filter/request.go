package filter

import (
	"strings"

	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/utils"
)

// Placeholders substituted for blank message parts
const (
	NoSubjectPlaceholder = "(no subject)"
	EmptyBodyPlaceholder = "(empty body)"
)

// NewRequestFromMessage normalizes a parsed message into an analysis request.
// The envelope sender wins over the From header when both are present.
func NewRequestFromMessage(tp *utils.TextProcessor, envelopeSender string, msg *ParsedMessage, maxBodyChars int) (*core.AnalysisRequest, error) {
	sender := strings.Trim(strings.TrimSpace(envelopeSender), "<>")
	if sender == "" {
		sender = msg.From
	}

	if maxBodyChars <= 0 || maxBodyChars > core.MaxBodyLength {
		maxBodyChars = core.MaxBodyLength
	}

	subject := utils.Preview(tp.SanitizeUTF8(msg.Subject), core.MaxSubjectLength)
	body := tp.ProcessText(msg.Body(), maxBodyChars)

	return core.NewAnalysisRequest(
		sender,
		utils.OrPlaceholder(subject, NoSubjectPlaceholder),
		utils.OrPlaceholder(body, EmptyBodyPlaceholder),
		msg.Attachments,
	)
}
