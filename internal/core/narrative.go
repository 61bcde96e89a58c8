package core

import (
	"strings"
)

// componentAlertThreshold is the score above which a component gets a clause
const componentAlertThreshold = 60

const (
	clauseMalware     = "Malicious attachment detected (possible malware delivery)"
	clausePhishing    = "Suspicious sender domain (possible phishing)"
	clauseCredentials = "Dangerous URLs found (possible credential theft)"
	clauseSocial      = "Social engineering patterns detected (manipulation attempt)"

	noConcernsMessage = "Email appears legitimate with no significant security concerns."
)

// Explain renders the templated reasoning for a verdict.
// Attachment risk is checked first, so malware framing wins over phishing framing.
func Explain(s AggregatedScores, c Classification) string {
	var clauses []string
	malware := false
	if s.AttachmentRisk > componentAlertThreshold {
		clauses = append(clauses, clauseMalware)
		malware = true
	}
	if s.DomainRisk > componentAlertThreshold {
		clauses = append(clauses, clausePhishing)
	}
	if s.URLRisk > componentAlertThreshold {
		clauses = append(clauses, clauseCredentials)
	}
	if s.SocialEngineeringRisk > componentAlertThreshold {
		clauses = append(clauses, clauseSocial)
	}

	if len(clauses) == 0 {
		return noConcernsMessage
	}

	joined := strings.Join(clauses, "; ")
	switch c {
	case ClassificationMalicious:
		if malware {
			return "CRITICAL THREAT - malware: " + joined + ". Quarantine the message and do not open attachments."
		}
		return "CRITICAL THREAT - phishing: " + joined + ". Do not click links or reply; block the sender."
	case ClassificationSuspicious:
		return "CAUTION - suspicious indicators: " + joined + ". Verify the sender before acting."
	default:
		return "Low overall risk, isolated indicators: " + joined + "."
	}
}
