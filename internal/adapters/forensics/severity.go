package forensics

// Severity is a totally ordered attachment threat tier
type Severity int

const (
	SeveritySafe Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{
	SeveritySafe:     "SAFE",
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if s < SeveritySafe || s > SeverityCritical {
		return "UNKNOWN"
	}
	return severityNames[s]
}

// MaxSeverity returns the more severe of a and b
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}
