package core

import "fmt"

// ClassificationPolicy holds the lower bound of each elevated tier.
// These are tunable policy values, not derived from the weights.
type ClassificationPolicy struct {
	SuspiciousFrom int
	MaliciousFrom  int
}

// DefaultPolicy: 0-30 SAFE, 31-60 SUSPICIOUS, 61-100 MALICIOUS
var DefaultPolicy = ClassificationPolicy{
	SuspiciousFrom: 31,
	MaliciousFrom:  61,
}

// Classifier maps a final score to a tier and recommended action
type Classifier struct {
	policy ClassificationPolicy
}

// NewClassifier creates a classifier, rejecting overlapping or out-of-range bounds
func NewClassifier(p ClassificationPolicy) (*Classifier, error) {
	if p.SuspiciousFrom <= MinScore || p.MaliciousFrom > MaxScore {
		return nil, fmt.Errorf("classification bounds must lie within (%d, %d]: %+v", MinScore, MaxScore, p)
	}
	if p.SuspiciousFrom > p.MaliciousFrom {
		return nil, fmt.Errorf("suspicious bound %d exceeds malicious bound %d", p.SuspiciousFrom, p.MaliciousFrom)
	}
	return &Classifier{policy: p}, nil
}

// Classify is total over all integers
func (c *Classifier) Classify(score int) (Classification, Action) {
	switch {
	case score >= c.policy.MaliciousFrom:
		return ClassificationMalicious, ActionBlockSender
	case score >= c.policy.SuspiciousFrom:
		return ClassificationSuspicious, ActionWarnUser
	default:
		return ClassificationSafe, ActionAllow
	}
}
