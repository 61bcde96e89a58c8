package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Weights are the aggregation coefficients per component
type Weights struct {
	Attachment        float64
	Domain            float64
	URL               float64
	SocialEngineering float64
}

// DefaultWeights sum to 1.0
var DefaultWeights = Weights{
	Attachment:        0.35,
	Domain:            0.30,
	URL:               0.20,
	SocialEngineering: 0.15,
}

// Aggregator combines component scores into one final risk score
type Aggregator struct {
	attachment decimal.Decimal
	domain     decimal.Decimal
	url        decimal.Decimal
	social     decimal.Decimal
}

// NewAggregator creates an aggregator with the given weights
func NewAggregator(w Weights) (*Aggregator, error) {
	for name, v := range map[string]float64{
		"attachment":         w.Attachment,
		"domain":             w.Domain,
		"url":                w.URL,
		"social_engineering": w.SocialEngineering,
	} {
		if v < 0 {
			return nil, fmt.Errorf("weight %s must not be negative: %v", name, v)
		}
	}

	return &Aggregator{
		attachment: decimal.NewFromFloat(w.Attachment),
		domain:     decimal.NewFromFloat(w.Domain),
		url:        decimal.NewFromFloat(w.URL),
		social:     decimal.NewFromFloat(w.SocialEngineering),
	}, nil
}

// Aggregate returns the weighted sum truncated toward zero and clamped to [0,100].
// Decimal arithmetic keeps products such as 0.35*100 exact before truncation.
func (a *Aggregator) Aggregate(s AggregatedScores) int {
	sum := a.attachment.Mul(decimal.NewFromInt(int64(ClampScore(s.AttachmentRisk)))).
		Add(a.domain.Mul(decimal.NewFromInt(int64(ClampScore(s.DomainRisk))))).
		Add(a.url.Mul(decimal.NewFromInt(int64(ClampScore(s.URLRisk))))).
		Add(a.social.Mul(decimal.NewFromInt(int64(ClampScore(s.SocialEngineeringRisk)))))

	return ClampScore(int(sum.Truncate(0).IntPart()))
}
