package domainintel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/whitelist"
)

// Trust deductions per risk factor
const (
	blocklistPenalty     = 50
	impersonationPenalty = 40
	suspiciousTLDPenalty = 25
	missingMXPenalty     = 15
	structurePenalty     = 10
)

// DefaultBrands are the domains checked for impersonation
var DefaultBrands = []string{
	"google.com", "microsoft.com", "apple.com", "amazon.com",
	"paypal.com", "facebook.com", "linkedin.com", "netflix.com",
	"dropbox.com", "adobe.com", "salesforce.com",
}

// DefaultBlocklist seeds the domain blocklist
var DefaultBlocklist = []string{
	"evilcorp.com",
	"phishing-test.tk",
	"malware-download.ml",
	"scam-alert.buzz",
}

// DefaultSuspiciousTLDs are TLDs commonly abused for throwaway domains
var DefaultSuspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".buzz", ".work", ".click"}

// Config configures the domain analyzer
type Config struct {
	TrustedDomains []string
	Blocklist      []string
	Brands         []string
	SuspiciousTLDs []string
	CheckMX        bool
}

// MXResolver looks up mail exchangers; *net.Resolver satisfies it
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Analyzer scores sender domain trust
type Analyzer struct {
	trusted  *whitelist.Checker
	blocked  *whitelist.Checker
	brands   []string
	tlds     []string
	resolver MXResolver
	logger   *zap.Logger
}

// NewAnalyzer creates a domain analyzer. resolver may be nil, which disables MX checks.
func NewAnalyzer(cfg Config, resolver MXResolver, logger *zap.Logger) *Analyzer {
	brands := make([]string, 0, len(cfg.Brands))
	for _, b := range cfg.Brands {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			brands = append(brands, b)
		}
	}

	tlds := make([]string, 0, len(cfg.SuspiciousTLDs))
	for _, t := range cfg.SuspiciousTLDs {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		tlds = append(tlds, t)
	}

	if !cfg.CheckMX {
		resolver = nil
	}

	return &Analyzer{
		trusted:  whitelist.NewChecker("trusted_domains", cfg.TrustedDomains, logger),
		blocked:  whitelist.NewChecker("blocklist", cfg.Blocklist, logger),
		brands:   brands,
		tlds:     tlds,
		resolver: resolver,
		logger:   logger,
	}
}

// AnalyzeSender returns a trust score for the sender's domain
func (a *Analyzer) AnalyzeSender(ctx context.Context, sender string) (*core.AnalyzerOutcome, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	domain := domainOf(sender)
	if domain == "" {
		return nil, fmt.Errorf("sender %q has no domain", sender)
	}

	trust := core.MaxScore
	factors := []string{}

	if a.trusted.Contains(domain) {
		factors = append(factors, "Trusted domain")
		return a.outcome(domain, trust, factors, start), nil
	}

	if a.blocked.Contains(domain) {
		trust -= blocklistPenalty
		factors = append(factors, "Domain found in blocklist")
	}

	if brand, ok := a.impersonatedBrand(domain); ok {
		trust -= impersonationPenalty
		factors = append(factors, fmt.Sprintf("Possible impersonation of %s", brand))
	}

	if tld, ok := a.suspiciousTLD(domain); ok {
		trust -= suspiciousTLDPenalty
		factors = append(factors, fmt.Sprintf("Suspicious top-level domain (%s)", tld))
	}

	if unusualStructure(domain) {
		trust -= structurePenalty
		factors = append(factors, "Unusual domain structure")
	}

	if a.resolver != nil {
		missing, err := a.missingMX(ctx, domain)
		if err != nil {
			return nil, err
		}
		if missing {
			trust -= missingMXPenalty
			factors = append(factors, "Invalid or missing MX records")
		}
	}

	return a.outcome(domain, core.ClampScore(trust), factors, start), nil
}

func (a *Analyzer) outcome(domain string, trust int, factors []string, start time.Time) *core.AnalyzerOutcome {
	listed := "None"
	if len(factors) > 0 {
		listed = strings.Join(factors, ", ")
	}

	a.logger.Debug("Domain reputation checked",
		zap.String("domain", domain),
		zap.Int("trust_score", trust),
		zap.Int("risk_factors", len(factors)))

	return &core.AnalyzerOutcome{
		Score:           trust,
		Findings:        factors,
		Summary:         fmt.Sprintf("Domain: %s | Trust Score: %d/100 | Factors: %s", domain, trust, listed),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
}

// impersonatedBrand reports a brand the domain imitates without belonging to it
func (a *Analyzer) impersonatedBrand(domain string) (string, bool) {
	for _, brand := range a.brands {
		if domain == brand || strings.HasSuffix(domain, "."+brand) {
			return "", false
		}
	}

	deglyphed := homoglyphs.Replace(domain)
	for _, brand := range a.brands {
		if d := levenshtein.ComputeDistance(domain, brand); d >= 1 && d <= 2 {
			return brand, true
		}
		if deglyphed == brand {
			return brand, true
		}
		label := brand
		if dot := strings.IndexByte(brand, '.'); dot > 0 {
			label = brand[:dot]
		}
		if len(label) >= 4 && strings.Contains(deglyphed, label) {
			return brand, true
		}
	}
	return "", false
}

var homoglyphs = strings.NewReplacer("0", "o", "1", "l", "4", "a", "3", "e", "5", "s")

func (a *Analyzer) suspiciousTLD(domain string) (string, bool) {
	for _, tld := range a.tlds {
		if strings.HasSuffix(domain, tld) {
			return tld, true
		}
	}
	return "", false
}

func (a *Analyzer) missingMX(ctx context.Context, domain string) (bool, error) {
	records, err := a.resolver.LookupMX(ctx, domain)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return true, nil
		}
		a.logger.Warn("MX lookup failed, skipping check",
			zap.String("domain", domain),
			zap.Error(err))
		return false, nil
	}
	return len(records) == 0, nil
}

// unusualStructure flags punycode, hyphen-heavy, deeply nested or very long domains
func unusualStructure(domain string) bool {
	if strings.Contains(domain, "xn--") {
		return true
	}
	labels := strings.Split(domain, ".")
	if len(labels) > 4 {
		return true
	}
	for _, l := range labels {
		if strings.Count(l, "-") >= 2 || len(l) > 30 {
			return true
		}
	}
	return false
}

func domainOf(sender string) string {
	at := strings.LastIndex(sender, "@")
	if at < 0 || at == len(sender)-1 {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(sender[at+1:]), ".")
}
