package urlscan

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/core"
)

// Risk added per indicator, per URL
const (
	ipHostRisk        = 30
	shortenerRisk     = 20
	suspiciousTLDRisk = 25
	phishingPathRisk  = 15
	deepSubdomainRisk = 10
	maxHostDots       = 3
)

// DefaultShorteners are link shortening services
var DefaultShorteners = []string{"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd"}

// DefaultSuspiciousTLDs are TLDs commonly abused for throwaway domains
var DefaultSuspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".buzz", ".work", ".click"}

// DefaultPhishingPatterns match typical phishing landing page paths and hosts
var DefaultPhishingPatterns = []string{
	`secure.*-verify`,
	`account.*-suspended`,
	`confirm.*-identity`,
	`update.*-payment`,
	`urgent.*-action`,
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Config configures the URL scanner
type Config struct {
	Shorteners       []string
	SuspiciousTLDs   []string
	PhishingPatterns []string
}

// Scanner extracts URLs from a body and scores them
type Scanner struct {
	shorteners []string
	tlds       []string
	patterns   []*regexp.Regexp
	logger     *zap.Logger
}

// NewScanner creates a URL scanner, compiling the configured phishing patterns
func NewScanner(cfg Config, logger *zap.Logger) (*Scanner, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.PhishingPatterns))
	for _, p := range cfg.PhishingPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid phishing pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
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

	shorteners := make([]string, 0, len(cfg.Shorteners))
	for _, s := range cfg.Shorteners {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			shorteners = append(shorteners, s)
		}
	}

	return &Scanner{
		shorteners: shorteners,
		tlds:       tlds,
		patterns:   patterns,
		logger:     logger,
	}, nil
}

// ScanBody scores every URL found in the body; the total is capped at 100
func (s *Scanner) ScanBody(ctx context.Context, body string) (*core.AnalyzerOutcome, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	urls := ExtractURLs(body)

	risk := 0
	findings := []string{}
	for _, raw := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, f := s.scoreURL(raw)
		risk += r
		findings = append(findings, f...)
	}
	risk = core.ClampScore(risk)

	described := "No suspicious URLs"
	if len(findings) > 0 {
		described = strings.Join(findings, ", ")
	}

	s.logger.Debug("URLs scanned",
		zap.Int("urls_found", len(urls)),
		zap.Int("risk_score", risk))

	return &core.AnalyzerOutcome{
		Score:           risk,
		Findings:        findings,
		Summary:         fmt.Sprintf("Found %d URL(s) | Risk: %d/100 | %s", len(urls), risk, described),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (s *Scanner) scoreURL(raw string) (int, []string) {
	risk := 0
	var findings []string

	host := ""
	if u, err := url.Parse(raw); err == nil {
		host = strings.ToLower(u.Hostname())
	}

	if host != "" && net.ParseIP(host) != nil {
		risk += ipHostRisk
		findings = append(findings, "IP-based URL detected: "+raw)
	}

	for _, short := range s.shorteners {
		if host == short || strings.HasSuffix(host, "."+short) {
			risk += shortenerRisk
			findings = append(findings, "URL shortener detected: "+raw)
			break
		}
	}

	for _, tld := range s.tlds {
		if strings.HasSuffix(host, tld) {
			risk += suspiciousTLDRisk
			findings = append(findings, "Suspicious top-level domain: "+raw)
			break
		}
	}

	for _, re := range s.patterns {
		if re.MatchString(raw) {
			risk += phishingPathRisk
			findings = append(findings, "Phishing pattern in URL: "+raw)
		}
	}

	if dots := strings.Count(host, "."); dots > maxHostDots && net.ParseIP(host) == nil {
		risk += deepSubdomainRisk
		findings = append(findings, fmt.Sprintf("Suspicious subdomain depth (%d): %s", dots, raw))
	}

	return risk, findings
}

// ExtractURLs returns the distinct http(s) URLs in body. For HTML bodies the
// anchor targets come first, followed by URLs written in the visible text.
func ExtractURLs(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		u = strings.TrimRight(u, ".,;:!?)]}")
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	text := body
	if looksLikeHTML(body) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err == nil {
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				href, _ := sel.Attr("href")
				href = strings.TrimSpace(href)
				lower := strings.ToLower(href)
				if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
					add(href)
				}
			})
			text = visibleText(doc)
		}
	}

	for _, u := range urlPattern.FindAllString(text, -1) {
		add(u)
	}

	return out
}

// visibleText joins text nodes with spaces so adjacent elements don't fuse URLs
func visibleText(doc *goquery.Document) string {
	var parts []string
	doc.Find("*").Contents().Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "#text" {
			parts = append(parts, sel.Text())
		}
	})
	return strings.Join(parts, " ")
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<a ") || strings.Contains(lower, "<html") || strings.Contains(lower, "<body")
}
