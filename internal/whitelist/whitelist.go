package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker matches sender domains against a configured domain list.
// A listed domain also covers its subdomains.
type Checker struct {
	name    string
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new domain list checker
func NewChecker(name string, domains []string, logger *zap.Logger) *Checker {
	normalized := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
		if d == "" {
			continue
		}
		normalized[d] = struct{}{}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized domain list",
			zap.String("list", name),
			zap.Int("domains", len(normalized)))
	}

	return &Checker{
		name:    name,
		domains: normalized,
		logger:  logger,
	}
}

// Len returns the number of listed domains
func (c *Checker) Len() int {
	return len(c.domains)
}

// IsWhitelisted checks if the sender's domain is listed
func (c *Checker) IsWhitelisted(from string) bool {
	at := strings.LastIndex(from, "@")
	if at < 0 || at == len(from)-1 {
		return false
	}
	return c.Contains(from[at+1:])
}

// Contains reports whether domain or one of its parent domains is listed
func (c *Checker) Contains(domain string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	for d := domain; d != ""; {
		if _, ok := c.domains[d]; ok {
			if c.logger != nil {
				c.logger.Debug("Domain is listed",
					zap.String("list", c.name),
					zap.String("domain", domain),
					zap.String("matched", d))
			}
			return true
		}
		dot := strings.IndexByte(d, '.')
		if dot < 0 {
			break
		}
		d = d[dot+1:]
	}

	return false
}
