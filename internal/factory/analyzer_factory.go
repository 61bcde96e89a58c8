package factory

import (
	"net"

	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/adapters/domainintel"
	"github.com/mikey/email-threat-triage/internal/adapters/forensics"
	"github.com/mikey/email-threat-triage/internal/adapters/social"
	"github.com/mikey/email-threat-triage/internal/adapters/urlscan"
	"github.com/mikey/email-threat-triage/internal/config"
	"github.com/mikey/email-threat-triage/internal/core"
)

// AnalyzerFactory creates the four analyzers from configuration.
// Empty lists in the config fall back to the package defaults.
type AnalyzerFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	resolver domainintel.MXResolver
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(cfg *config.Config, logger *zap.Logger) *AnalyzerFactory {
	return &AnalyzerFactory{
		cfg:      cfg,
		logger:   logger,
		resolver: net.DefaultResolver,
	}
}

// CreateDomainAnalyzer creates the sender domain analyzer
func (f *AnalyzerFactory) CreateDomainAnalyzer() core.DomainAnalyzer {
	dc := f.cfg.GetDomainIntel()

	var resolver domainintel.MXResolver
	if dc.CheckMX {
		resolver = f.resolver
	}

	if len(dc.TrustedDomains) > 0 {
		f.logger.Info("Loaded trusted domains", zap.Strings("domains", dc.TrustedDomains))
	}

	return domainintel.NewAnalyzer(domainintel.Config{
		TrustedDomains: dc.TrustedDomains,
		Blocklist:      orDefault(dc.Blocklist, domainintel.DefaultBlocklist),
		Brands:         orDefault(dc.Brands, domainintel.DefaultBrands),
		SuspiciousTLDs: orDefault(dc.SuspiciousTLDs, domainintel.DefaultSuspiciousTLDs),
		CheckMX:        dc.CheckMX,
	}, resolver, f.logger.Named(core.ToolDomainReputation))
}

// CreateURLScanner creates the URL scanner
func (f *AnalyzerFactory) CreateURLScanner() (core.URLScanner, error) {
	uc := f.cfg.GetURLScan()
	return urlscan.NewScanner(urlscan.Config{
		Shorteners:       orDefault(uc.Shorteners, urlscan.DefaultShorteners),
		SuspiciousTLDs:   orDefault(uc.SuspiciousTLDs, urlscan.DefaultSuspiciousTLDs),
		PhishingPatterns: orDefault(uc.PhishingPatterns, urlscan.DefaultPhishingPatterns),
	}, f.logger.Named(core.ToolURLScan))
}

// CreateAttachmentAnalyzer creates the attachment forensics analyzer
func (f *AnalyzerFactory) CreateAttachmentAnalyzer() core.AttachmentAnalyzer {
	return forensics.NewAnalyzer(f.logger.Named(core.ToolAttachments))
}

// CreateSocialEngineeringDetector creates the social engineering detector
func (f *AnalyzerFactory) CreateSocialEngineeringDetector() core.SocialEngineeringDetector {
	return social.NewDetector(f.logger.Named(core.ToolSocialEngineering))
}

func orDefault(values, defaults []string) []string {
	if len(values) == 0 {
		return defaults
	}
	return values
}
