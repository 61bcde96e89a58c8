package factory

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/adapters/filter"
	"github.com/mikey/email-threat-triage/internal/adapters/httpapi"
	"github.com/mikey/email-threat-triage/internal/config"
	"github.com/mikey/email-threat-triage/internal/ports"
	"github.com/mikey/email-threat-triage/internal/utils"
)

// FilterFactory creates the front ends listed in server.filters
type FilterFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	triage ports.Triage
	tp     *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, triage ports.Triage, tp *utils.TextProcessor) *FilterFactory {
	return &FilterFactory{
		cfg:    cfg,
		logger: logger,
		triage: triage,
		tp:     tp,
	}
}

// CreateEmailFilters creates every configured filter. metricsHandler and
// checks are only used by the HTTP API and may be nil.
func (f *FilterFactory) CreateEmailFilters(metricsHandler http.Handler, checks map[string]ports.HealthChecker) ([]ports.EmailFilter, error) {
	sc := f.cfg.GetServer()
	if len(sc.Filters) == 0 {
		return nil, fmt.Errorf("no filters configured in server.filters")
	}

	filters := make([]ports.EmailFilter, 0, len(sc.Filters))
	for _, name := range sc.Filters {
		switch name {
		case "postfix":
			filters = append(filters, filter.NewPostfixFilter(f.triage, f.tp, f.logger.Named("postfix"), sc))
		case "http":
			ac, err := f.cfg.GetAPI()
			if err != nil {
				return nil, fmt.Errorf("invalid api config: %w", err)
			}
			srv, err := httpapi.NewServer(f.triage, httpapi.Options{
				ListenAddress:   ac.ListenAddress,
				ReadTimeout:     ac.ReadTimeout,
				WriteTimeout:    ac.WriteTimeout,
				MaxRequestBytes: ac.MaxRequestBytes,
			}, metricsHandler, checks, f.logger.Named("http"))
			if err != nil {
				return nil, err
			}
			filters = append(filters, srv)
		default:
			return nil, fmt.Errorf("unsupported filter type: %s", name)
		}
	}

	return filters, nil
}
