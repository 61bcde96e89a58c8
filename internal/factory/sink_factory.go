package factory

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/adapters/events"
	"github.com/mikey/email-threat-triage/internal/adapters/metrics"
	"github.com/mikey/email-threat-triage/internal/adapters/store"
	"github.com/mikey/email-threat-triage/internal/config"
	"github.com/mikey/email-threat-triage/internal/core"
)

// SinkFactory creates the destinations a verdict flows to after analysis:
// history store, event stream and metrics
type SinkFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config, logger *zap.Logger) *SinkFactory {
	return &SinkFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateVerdictStore opens the history store, or returns nil when disabled
func (f *SinkFactory) CreateVerdictStore() (*store.SQLStore, error) {
	sc := f.cfg.GetStore()
	if !sc.Enabled {
		f.logger.Info("Verdict history disabled")
		return nil, nil
	}

	if sc.Driver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(sc.DSN), 0755); err != nil {
			return nil, err
		}
	}

	return store.NewSQLStore(sc.Driver, sc.DSN, f.logger.Named("store"))
}

// CreateEventPublisher creates the Kafka publisher, or a no-op when disabled
func (f *SinkFactory) CreateEventPublisher() core.EventPublisher {
	ec := f.cfg.GetEvents()
	if !ec.Enabled {
		return events.NopPublisher{}
	}

	f.logger.Info("Publishing verdict events",
		zap.Strings("brokers", ec.Brokers),
		zap.String("topic", ec.Topic),
		zap.String("threat_topic", ec.ThreatTopic))

	return events.NewKafkaPublisher(events.Config{
		Brokers:     ec.Brokers,
		Topic:       ec.Topic,
		ThreatTopic: ec.ThreatTopic,
	}, f.logger.Named("events"))
}

// CreateMetricsRecorder creates the Prometheus recorder, or nil when disabled
func (f *SinkFactory) CreateMetricsRecorder() *metrics.PrometheusRecorder {
	if !f.cfg.MetricsEnabled() {
		return nil
	}
	return metrics.NewPrometheusRecorder()
}
