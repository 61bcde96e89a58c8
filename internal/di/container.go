package di

import (
	"time"

	"go.uber.org/dig"

	"github.com/mikey/email-threat-triage/internal/adapters/metrics"
	"github.com/mikey/email-threat-triage/internal/adapters/store"
	"github.com/mikey/email-threat-triage/internal/config"
	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/factory"
	"github.com/mikey/email-threat-triage/internal/logging"
	"github.com/mikey/email-threat-triage/internal/ports"
	"github.com/mikey/email-threat-triage/internal/utils"
)

// Resources are the daemon components started and closed by main
type Resources struct {
	dig.In

	Filters   []ports.EmailFilter
	Cache     core.CacheRepository
	Store     *store.SQLStore
	Publisher core.EventPublisher
}

// BuildContainer creates and configures a dependency injection container for the daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSinkFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	if err := provideEngine(container); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register cache TTL and enabled flag
	if err := container.Provide(func(f *factory.CacheFactory) (time.Duration, error) {
		return f.GetCacheTTL()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) bool {
		return f.IsCacheEnabled()
	}); err != nil {
		return nil, err
	}

	// Register verdict history; nil when disabled
	if err := container.Provide(func(f *factory.SinkFactory) (*store.SQLStore, error) {
		return f.CreateVerdictStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *store.SQLStore) core.VerdictStore {
		if s == nil {
			return nil
		}
		return s
	}); err != nil {
		return nil, err
	}

	// Register event publisher
	if err := container.Provide(func(f *factory.SinkFactory) core.EventPublisher {
		return f.CreateEventPublisher()
	}); err != nil {
		return nil, err
	}

	// Register metrics; nil recorder when disabled
	if err := container.Provide(func(f *factory.SinkFactory) *metrics.PrometheusRecorder {
		return f.CreateMetricsRecorder()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(r *metrics.PrometheusRecorder) core.MetricsRecorder {
		if r == nil {
			return core.NopMetrics{}
		}
		return r
	}); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(core.NewTriageService); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *core.TriageService) ports.Triage { return s }); err != nil {
		return nil, err
	}

	// Register email filters
	if err := container.Provide(func(
		f *factory.FilterFactory,
		recorder *metrics.PrometheusRecorder,
		verdicts *store.SQLStore,
	) ([]ports.EmailFilter, error) {
		checks := map[string]ports.HealthChecker{}
		if verdicts != nil {
			checks["store"] = verdicts
		}
		if recorder == nil {
			return f.CreateEmailFilters(nil, checks)
		}
		return f.CreateEmailFilters(recorder.Handler(), checks)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideEngine registers the analyzers, scoring and orchestration shared by
// the daemon and the CLI
func provideEngine(container *dig.Container) error {
	if err := container.Provide(factory.NewAnalyzerFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register analyzers
	if err := container.Provide(func(f *factory.AnalyzerFactory) core.DomainAnalyzer {
		return f.CreateDomainAnalyzer()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AnalyzerFactory) (core.URLScanner, error) {
		return f.CreateURLScanner()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AnalyzerFactory) core.AttachmentAnalyzer {
		return f.CreateAttachmentAnalyzer()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AnalyzerFactory) core.SocialEngineeringDetector {
		return f.CreateSocialEngineeringDetector()
	}); err != nil {
		return err
	}

	// Register scoring
	if err := container.Provide(func(f *factory.EngineFactory) (*core.Aggregator, error) {
		return f.CreateAggregator()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EngineFactory) (*core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EngineFactory) (core.OrchestratorConfig, error) {
		return f.GetOrchestratorConfig()
	}); err != nil {
		return err
	}

	// Register orchestrator
	if err := container.Provide(core.NewOrchestrator); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	return nil
}
