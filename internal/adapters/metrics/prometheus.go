package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikey/email-threat-triage/internal/core"
)

const namespace = "threat_triage"

// PrometheusRecorder records orchestration measurements as Prometheus metrics
type PrometheusRecorder struct {
	registry         *prometheus.Registry
	analyzerDuration *prometheus.HistogramVec
	analyzerFailures *prometheus.CounterVec
	verdicts         *prometheus.CounterVec
	finalScore       prometheus.Histogram
	cacheHits        prometheus.Counter
}

// NewPrometheusRecorder creates a recorder backed by its own registry
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		analyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_duration_seconds",
			Help:      "Time spent in each analyzer.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		}, []string{"analyzer"}),
		analyzerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_failures_total",
			Help:      "Analyzer invocations that fell back to a neutral outcome.",
		}, []string{"analyzer"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Verdicts produced, by classification.",
		}, []string{"classification"}),
		finalScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "final_risk_score",
			Help:      "Distribution of final risk scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Requests answered from the verdict cache.",
		}),
	}

	r.registry.MustRegister(
		r.analyzerDuration,
		r.analyzerFailures,
		r.verdicts,
		r.finalScore,
		r.cacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveAnalyzer records one analyzer invocation
func (r *PrometheusRecorder) ObserveAnalyzer(name string, elapsed time.Duration, failed bool) {
	r.analyzerDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if failed {
		r.analyzerFailures.WithLabelValues(name).Inc()
	}
}

// ObserveVerdict records a produced verdict
func (r *PrometheusRecorder) ObserveVerdict(classification core.Classification, finalScore int) {
	r.verdicts.WithLabelValues(string(classification)).Inc()
	r.finalScore.Observe(float64(finalScore))
}

// ObserveCacheHit records a cache hit
func (r *PrometheusRecorder) ObserveCacheHit() {
	r.cacheHits.Inc()
}

// Registry exposes the underlying registry
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
