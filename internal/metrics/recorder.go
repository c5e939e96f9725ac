package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budgetchat"

// Turn outcomes used as the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder collects per-session metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	turnsTotal         *prometheus.CounterVec
	evictedTotal       prometheus.Counter
	contextTokens      prometheus.Gauge
	completionDuration prometheus.Histogram
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Completed conversation turns by outcome.",
			},
			[]string{"status"},
		),
		evictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_messages_total",
			Help:      "Messages evicted from the context to respect the token budget.",
		}),
		contextTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "context_tokens",
			Help:      "Token total of the context sent with the latest request.",
		}),
		completionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Wall time of completion requests, including streaming.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}

// ObserveBudget records the outcome of one budget enforcement.
func (r *Recorder) ObserveBudget(evicted, total int) {
	if r == nil {
		return
	}
	r.evictedTotal.Add(float64(evicted))
	r.contextTokens.Set(float64(total))
}

// ObserveTurn records a finished turn and how long its completion took.
func (r *Recorder) ObserveTurn(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.turnsTotal.WithLabelValues(status).Inc()
	r.completionDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
