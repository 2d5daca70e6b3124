package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tournapro"

// Metrics groups the collectors the service reports.
type Metrics struct {
	SchedulesGenerated *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ResultsSubmitted   *prometheus.CounterVec
	LockWait           prometheus.Histogram
	LockTimeouts       prometheus.Counter
	EventsPublished    *prometheus.CounterVec
	EventsDropped      *prometheus.CounterVec
	HandlerPanics      prometheus.Counter
	WebSocketClients   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SchedulesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_generated_total",
			Help:      "Division schedules generated, by format and outcome.",
		}, []string{"format", "outcome"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_generation_seconds",
			Help:      "Time spent generating and storing a division schedule.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format"}),
		ResultsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_results_total",
			Help:      "Match results submitted, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "division_lock_wait_seconds",
			Help:      "Time spent waiting for a division lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		}),
		LockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "division_lock_timeouts_total",
			Help:      "Division lock acquisitions that timed out.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Change events published, by type.",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Change events dropped by a sink, by sink.",
		}, []string{"sink"}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_panics_total",
			Help:      "Event subscribers that panicked.",
		}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}

	reg.MustRegister(
		m.SchedulesGenerated,
		m.GenerationDuration,
		m.ResultsSubmitted,
		m.LockWait,
		m.LockTimeouts,
		m.EventsPublished,
		m.EventsDropped,
		m.HandlerPanics,
		m.WebSocketClients,
	)
	return m
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Discard returns collectors registered on a throwaway registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
