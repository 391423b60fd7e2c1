// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records standings computations, submissions and live subscribers.
type Collector struct {
	registry         *prometheus.Registry
	computeLatency   prometheus.Histogram
	computations     prometheus.Counter
	fallbackAttempts prometheus.Counter
	submissions      *prometheus.CounterVec
	subscribers      prometheus.Gauge
}

// New registers all instruments in a fresh registry, together with the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		computeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rankings_compute_duration_seconds",
			Help:    "Time spent computing leaderboards and scoreboard for an event.",
			Buckets: prometheus.DefBuckets,
		}),
		computations: factory.NewCounter(prometheus.CounterOpts{
			Name: "rankings_computations_total",
			Help: "Number of standings computations.",
		}),
		fallbackAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "rankings_fallback_attempts_total",
			Help: "Attempts ranked from their summary because no question rows were stored.",
		}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rankings_submissions_total",
			Help: "Accepted submissions by kind.",
		}, []string{"kind"}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rankings_ws_subscribers",
			Help: "Open websocket standings streams.",
		}),
	}
}

// ObserveStandings records one standings computation.
func (c *Collector) ObserveStandings(_ string, took time.Duration, fallbackAttempts int) {
	c.computeLatency.Observe(took.Seconds())
	c.computations.Inc()
	if fallbackAttempts > 0 {
		c.fallbackAttempts.Add(float64(fallbackAttempts))
	}
}

func (c *Collector) CountSubmission(kind string) {
	c.submissions.WithLabelValues(kind).Inc()
}

func (c *Collector) SubscriberOpened() { c.subscribers.Inc() }

func (c *Collector) SubscriberClosed() { c.subscribers.Dec() }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
