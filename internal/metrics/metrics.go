// Package metrics exposes Prometheus counters for character generation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded" // result arrived for a superseded request
)

// Collector records generation and session metrics.
type Collector struct {
	registry *prometheus.Registry

	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationsRunning prometheus.Gauge
	uploadsTotal       prometheus.Counter
	sessionsActive     prometheus.Gauge
}

// NewCollector creates a collector on its own registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Character generation requests by outcome and age group",
		},
		[]string{"outcome", "age_group"},
	)
	c.generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time from generate action to settled result",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)
	c.generationsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "generations_in_flight",
		Help:      "Generation requests currently waiting on the image model",
	})
	c.uploadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Accepted photo uploads",
	})
	c.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Browser sessions held in memory",
	})

	c.registry.MustRegister(
		c.generationsTotal,
		c.generationDuration,
		c.generationsRunning,
		c.uploadsTotal,
		c.sessionsActive,
		collectors.NewGoCollector(),
	)
	return c
}

// GenerationStarted marks a request as in flight.
func (c *Collector) GenerationStarted() {
	if c == nil {
		return
	}
	c.generationsRunning.Inc()
}

// GenerationSettled records the result of one generation request.
func (c *Collector) GenerationSettled(outcome, ageGroup string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.generationsRunning.Dec()
	c.generationsTotal.WithLabelValues(outcome, ageGroup).Inc()
	c.generationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Uploaded counts an accepted photo.
func (c *Collector) Uploaded() {
	if c == nil {
		return
	}
	c.uploadsTotal.Inc()
}

// SetSessions reports the number of live sessions.
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	c.sessionsActive.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
