// Package monitoring exposes Prometheus metrics for the coordinator.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harees/navguard/internal/verdict"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	navigationsTotal  *prometheus.CounterVec
	userActionsTotal  *prometheus.CounterVec
	classifierLatency prometheus.Histogram
	agentsConnected   prometheus.Gauge
}

// New creates a metrics collector with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		navigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "navguard_navigations_total",
			Help: "Completed navigation verdict sequences by outcome and severity",
		}, []string{"outcome", "severity"}),
		userActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "navguard_user_actions_total",
			Help: "User decisions on warnings",
		}, []string{"action"}),
		classifierLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "navguard_classifier_duration_seconds",
			Help:    "Latency of remote classifier calls",
			Buckets: prometheus.DefBuckets,
		}),
		agentsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "navguard_agents_connected",
			Help: "Currently attached in-page agents",
		}),
	}
}

// NewNop creates a metrics collector whose values are never exported.
// For tests and callers that pass no metrics.
func NewNop() *Metrics {
	return New()
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NavigationDone counts a finished verdict sequence.
func (m *Metrics) NavigationDone(outcome string, severity verdict.Severity) {
	m.navigationsTotal.WithLabelValues(outcome, string(severity)).Inc()
}

// UserAction counts a Leave/Proceed decision.
func (m *Metrics) UserAction(action string) {
	m.userActionsTotal.WithLabelValues(action).Inc()
}

// ObserveClassifier records one classifier call's duration.
func (m *Metrics) ObserveClassifier(d time.Duration) {
	m.classifierLatency.Observe(d.Seconds())
}

// AgentConnected tracks agent attach/detach.
func (m *Metrics) AgentConnected(delta int) {
	m.agentsConnected.Add(float64(delta))
}
