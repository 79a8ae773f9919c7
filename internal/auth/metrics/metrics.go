// Package metrics holds the Prometheus collectors for authentication
// outcomes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schoolgate"

type Metrics struct {
	registry *prometheus.Registry

	loginAttempts *prometheus.CounterVec
	loginDuration *prometheus.HistogramVec
	lockouts      prometheus.Counter
	resetTokens   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New registers every collector, plus the Go and process collectors, on a
// private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by surface and outcome code.",
		}, []string{"surface", "outcome"}),
		loginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "login_duration_seconds",
			Help:      "Time spent deciding a login attempt.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"surface"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after reaching the failure threshold.",
		}),
		resetTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_tokens_total",
			Help:      "Reset token lifecycle events.",
		}, []string{"event"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and result.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.loginAttempts,
		m.loginDuration,
		m.lockouts,
		m.resetTokens,
		m.notifications,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveLogin records the outcome code of one login decision. Lock codes
// are reported without their minutes suffix.
func (m *Metrics) ObserveLogin(surface, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(surface, outcome).Inc()
	m.loginDuration.WithLabelValues(surface).Observe(took.Seconds())
}

func (m *Metrics) AccountLocked() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

// ResetToken events: issued, redeemed, rejected_expired, rejected_used,
// rejected_not_found, throttled.
func (m *Metrics) ResetToken(event string) {
	if m == nil {
		return
	}
	m.resetTokens.WithLabelValues(event).Inc()
}

// Notification results: sent, failed, dropped.
func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}
