package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reader"

// Metrics counts session continuity events. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RefreshAttempts  prometheus.Counter
	RefreshFailures  prometheus.Counter
	RefreshCoalesced prometheus.Counter
	Retries          *prometheus.CounterVec
	Logouts          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_attempts_total",
			Help:      "Refresh calls issued to the authentication endpoint.",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_failures_total",
			Help:      "Refresh attempts that ended the session.",
		}),
		RefreshCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_coalesced_total",
			Help:      "Callers that waited on a refresh started by another request.",
		}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "retries_total",
			Help:      "Requests retried after a refresh, by final status class.",
		}, []string{"outcome"}),
		Logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Logout signals emitted, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.RefreshAttempts, m.RefreshFailures, m.RefreshCoalesced, m.Retries, m.Logouts)
	}
	return m
}

func (m *Metrics) RefreshStarted() {
	if m == nil {
		return
	}
	m.RefreshAttempts.Inc()
}

func (m *Metrics) RefreshFailed() {
	if m == nil {
		return
	}
	m.RefreshFailures.Inc()
}

func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.RefreshCoalesced.Inc()
}

// Retried records the outcome of a retried request: "ok", "unauthorized", "error" or another status class.
func (m *Metrics) Retried(outcome string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LoggedOut(reason string) {
	if m == nil {
		return
	}
	m.Logouts.WithLabelValues(reason).Inc()
}
