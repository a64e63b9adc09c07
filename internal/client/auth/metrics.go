package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the coordinator and pipeline counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	refreshes *prometheus.CounterVec
	queued    prometheus.Counter
	inFlight  prometheus.Gauge
	replays   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldvisit",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldvisit",
			Subsystem: "auth",
			Name:      "refresh_waiters_total",
			Help:      "Callers queued behind an in-flight refresh.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fieldvisit",
			Subsystem: "auth",
			Name:      "refresh_in_flight",
			Help:      "1 while a refresh call is running.",
		}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldvisit",
			Subsystem: "auth",
			Name:      "replay_total",
			Help:      "Requests replayed after a refresh, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshes, m.queued, m.inFlight, m.replays)
	}
	return m
}

func (m *Metrics) refreshStarted() {
	if m == nil {
		return
	}
	m.inFlight.Set(1)
}

func (m *Metrics) refreshFinished(err error) {
	if m == nil {
		return
	}
	m.inFlight.Set(0)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) waiterQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

// ObserveReplay records the result of a replayed request ("ok", "unauthorized",
// "error").
func (m *Metrics) ObserveReplay(result string) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(result).Inc()
}
