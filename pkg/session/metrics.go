package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "nodebook"

type metrics struct {
	open     prometheus.Gauge
	dirty    prometheus.Gauge
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		open: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "open_documents",
			Help:      "Number of documents open in the session.",
		})),
		dirty: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "dirty_documents",
			Help:      "Number of open documents with unsaved edits.",
		})),
		failures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "collaborator_failures_total",
			Help:      "Collaborator calls that failed, by operation.",
		}, []string{"op"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "collaborator_duration_seconds",
			Help:      "Duration of collaborator round trips, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"})),
	}
}

// register adds c to reg. When an identical collector is already registered
// (several sessions sharing one registry) the existing one is reused.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
