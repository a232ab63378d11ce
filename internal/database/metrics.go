package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the store. A nil *Metrics is valid and records nothing.
type Metrics struct {
	txAttempts      prometheus.Counter
	txConflicts     prometheus.Counter
	txExhausted     prometheus.Counter
	activeWatchers  prometheus.Gauge
	droppedWatchers prometheus.Counter
}

// NewMetrics creates the store metrics and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer, backend string) *Metrics {
	labels := prometheus.Labels{"backend": backend}
	m := &Metrics{
		txAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "docstore_transaction_attempts_total",
			Help:        "Number of transaction attempts, retries included",
			ConstLabels: labels,
		}),
		txConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "docstore_transaction_conflicts_total",
			Help:        "Number of transaction attempts discarded because a read went stale",
			ConstLabels: labels,
		}),
		txExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "docstore_transaction_exhausted_total",
			Help:        "Number of transactions that failed after exhausting their retries",
			ConstLabels: labels,
		}),
		activeWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "docstore_active_watchers",
			Help:        "Number of live watch subscriptions",
			ConstLabels: labels,
		}),
		droppedWatchers: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "docstore_dropped_watchers_total",
			Help:        "Number of watch subscriptions dropped for not keeping up",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.txAttempts, m.txConflicts, m.txExhausted, m.activeWatchers, m.droppedWatchers)
	}
	return m
}

func (m *Metrics) attempt() {
	if m != nil {
		m.txAttempts.Inc()
	}
}

func (m *Metrics) conflict() {
	if m != nil {
		m.txConflicts.Inc()
	}
}

// retried records attempt n of a transaction run by a backend that retries internally.
// Every attempt after the first follows a conflict.
func (m *Metrics) retried(n int) {
	m.attempt()
	if n > 1 {
		m.conflict()
	}
}

func (m *Metrics) exhausted() {
	if m != nil {
		m.txExhausted.Inc()
	}
}

func (m *Metrics) watcherAdded() {
	if m != nil {
		m.activeWatchers.Inc()
	}
}

func (m *Metrics) watcherRemoved() {
	if m != nil {
		m.activeWatchers.Dec()
	}
}

func (m *Metrics) watcherDropped() {
	if m != nil {
		m.droppedWatchers.Inc()
	}
}
