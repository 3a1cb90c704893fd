// Package metrics exposes sync engine counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fieldsync"

// Drain item outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeConflict  = "conflict"
	OutcomeRetried   = "retried"
	OutcomeDropped   = "dropped"
)

// Reconcile results.
const (
	ReconcileOK      = "ok"
	ReconcilePartial = "partial"
	ReconcileSkipped = "skipped"
)

type Metrics struct {
	Enqueued          *prometheus.CounterVec
	DrainItems        *prometheus.CounterVec
	Drains            prometheus.Counter
	Reconciles        *prometheus.CounterVec
	ReconcileFailures *prometheus.CounterVec
	QueueLength       prometheus.Gauge
	Online            prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_total",
			Help:      "Total number of operations queued after a failed remote write",
		}, []string{"kind"}),
		DrainItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_items_total",
			Help:      "Queue items processed by drain passes, by outcome",
		}, []string{"outcome"}),
		Drains: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drains_total",
			Help:      "Total number of drain passes that ran",
		}),
		Reconciles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Reconciliation fetches, by result",
		}, []string{"result"}),
		ReconcileFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_collection_failures_total",
			Help:      "Collections that kept their local value because the fetch failed",
		}, []string{"collection"}),
		QueueLength: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Current number of queued operations",
		}),
		Online: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 when the backend is reachable",
		}),
	}
}

// NewUnregistered builds collectors on a private registry.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) IncrementEnqueued(kind string) {
	m.Enqueued.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDrainItem(outcome string) {
	m.DrainItems.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementDrains() {
	m.Drains.Inc()
}

func (m *Metrics) ObserveReconcile(result string) {
	m.Reconciles.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementReconcileFailure(collection string) {
	m.ReconcileFailures.WithLabelValues(collection).Inc()
}

func (m *Metrics) SetQueueLength(n int) {
	m.QueueLength.Set(float64(n))
}

func (m *Metrics) SetOnline(online bool) {
	if online {
		m.Online.Set(1)
		return
	}
	m.Online.Set(0)
}
