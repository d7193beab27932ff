// Package metrics exposes registry measurements as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"lerngruppe/internal/domain"
	"lerngruppe/internal/ports/output"
)

const namespace = "lerngruppe"

var _ output.Metrics = (*Prometheus)(nil)

// Prometheus implements output.Metrics.
type Prometheus struct {
	operations *prometheus.CounterVec
	observers  prometheus.Gauge
	snapshots  prometheus.Counter
	migrated   prometheus.Counter
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Registry operations by name and outcome.",
		}, []string{"op", "outcome"}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Live change observers.",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_delivered_total",
			Help:      "Snapshots fanned out to observers.",
		}),
		migrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_migrated_total",
			Help:      "Legacy cache records copied into the store.",
		}),
	}
	for _, c := range []prometheus.Collector{p.operations, p.observers, p.snapshots, p.migrated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveOperation counts op with outcome "ok", the domain error code, or
// "error".
func (p *Prometheus) ObserveOperation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.Code(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	p.operations.WithLabelValues(op, outcome).Inc()
}

func (p *Prometheus) SetObservers(n int) { p.observers.Set(float64(n)) }

func (p *Prometheus) SnapshotDelivered() { p.snapshots.Inc() }

func (p *Prometheus) RecordsMigrated(n int) { p.migrated.Add(float64(n)) }
