package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// LedgerMetrics counts stock movements and reconciliation outcomes.
type LedgerMetrics struct {
	movements *prometheus.CounterVec
	units     *prometheus.CounterVec
	drifted   prometheus.Gauge
	repaired  prometheus.Counter
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_movements_total",
			Help:      "Stock movement requests by type and result.",
		}, []string{"type", "result"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_units_total",
			Help:      "Units moved by applied transactions.",
		}, []string{"type"}),
		drifted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drifted_items",
			Help:      "Items whose cached quantity disagreed with the ledger on the last scan.",
		}),
		repaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_repairs_total",
			Help:      "Cached quantities overwritten from the ledger.",
		}),
	}
	reg.MustRegister(m.movements, m.units, m.drifted, m.repaired)
	return m
}

// ObserveMovement records one movement attempt. units is only counted when applied.
func (m *LedgerMetrics) ObserveMovement(txnType, result string, units int64) {
	if m == nil || m.movements == nil {
		return
	}
	label := normalizeLabel(txnType)
	m.movements.WithLabelValues(label, normalizeLabel(result)).Inc()
	if result == ResultApplied && units > 0 {
		m.units.WithLabelValues(label).Add(float64(units))
	}
}

func (m *LedgerMetrics) ObserveReconcile(drifted, repaired int) {
	if m == nil || m.drifted == nil {
		return
	}
	m.drifted.Set(float64(drifted))
	m.repaired.Add(float64(repaired))
}
