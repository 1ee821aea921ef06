package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records escrow and batch activity for operators. The
// registry is lazily initialised so tests and tools that never scrape pay
// nothing.
type SettlementMetrics struct {
	Operations   *prometheus.CounterVec
	BatchItems   prometheus.Histogram
	CustodyUnits prometheus.Gauge
}

var (
	settlementOnce sync.Once
	settlementReg  *SettlementMetrics
)

// Settlement returns the process-wide settlement metrics registry.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementReg = &SettlementMetrics{
			Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clearcore",
				Subsystem: "settlement",
				Name:      "operations_total",
				Help:      "Total mutating ledger operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			BatchItems: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "clearcore",
				Subsystem: "settlement",
				Name:      "batch_items",
				Help:      "Item count per accepted settlement batch.",
				Buckets:   []float64{1, 2, 5, 10, 20, 50},
			}),
			CustodyUnits: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "clearcore",
				Subsystem: "settlement",
				Name:      "custody_units",
				Help:      "Aggregate custody balance in the token's smallest unit.",
			}),
		}
		prometheus.MustRegister(settlementReg.Operations, settlementReg.BatchItems, settlementReg.CustodyUnits)
	})
	return settlementReg
}

// ObserveOp records one mutating operation outcome.
func (m *SettlementMetrics) ObserveOp(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}
