package metrics

import "github.com/prometheus/client_golang/prometheus"

// SaleMetrics counts sale lifecycle operations by outcome.
type SaleMetrics struct {
	operations *prometheus.CounterVec
}

// NewSaleMetrics registers the sale lifecycle counters on the provided registerer.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_operations_total",
		Help: "Sale lifecycle operations by kind and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(operations)
	return &SaleMetrics{operations: operations}
}

// IncSuccess counts a successful lifecycle operation.
func (s *SaleMetrics) IncSuccess(operation string) {
	s.inc(operation, "success")
}

// IncFailure counts a failed lifecycle operation.
func (s *SaleMetrics) IncFailure(operation string) {
	s.inc(operation, "failure")
}

func (s *SaleMetrics) inc(operation, outcome string) {
	if s == nil || s.operations == nil {
		return
	}
	s.operations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}
