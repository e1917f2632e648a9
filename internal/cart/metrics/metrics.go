package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MutationsTotal       *prometheus.CounterVec
	StockRejectionsTotal prometheus.Counter
	MigrationsTotal      *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		MutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trolley_cart_mutations_total",
			Help: "Cart mutations by kind and outcome",
		}, []string{"kind", "outcome"}),
		StockRejectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trolley_cart_stock_rejections_total",
			Help: "Mutations rejected up front for insufficient available stock",
		}),
		MigrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trolley_cart_migrations_total",
			Help: "Session cart migrations by transition and outcome",
		}, []string{"transition", "outcome"}),
	}
}

func (m *Metrics) ObserveMutation(kind string, confirmed bool) {
	m.MutationsTotal.WithLabelValues(kind, outcome(confirmed)).Inc()
}

func (m *Metrics) IncrementStockRejections() {
	m.StockRejectionsTotal.Inc()
}

func (m *Metrics) ObserveMigration(transition string, ok bool) {
	m.MigrationsTotal.WithLabelValues(transition, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "confirmed"
	}
	return "rolled_back"
}
