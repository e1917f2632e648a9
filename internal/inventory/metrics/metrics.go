package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BulkReplaces    prometheus.Counter
	SingleUpdates   prometheus.Counter
	DroppedFrames   prometheus.Counter
	TrackedProducts prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		BulkReplaces: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trolley_inventory_bulk_replaces_total",
			Help: "Total number of full inventory replacement frames applied",
		}),
		SingleUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trolley_inventory_single_updates_total",
			Help: "Total number of single-record inventory merge frames applied",
		}),
		DroppedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trolley_inventory_dropped_frames_total",
			Help: "Total number of empty or malformed feed frames ignored",
		}),
		TrackedProducts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trolley_inventory_tracked_products",
			Help: "Current number of products with a known inventory record",
		}),
	}
}

func (m *Metrics) ObserveBulkReplace(products int) {
	m.BulkReplaces.Inc()
	m.TrackedProducts.Set(float64(products))
}

func (m *Metrics) ObserveSingleUpdate(products int) {
	m.SingleUpdates.Inc()
	m.TrackedProducts.Set(float64(products))
}

func (m *Metrics) ObserveDroppedFrame() {
	m.DroppedFrames.Inc()
}
