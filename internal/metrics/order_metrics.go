package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа в оформлении заказа для label reason.
const (
	RejectReasonValidation        = "validation"
	RejectReasonUserNotFound      = "user_not_found"
	RejectReasonProductNotFound   = "product_not_found"
	RejectReasonInsufficientStock = "insufficient_stock"
	RejectReasonDuplicateItem     = "duplicate_item"
	RejectReasonStoreError        = "store_error"
)

// OrderMetrics содержит метрики оформления заказов.
type OrderMetrics struct {
	placed   prometheus.Counter
	rejected *prometheus.CounterVec

	placeDuration prometheus.Histogram
	itemsPerOrder prometheus.Histogram

	inFlight     prometheus.Gauge
	outboxEvents prometheus.Counter
}

// NewOrderMetrics создаёт метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в переданном registry.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		placed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Total number of orders confirmed",
		}),
		rejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_orders_rejected_total",
			Help: "Total number of order placements aborted grouped by reason",
		}, []string{"reason"}),
		placeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_place_duration_seconds",
			Help:    "Duration of order placement transaction in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		itemsPerOrder: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_items_per_order",
			Help:    "Number of lines in confirmed orders",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_order_placements_in_flight",
			Help: "Number of order placements currently running",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_outbox_events_total",
			Help: "Total number of order events enqueued to outbox",
		}),
	}
}

// RecordPlaced учитывает подтверждённый заказ и количество его позиций.
func (m *OrderMetrics) RecordPlaced(items int) {
	m.placed.Inc()
	m.itemsPerOrder.Observe(float64(items))
}

// RecordRejected учитывает отказ с указанной причиной.
func (m *OrderMetrics) RecordRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// RecordPlaceStarted увеличивает число выполняющихся оформлений.
func (m *OrderMetrics) RecordPlaceStarted() {
	m.inFlight.Inc()
}

// RecordPlaceFinished уменьшает число выполняющихся оформлений и пишет длительность.
func (m *OrderMetrics) RecordPlaceFinished(duration time.Duration) {
	m.inFlight.Dec()
	m.placeDuration.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
