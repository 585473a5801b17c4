package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CommerceMetrics содержит метрики бизнес-операций сервиса.
type CommerceMetrics struct {
	ordersCreated     prometheus.Counter
	orderCreateFailed *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec

	reservationsCreated  prometheus.Counter
	reservationConflicts prometheus.Counter

	orderCreateDuration prometheus.Histogram
}

// NewCommerceMetrics регистрирует метрики в default-регистре.
func NewCommerceMetrics() *CommerceMetrics {
	return NewCommerceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCommerceMetricsWithRegisterer регистрирует метрики в переданном
// регистре; тесты передают собственный, чтобы не конфликтовать.
func NewCommerceMetricsWithRegisterer(registerer prometheus.Registerer) *CommerceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &CommerceMetrics{
		ordersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbs_orders_created_total",
			Help: "Total number of orders created",
		}),
		orderCreateFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cbs_order_create_failed_total",
			Help: "Total number of rejected order creations grouped by reason",
		}, []string{"reason"}),
		statusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cbs_order_status_transitions_total",
			Help: "Total number of order status transitions",
		}, []string{"from", "to"}),
		reservationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbs_reservations_created_total",
			Help: "Total number of reservations created",
		}),
		reservationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbs_reservation_conflicts_total",
			Help: "Total number of reservations rejected due to overlap",
		}),
		orderCreateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbs_order_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordOrderCreated учитывает успешное создание заказа и его длительность.
func (m *CommerceMetrics) RecordOrderCreated(elapsed time.Duration) {
	m.ordersCreated.Inc()
	m.orderCreateDuration.Observe(elapsed.Seconds())
}

// RecordOrderCreateFailed учитывает отклонённое создание заказа.
func (m *CommerceMetrics) RecordOrderCreateFailed(reason string) {
	m.orderCreateFailed.WithLabelValues(reason).Inc()
}

// RecordStatusTransition учитывает смену статуса заказа.
func (m *CommerceMetrics) RecordStatusTransition(from, to string) {
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordReservationCreated учитывает успешное бронирование.
func (m *CommerceMetrics) RecordReservationCreated() {
	m.reservationsCreated.Inc()
}

// RecordReservationConflict учитывает отказ из-за пересечения интервалов.
func (m *CommerceMetrics) RecordReservationConflict() {
	m.reservationConflicts.Inc()
}
