package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCommerceMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCommerceMetricsWithRegisterer(registry)

	m.RecordOrderCreated(150 * time.Millisecond)
	m.RecordOrderCreated(20 * time.Millisecond)
	m.RecordOrderCreateFailed("ProductInactive")
	m.RecordStatusTransition("OPEN", "PAID")
	m.RecordStatusTransition("OPEN", "PAID")
	m.RecordStatusTransition("OPEN", "CANCELLED")
	m.RecordReservationCreated()
	m.RecordReservationConflict()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.orderCreateFailed.WithLabelValues("ProductInactive")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.statusTransitions.WithLabelValues("OPEN", "PAID")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.statusTransitions.WithLabelValues("OPEN", "CANCELLED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reservationsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reservationConflicts))
}

func TestCommerceMetrics_HistogramObservations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCommerceMetricsWithRegisterer(registry)

	m.RecordOrderCreated(time.Second)

	count, err := testutil.GatherAndCount(registry, "cbs_order_create_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
