package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewOrderMetrics(t *testing.T) {
	m := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	if m == nil {
		t.Fatal("newOrderMetricsWithRegisterer should not return nil")
	}
	if m.ordersPlaced == nil {
		t.Error("ordersPlaced counter should not be nil")
	}
	if m.ordersRejected == nil {
		t.Error("ordersRejected counter vec should not be nil")
	}
	if m.ordersCanceled == nil {
		t.Error("ordersCanceled counter should not be nil")
	}
	if m.placeDuration == nil {
		t.Error("placeDuration histogram should not be nil")
	}
	if m.cancelDuration == nil {
		t.Error("cancelDuration histogram should not be nil")
	}
	if m.inFlight == nil {
		t.Error("inFlight gauge should not be nil")
	}
}

func TestOrderMetrics_Counters(t *testing.T) {
	m := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderPlaced()
	m.RecordOrderPlaced()
	m.RecordOrderCanceled()
	m.RecordOrderRejected(RejectReasonInsufficientStock)
	m.RecordStockRestored(3)
	m.RecordStockRestored(-1) // отрицательные значения игнорируются

	if got := testutil.ToFloat64(m.ordersPlaced); got != 2 {
		t.Fatalf("expected 2 placed orders, got %v", got)
	}
	if got := testutil.ToFloat64(m.ordersCanceled); got != 1 {
		t.Fatalf("expected 1 cancelled order, got %v", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected.WithLabelValues(RejectReasonInsufficientStock)); got != 1 {
		t.Fatalf("expected 1 stock rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.stockRestored); got != 3 {
		t.Fatalf("expected 3 restored units, got %v", got)
	}
}

func TestOrderMetrics_InFlight(t *testing.T) {
	m := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordInFlightStarted()
	m.RecordInFlightStarted()
	m.RecordInFlightFinished()

	if got := testutil.ToFloat64(m.inFlight); got != 1 {
		t.Fatalf("expected 1 in-flight order, got %v", got)
	}
}

func TestOrderMetrics_Durations(t *testing.T) {
	m := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	// Достаточно убедиться, что наблюдения не паникуют.
	m.RecordPlaceDuration(15 * time.Millisecond)
	m.RecordCancelDuration(5 * time.Millisecond)
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()
}

func TestOrderMetrics_DoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(registry)
	second := newOrderMetricsWithRegisterer(registry)

	// Повторная регистрация должна вернуть существующие коллекторы, а не паниковать.
	first.RecordOrderPlaced()
	second.RecordOrderPlaced()

	if got := testutil.ToFloat64(first.ordersPlaced); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}
