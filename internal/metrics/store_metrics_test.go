package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewStoreMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetricsWithRegisterer(reg)

	if m.checkouts == nil || m.checkoutDuration == nil {
		t.Fatal("checkout collectors should not be nil")
	}
	if m.transitions == nil || m.transitionRejected == nil {
		t.Fatal("transition collectors should not be nil")
	}
	if m.versionConflicts == nil || m.flagChanges == nil {
		t.Fatal("concurrency collectors should not be nil")
	}
}

func TestNewStoreMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewStoreMetricsWithRegisterer(reg)
	second := NewStoreMetricsWithRegisterer(reg)

	first.RecordVersionConflict("product")
	second.RecordVersionConflict("product")

	if got := testutil.ToFloat64(first.versionConflicts.WithLabelValues("product")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %f", got)
	}
}

func TestStoreMetrics_Record(t *testing.T) {
	m := NewStoreMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCheckout("success", 15*time.Millisecond)
	m.RecordCheckout("insufficient_stock", time.Millisecond)
	m.RecordTransition("pending", "cancelled")
	m.RecordTransitionRejected("illegal_transition")
	m.RecordRestock(3)
	m.RecordRestock(0)
	m.RecordRestockSkipped()
	m.RecordFlagChange("address_default", "changed")
	m.RecordCartWarnings(2)
	m.RecordOutboxEnqueued("order.placed")

	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful checkout, got %f", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("pending", "cancelled")); got != 1 {
		t.Errorf("expected 1 transition, got %f", got)
	}
	if got := testutil.ToFloat64(m.restockedUnits); got != 3 {
		t.Errorf("expected 3 restocked units, got %f", got)
	}
	if got := testutil.ToFloat64(m.restockSkipped); got != 1 {
		t.Errorf("expected 1 skipped line, got %f", got)
	}
	if got := testutil.ToFloat64(m.cartWarnings); got != 2 {
		t.Errorf("expected 2 cart warnings, got %f", got)
	}
	if got := testutil.CollectAndCount(m.checkoutDuration); got != 1 {
		t.Errorf("expected histogram to be collected once, got %d", got)
	}
}

func TestStoreMetrics_NilSafe(t *testing.T) {
	var m *StoreMetrics

	m.RecordCheckout("success", time.Second)
	m.RecordTransition("a", "b")
	m.RecordTransitionRejected("kind")
	m.RecordRestock(1)
	m.RecordRestockSkipped()
	m.RecordVersionConflict("order")
	m.RecordFlagChange("g", "r")
	m.RecordCartWarnings(1)
	m.RecordOutboxEnqueued("e")
}
