package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics содержит метрики оформления заказов, переходов статусов и групп флагов.
// Все методы безопасно вызывать на nil.
type StoreMetrics struct {
	// Оформление
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram

	// Переходы статусов
	transitions        *prometheus.CounterVec
	transitionRejected *prometheus.CounterVec
	restockedUnits     prometheus.Counter
	restockSkipped     prometheus.Counter

	// Конкурентный доступ
	versionConflicts *prometheus.CounterVec
	flagChanges      *prometheus.CounterVec

	cartWarnings   prometheus.Counter
	outboxEnqueued *prometheus.CounterVec
}

// NewStoreMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StoreMetrics{
		checkouts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout attempts by result",
		}, []string{"result"})),
		checkoutDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})),
		transitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Accepted order status transitions",
		}, []string{"from", "to"})),
		transitionRejected: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_transitions_rejected_total",
			Help: "Rejected order status transitions by error kind",
		}, []string{"kind"})),
		restockedUnits: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_restocked_units_total",
			Help: "Units returned to stock by cancellations",
		})),
		restockSkipped: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_restock_skipped_lines_total",
			Help: "Order lines skipped on restock because the product no longer exists",
		})),
		versionConflicts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_version_conflicts_total",
			Help: "Optimistic concurrency conflicts by guarded entity",
		}, []string{"entity"})),
		flagChanges: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_flag_changes_total",
			Help: "Singleton flag changes by group and result",
		}, []string{"group", "result"})),
		cartWarnings: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cart_warnings_total",
			Help: "Warnings produced while reading or updating carts",
		})),
		outboxEnqueued: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_outbox_enqueued_total",
			Help: "Outbox events enqueued by event type",
		}, []string{"event_type"})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordCheckout фиксирует результат и длительность оформления.
func (m *StoreMetrics) RecordCheckout(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordTransition фиксирует принятый переход статуса.
func (m *StoreMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected фиксирует отклонённый переход.
func (m *StoreMetrics) RecordTransitionRejected(kind string) {
	if m == nil {
		return
	}
	m.transitionRejected.WithLabelValues(kind).Inc()
}

// RecordRestock фиксирует возврат единиц на склад.
func (m *StoreMetrics) RecordRestock(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.restockedUnits.Add(float64(units))
}

// RecordRestockSkipped фиксирует пропущенную позицию при возврате на склад.
func (m *StoreMetrics) RecordRestockSkipped() {
	if m == nil {
		return
	}
	m.restockSkipped.Inc()
}

// RecordVersionConflict фиксирует конфликт версий.
func (m *StoreMetrics) RecordVersionConflict(entity string) {
	if m == nil {
		return
	}
	m.versionConflicts.WithLabelValues(entity).Inc()
}

// RecordFlagChange фиксирует результат установки флага в группе.
func (m *StoreMetrics) RecordFlagChange(group, result string) {
	if m == nil {
		return
	}
	m.flagChanges.WithLabelValues(group, result).Inc()
}

// RecordCartWarnings фиксирует количество предупреждений корзины.
func (m *StoreMetrics) RecordCartWarnings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cartWarnings.Add(float64(n))
}

// RecordOutboxEnqueued фиксирует постановку события в outbox.
func (m *StoreMetrics) RecordOutboxEnqueued(eventType string) {
	if m == nil {
		return
	}
	m.outboxEnqueued.WithLabelValues(eventType).Inc()
}
