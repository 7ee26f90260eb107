// Package lifecycle управляет статусами заказа и побочными эффектами переходов.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
)

// Request описывает запрошенное изменение заказа.
type Request struct {
	OrderID string
	Status  domain.OrderStatus
	// AddressID задаёт новый адрес доставки; nil означает «адрес не менять».
	AddressID *string
}

// Result: заказ после перехода и сведения о выполненных эффектах.
type Result struct {
	Order          domain.Order
	From           domain.OrderStatus
	StatusChanged  bool
	AddressChanged bool
	Restocked      []domain.StockMovement
	Skipped        []string
}

// Changed сообщает, что заказ был изменён.
func (r Result) Changed() bool {
	return r.StatusChanged || r.AddressChanged
}

// sideEffect выполняется в транзакции перехода до сохранения заказа.
type sideEffect func(ctx context.Context, tx domain.Tx, order domain.Order, res *Result) error

type edge struct {
	from domain.OrderStatus
	to   domain.OrderStatus
}

// Machine применяет таблицу переходов domain и побочные эффекты.
type Machine struct {
	guard   *guard.Guard
	logger  *log.Entry
	metrics *metrics.StoreMetrics
	now     func() time.Time
	effects map[edge]sideEffect
}

// Option настраивает Machine.
type Option func(*Machine)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine создаёт машину состояний заказа.
func NewMachine(g *guard.Guard, logger *log.Entry, m *metrics.StoreMetrics, opts ...Option) *Machine {
	if logger == nil {
		logger = log.New().WithField("component", "order-lifecycle")
	}
	machine := &Machine{
		guard:   g,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
	machine.effects = map[edge]sideEffect{
		{domain.OrderStatusPending, domain.OrderStatusCancelled}:    machine.restock,
		{domain.OrderStatusProcessing, domain.OrderStatusCancelled}: machine.restock,
	}
	for _, opt := range opts {
		opt(machine)
	}
	return machine
}

// Transition переводит заказ в req.Status и при необходимости меняет адрес доставки.
// Повторный запрос того же статуса без адреса ничего не меняет.
func (m *Machine) Transition(ctx context.Context, req Request) (Result, error) {
	logger := m.logger.WithFields(log.Fields{
		"order_id": req.OrderID,
		"to":       req.Status,
	})

	res, err := guard.Execute(ctx, m.guard, "order", func(ctx context.Context, tx domain.Tx) (Result, error) {
		return m.apply(ctx, tx, req)
	})
	if err != nil {
		kind := domain.KindOf(err)
		m.metrics.RecordTransitionRejected(string(kind))
		if kind == domain.KindInternal {
			logger.WithError(err).Error("order transition failed")
		} else {
			logger.WithError(err).Info("order transition rejected")
		}
		return Result{}, err
	}

	if res.StatusChanged {
		m.metrics.RecordTransition(string(res.From), string(res.Order.Status))
	}
	if res.Changed() {
		m.metrics.RecordOutboxEnqueued(changedEventType(res))
	}
	for range res.Skipped {
		m.metrics.RecordRestockSkipped()
	}
	units := 0
	for _, mv := range res.Restocked {
		units += int(mv.Quantity)
	}
	m.metrics.RecordRestock(units)

	for _, productID := range res.Skipped {
		logger.WithField("product_id", productID).Warn("product no longer exists, restock skipped")
	}
	if res.Changed() {
		logger.WithFields(log.Fields{
			"from":            res.From,
			"address_changed": res.AddressChanged,
			"restocked_units": units,
		}).Info("order updated")
	}
	return res, nil
}

func (m *Machine) apply(ctx context.Context, tx domain.Tx, req Request) (Result, error) {
	order, err := tx.Orders().Get(ctx, req.OrderID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Order: order, From: order.Status}

	if order.Status == req.Status && req.AddressID == nil {
		return res, nil
	}
	if err := domain.CheckTransition(order.Status, req.Status); err != nil {
		return Result{}, err
	}

	var address domain.Address
	if req.AddressID != nil {
		if err := domain.CheckAddressChange(order.Status, req.Status); err != nil {
			return Result{}, err
		}
		address, err = tx.Addresses().Get(ctx, order.UserID, *req.AddressID)
		if err != nil {
			return Result{}, err
		}
	}

	if effect, ok := m.effects[edge{from: order.Status, to: req.Status}]; ok {
		if err := effect(ctx, tx, order, &res); err != nil {
			return Result{}, err
		}
	}

	now := m.now()
	if order.Status != req.Status {
		order.Status = req.Status
		res.StatusChanged = true
	}
	if req.AddressID != nil {
		snapshot := address.Snapshot()
		res.AddressChanged = snapshot != order.ShippingAddress
		order.ShippingAddress = snapshot
	}
	if !res.Changed() {
		return res, nil
	}
	order.UpdatedAt = now

	if err := tx.Orders().Save(ctx, order); err != nil {
		return Result{}, err
	}
	order.Version++

	if res.StatusChanged {
		milestone := domain.Milestone{Status: order.Status, OccurredAt: now}
		if err := tx.Orders().AppendMilestone(ctx, order.ID, milestone); err != nil {
			return Result{}, fmt.Errorf("append milestone: %w", err)
		}
		order.Milestones = append(order.Milestones, milestone)
	}

	msg, err := domain.NewOrderChangedMessage(order, res.From, res.AddressChanged, res.Restocked)
	if err != nil {
		return Result{}, err
	}
	if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return Result{}, fmt.Errorf("enqueue %s: %w", msg.EventType, err)
	}

	res.Order = order
	return res, nil
}

// restock возвращает на склад количество каждой позиции. Товар, которого больше нет
// в каталоге, пропускается.
func (m *Machine) restock(ctx context.Context, tx domain.Tx, order domain.Order, res *Result) error {
	quantities := make(map[string]int32, len(order.Lines))
	ids := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		id := line.Product.ProductID
		if _, seen := quantities[id]; !seen {
			ids = append(ids, id)
		}
		quantities[id] += line.Quantity
	}

	for _, id := range ids {
		product, err := tx.Products().Get(ctx, id)
		if errors.Is(err, domain.ErrProductNotFound) {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if err != nil {
			return fmt.Errorf("load product %s: %w", id, err)
		}
		product.StockQuantity += quantities[id]
		if err := tx.Products().Save(ctx, product); err != nil {
			return err
		}
		res.Restocked = append(res.Restocked, domain.StockMovement{ProductID: id, Quantity: quantities[id]})
	}
	return nil
}

func changedEventType(res Result) string {
	if res.StatusChanged {
		return domain.EventOrderStatusChanged
	}
	return domain.EventOrderAddressChanged
}
