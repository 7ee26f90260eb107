// Package checkout превращает корзину в заказ одной атомарной транзакцией.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
)

// Результаты оформления для метрик.
const (
	resultSuccess           = "success"
	resultEmptyCart         = "empty_cart"
	resultAddressNotFound   = "address_not_found"
	resultInsufficientStock = "insufficient_stock"
	resultStockChanged      = "stock_changed"
	resultInvalid           = "invalid"
	resultError             = "error"
)

// Coordinator оформляет заказы.
type Coordinator struct {
	guard   *guard.Guard
	reader  *cart.Reader
	logger  *log.Entry
	metrics *metrics.StoreMetrics
	now     func() time.Time
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator создаёт координатор оформления.
func NewCoordinator(g *guard.Guard, reader *cart.Reader, logger *log.Entry, m *metrics.StoreMetrics, opts ...Option) *Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	c := &Coordinator{
		guard:   g,
		reader:  reader,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Checkout списывает остатки, фиксирует цены позиций, создаёт заказ в статусе pending
// и очищает корзину. Конфликт версий (остаток или корзина изменились после чтения)
// возвращается как ErrStockChanged: оформление нужно повторить целиком.
func (c *Coordinator) Checkout(ctx context.Context, userID, shippingAddressID string, method domain.ShippingMethod) (domain.Order, error) {
	started := time.Now()
	logger := c.logger.WithFields(log.Fields{
		"user_id":    userID,
		"address_id": shippingAddressID,
	})

	order, err := guard.Execute(ctx, c.guard, "product", func(ctx context.Context, tx domain.Tx) (domain.Order, error) {
		return c.placeOrder(ctx, tx, userID, shippingAddressID, method)
	})
	if err != nil {
		if domain.IsVersionConflict(err) {
			err = fmt.Errorf("%w: %w", domain.ErrStockChanged, err)
		}
		result := checkoutResult(err)
		c.metrics.RecordCheckout(result, time.Since(started))
		if domain.KindOf(err) == domain.KindInternal {
			logger.WithError(err).Error("checkout failed")
		} else {
			logger.WithError(err).WithField("result", result).Info("checkout rejected")
		}
		return domain.Order{}, err
	}

	c.metrics.RecordCheckout(resultSuccess, time.Since(started))
	c.metrics.RecordOutboxEnqueued(domain.EventOrderPlaced)
	logger.WithFields(log.Fields{
		"order_id": order.ID,
		"total":    order.TotalAmount.StringFixed(domain.MoneyScale),
		"lines":    len(order.Lines),
	}).Info("order placed")
	return order, nil
}

func (c *Coordinator) placeOrder(ctx context.Context, tx domain.Tx, userID, addressID string, method domain.ShippingMethod) (domain.Order, error) {
	if _, err := domain.ShippingFee(method); err != nil {
		return domain.Order{}, err
	}

	snap, err := c.reader.Snapshot(ctx, tx, userID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(snap.Lines) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}

	address, err := tx.Addresses().Get(ctx, userID, addressID)
	if err != nil {
		return domain.Order{}, err
	}

	// Один товар может встретиться в нескольких позициях: списываем с рабочей копии
	// и сохраняем каждый товар один раз.
	working := make(map[string]domain.Product, len(snap.Lines))
	touched := make([]string, 0, len(snap.Lines))
	lines := make([]domain.OrderLine, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		product, seen := working[line.Product.ID]
		if !seen {
			product = line.Product
			touched = append(touched, product.ID)
		}
		if line.Quantity > product.StockQuantity {
			return domain.Order{}, &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.StockQuantity,
			}
		}
		product.StockQuantity -= line.Quantity
		working[product.ID] = product

		lines = append(lines, domain.OrderLine{
			ID: uuid.NewString(),
			Product: domain.ProductSnapshot{
				ProductID:    product.ID,
				Name:         product.Name,
				Price:        product.Price,
				ThumbnailURL: line.ThumbnailURL,
			},
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
			Total:     domain.LineTotal(product.Price, line.Quantity),
		})
	}

	for _, id := range touched {
		if err := tx.Products().Save(ctx, working[id]); err != nil {
			return domain.Order{}, err
		}
	}

	totals, err := domain.ComputeTotals(lines, method)
	if err != nil {
		return domain.Order{}, err
	}

	now := c.now()
	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		ShippingMethod:  method,
		ShippingAddress: address.Snapshot(),
		Lines:           lines,
		Milestones:      []domain.Milestone{{Status: domain.OrderStatusPending, OccurredAt: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	totals.Apply(&order)

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order invariants: %w", errors.Join(errs...))
	}

	if err := tx.Orders().Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	if err := tx.Carts().Clear(ctx, userID); err != nil {
		return domain.Order{}, fmt.Errorf("clear cart: %w", err)
	}

	msg, err := domain.NewOrderPlacedMessage(order)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return domain.Order{}, fmt.Errorf("enqueue %s: %w", msg.EventType, err)
	}

	return order, nil
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return resultEmptyCart
	case errors.Is(err, domain.ErrAddressNotFound):
		return resultAddressNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return resultInsufficientStock
	case errors.Is(err, domain.ErrStockChanged):
		return resultStockChanged
	case domain.KindOf(err) == domain.KindBadRequest:
		return resultInvalid
	default:
		return resultError
	}
}
