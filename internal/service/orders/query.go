// Package orders отдаёт заказы владельцу и администратору.
package orders

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Query читает заказы с проверкой доступа.
type Query struct {
	guard *guard.Guard
}

// NewQuery создаёт Query.
func NewQuery(g *guard.Guard) *Query {
	return &Query{guard: g}
}

// Get возвращает заказ вместе с журналом статусов. Чужой заказ для покупателя
// выглядит как несуществующий.
func (q *Query) Get(ctx context.Context, id domain.Identity, orderID string) (domain.Order, error) {
	if err := id.Require(); err != nil {
		return domain.Order{}, err
	}
	order, err := guard.Execute(ctx, q.guard, "order", func(ctx context.Context, tx domain.Tx) (domain.Order, error) {
		return tx.Orders().Get(ctx, orderID)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if !id.CanAccess(order.UserID) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (q *Query) ListByUser(ctx context.Context, id domain.Identity, userID string, limit int) ([]domain.Order, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	if userID == "" {
		userID = id.UserID
	}
	if !id.CanAccess(userID) {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return guard.Execute(ctx, q.guard, "order", func(ctx context.Context, tx domain.Tx) ([]domain.Order, error) {
		return tx.Orders().ListByUser(ctx, userID, limit)
	})
}
