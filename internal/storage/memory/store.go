package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store: in-memory реализация UnitOfWork для разработки и тестов.
// Транзакция пишет в собственный overlay, версии и флаги проверяются при коммите под общим мьютексом.
type Store struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	images     map[string]domain.ProductImage
	addresses  map[string]domain.Address
	carts      map[string]domain.Cart
	orders     map[string]domain.Order
	milestones map[string][]domain.Milestone

	// cartVersions растёт при каждом коммите, изменившем корзину пользователя.
	cartVersions map[string]int64

	outbox *outboxRepositoryInMemory
	groups *groupLocks
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		images:       make(map[string]domain.ProductImage),
		addresses:    make(map[string]domain.Address),
		carts:        make(map[string]domain.Cart),
		cartVersions: make(map[string]int64),
		orders:       make(map[string]domain.Order),
		milestones:   make(map[string][]domain.Milestone),
		outbox:       NewOutboxRepository(),
		groups:       newGroupLocks(),
	}
}

// Outbox возвращает outbox-репозиторий, в который коммитятся события транзакций.
func (s *Store) Outbox() domain.OutboxRepository {
	return s.outbox
}

// Do выполняет fn в транзакции. Ошибка fn откатывает все записи.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := newMemTx(s)
	defer t.releaseLocks()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expected := range t.productVersions {
		current, ok := s.products[id]
		if !ok || current.Version != expected {
			return fmt.Errorf("product %s: %w", id, domain.ErrVersionConflict)
		}
	}
	for id := range t.createdProducts {
		if _, exists := s.products[id]; exists {
			return fmt.Errorf("product %s already exists: %w", id, domain.ErrVersionConflict)
		}
	}
	for id, expected := range t.orderVersions {
		current, ok := s.orders[id]
		if !ok || current.Version != expected {
			return fmt.Errorf("order %s: %w", id, domain.ErrVersionConflict)
		}
	}
	for userID, expected := range t.cartVersions {
		if s.cartVersions[userID] != expected {
			return fmt.Errorf("cart of user %s: %w", userID, domain.ErrVersionConflict)
		}
	}
	for id := range t.createdOrders {
		if _, exists := s.orders[id]; exists {
			return fmt.Errorf("order %s already exists: %w", id, domain.ErrVersionConflict)
		}
	}
	if err := s.checkFlagGroupsLocked(t); err != nil {
		return err
	}

	t.products.applyTo(s.products)
	t.images.applyTo(s.images)
	t.addresses.applyTo(s.addresses)
	t.carts.applyTo(s.carts)
	for userID := range t.cartVersions {
		s.cartVersions[userID]++
	}
	t.orders.applyTo(s.orders)
	for orderID, items := range t.milestones {
		s.milestones[orderID] = append(s.milestones[orderID], items...)
	}
	for _, msg := range t.outbox {
		if _, err := s.outbox.Enqueue(context.Background(), msg); err != nil {
			return err
		}
	}

	return nil
}

// checkFlagGroupsLocked повторяет частичный уникальный индекс: не больше одного флага в группе.
func (s *Store) checkFlagGroupsLocked(t *memTx) error {
	users := make(map[string]struct{})
	for _, a := range t.addresses.writes {
		users[a.UserID] = struct{}{}
	}
	for userID := range users {
		count := 0
		for _, a := range t.addresses.merged(s.addresses, func(a domain.Address) bool { return a.UserID == userID }) {
			if a.IsDefault {
				count++
			}
		}
		if count > 1 {
			return fmt.Errorf("default address of user %s: %w", userID, domain.ErrFlagConflict)
		}
	}

	products := make(map[string]struct{})
	for _, img := range t.images.writes {
		products[img.ProductID] = struct{}{}
	}
	for productID := range products {
		count := 0
		for _, img := range t.images.merged(s.images, func(img domain.ProductImage) bool { return img.ProductID == productID }) {
			if img.IsMain {
				count++
			}
		}
		if count > 1 {
			return fmt.Errorf("main image of product %s: %w", productID, domain.ErrFlagConflict)
		}
	}

	return nil
}

var _ domain.UnitOfWork = (*Store)(nil)
