package cart

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Item: запрошенная позиция при замене корзины.
type Item struct {
	ProductID string
	Quantity  int32
}

// Service изменяет корзину пользователя.
type Service struct {
	uow     domain.UnitOfWork
	reader  *Reader
	logger  *log.Entry
	metrics *metrics.StoreMetrics
}

// NewService создаёт сервис корзины.
func NewService(uow domain.UnitOfWork, reader *Reader, logger *log.Entry, m *metrics.StoreMetrics) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart-service")
	}
	return &Service{uow: uow, reader: reader, logger: logger, metrics: m}
}

// Update заменяет содержимое корзины запрошенными позициями.
// Неизвестные и снятые с продажи товары пропускаются, количество сверх остатка урезается.
func (s *Service) Update(ctx context.Context, userID string, items []Item) (View, error) {
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return View{}, fmt.Errorf("cart item %q quantity %d: %w", item.ProductID, item.Quantity, domain.ErrInvalidArgument)
		}
	}

	var (
		warnings []string
		snap     Snapshot
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		products, err := tx.Products().GetMany(ctx, ids)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}

		lines := make([]domain.CartLine, 0, len(items))
		index := make(map[string]int, len(items))
		for _, item := range items {
			product, ok := products[item.ProductID]
			if !ok {
				warnings = append(warnings, fmt.Sprintf("Item %s not added because it no longer exists.", item.ProductID))
				continue
			}
			if !product.Available() {
				warnings = append(warnings, fmt.Sprintf("Item '%s' not added because it is no longer available.", product.Name))
				continue
			}
			qty := item.Quantity
			if qty > product.StockQuantity {
				qty = product.StockQuantity
				warnings = append(warnings, fmt.Sprintf("Quantity for '%s' adjusted to %d due to stock limits.", product.Name, qty))
			}
			if qty == 0 {
				continue
			}
			// Повтор товара в запросе заменяет количество.
			if i, dup := index[item.ProductID]; dup {
				lines[i].Quantity = qty
				continue
			}
			index[item.ProductID] = len(lines)
			lines = append(lines, domain.CartLine{ProductID: item.ProductID, Quantity: qty})
		}

		if err := tx.Carts().Save(ctx, domain.Cart{UserID: userID, Lines: lines}); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}

		snap, err = s.reader.Snapshot(ctx, tx, userID)
		return err
	})
	if err != nil {
		return View{}, err
	}

	view := snap.View()
	view.Warnings = append(warnings, view.Warnings...)
	s.metrics.RecordCartWarnings(len(view.Warnings))

	s.logger.WithFields(log.Fields{
		"user_id":  userID,
		"lines":    len(view.Lines),
		"warnings": len(view.Warnings),
	}).Debug("cart updated")
	return view, nil
}

// Clear удаляет все позиции корзины.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Carts().Clear(ctx, userID)
	})
}
