// Package cart читает корзину с актуальными данными каталога и изменяет её.
package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Line: позиция корзины, дополненная живыми данными товара.
type Line struct {
	Product      domain.Product
	Quantity     int32
	ThumbnailURL string
	Total        decimal.Decimal
}

// View: корзина для показа пользователю.
type View struct {
	UserID   string
	Lines    []Line
	Subtotal decimal.Decimal
	Warnings []string
}

// Snapshot: прочитанная в транзакции корзина. Stale содержит товары,
// которые больше нельзя купить.
type Snapshot struct {
	Cart     domain.Cart
	Lines    []Line
	Stale    []string
	Warnings []string
}

// Reader собирает View и Snapshot.
type Reader struct {
	uow     domain.UnitOfWork
	logger  *log.Entry
	metrics *metrics.StoreMetrics
}

// NewReader создаёт Reader.
func NewReader(uow domain.UnitOfWork, logger *log.Entry, m *metrics.StoreMetrics) *Reader {
	if logger == nil {
		logger = log.New().WithField("component", "cart-reader")
	}
	return &Reader{uow: uow, logger: logger, metrics: m}
}

// Load возвращает корзину пользователя. Недоступные позиции попадают в Warnings
// и удаляются из сохранённой корзины отдельной записью; её ошибка только логируется.
func (r *Reader) Load(ctx context.Context, userID string) (View, error) {
	var snap Snapshot
	err := r.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		snap, err = r.Snapshot(ctx, tx, userID)
		return err
	})
	if err != nil {
		return View{}, err
	}

	if len(snap.Stale) > 0 {
		r.cleanup(ctx, userID, snap.Stale)
	}
	r.metrics.RecordCartWarnings(len(snap.Warnings))

	return snap.View(), nil
}

// Snapshot читает корзину в рамках переданной транзакции.
func (r *Reader) Snapshot(ctx context.Context, tx domain.Tx, userID string) (Snapshot, error) {
	c, err := tx.Carts().Get(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get cart: %w", err)
	}
	snap := Snapshot{Cart: c}
	if c.Empty() {
		return snap, nil
	}

	ids := c.ProductIDs()
	products, err := tx.Products().GetMany(ctx, ids)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load cart products: %w", err)
	}
	thumbnails, err := tx.Images().MainURLs(ctx, ids)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load cart thumbnails: %w", err)
	}

	for _, line := range c.Lines {
		product, ok := products[line.ProductID]
		switch {
		case !ok:
			snap.Stale = append(snap.Stale, line.ProductID)
			snap.Warnings = append(snap.Warnings, removedWarning(line.ProductID))
		case !product.Available():
			snap.Stale = append(snap.Stale, line.ProductID)
			snap.Warnings = append(snap.Warnings, removedWarning(product.Name))
		default:
			snap.Lines = append(snap.Lines, Line{
				Product:      product,
				Quantity:     line.Quantity,
				ThumbnailURL: thumbnails[line.ProductID],
				Total:        domain.LineTotal(product.Price, line.Quantity),
			})
		}
	}
	return snap, nil
}

// View превращает снимок в представление для пользователя.
func (s Snapshot) View() View {
	subtotal := decimal.Zero
	for _, line := range s.Lines {
		subtotal = subtotal.Add(line.Total)
	}
	return View{
		UserID:   s.Cart.UserID,
		Lines:    s.Lines,
		Subtotal: subtotal,
		Warnings: s.Warnings,
	}
}

func (r *Reader) cleanup(ctx context.Context, userID string, stale []string) {
	err := r.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Carts().RemoveLines(ctx, userID, stale)
	})
	logger := r.logger.WithFields(log.Fields{
		"user_id": userID,
		"removed": len(stale),
	})
	if err != nil {
		logger.WithError(err).Warn("failed to remove unavailable items from cart")
		return
	}
	logger.Info("removed unavailable items from cart")
}

func removedWarning(name string) string {
	return fmt.Sprintf("Item '%s' got removed because it is no longer available.", name)
}
