// Package guard выполняет read-modify-write внутри одной единицы работы
// и превращает конфликт версий в явную ошибку для вызывающего.
package guard

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Guard оборачивает UnitOfWork. Повторов внутри нет: решение о повторе принимает вызывающий.
type Guard struct {
	uow     domain.UnitOfWork
	logger  *log.Entry
	metrics *metrics.StoreMetrics
}

// New создаёт Guard. logger и m могут быть nil.
func New(uow domain.UnitOfWork, logger *log.Entry, m *metrics.StoreMetrics) *Guard {
	if logger == nil {
		logger = log.New().WithField("component", "guard")
	}
	return &Guard{uow: uow, logger: logger, metrics: m}
}

// Execute выполняет mutation в транзакции и возвращает её результат только после коммита.
// entity используется в логах и метриках конфликтов.
func Execute[T any](ctx context.Context, g *Guard, entity string, mutation func(ctx context.Context, tx domain.Tx) (T, error)) (T, error) {
	var result T
	err := g.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		out, err := mutation(ctx, tx)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		var zero T
		return zero, g.classify(entity, err)
	}
	return result, nil
}

// Run: вариант Execute без результата.
func (g *Guard) Run(ctx context.Context, entity string, mutation func(ctx context.Context, tx domain.Tx) error) error {
	_, err := Execute(ctx, g, entity, func(ctx context.Context, tx domain.Tx) (struct{}, error) {
		return struct{}{}, mutation(ctx, tx)
	})
	return err
}

func (g *Guard) classify(entity string, err error) error {
	if !domain.IsVersionConflict(err) {
		return err
	}

	g.metrics.RecordVersionConflict(entity)
	g.logger.WithFields(log.Fields{
		"entity": entity,
		"error":  err,
	}).Warn("version conflict detected")
	return err
}
