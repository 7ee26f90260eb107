// Package flags поддерживает инвариант «ровно один отмеченный элемент в группе»:
// адрес по умолчанию у пользователя и главное изображение у товара.
package flags

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
)

// Member: элемент группы и его флаг.
type Member struct {
	ID      string
	Flagged bool
}

// Group описывает одну разновидность группы флагов.
type Group interface {
	// Name используется в логах и метриках.
	Name() string
	// LockKey возвращает ключ блокировки для конкретной группы.
	LockKey(groupKey string) string
	Members(ctx context.Context, tx domain.Tx, groupKey string) ([]Member, error)
	SetFlag(ctx context.Context, tx domain.Tx, id string, flagged bool) error
}

// Coordinator переключает флаг внутри группы.
type Coordinator struct {
	guard   *guard.Guard
	logger  *log.Entry
	metrics *metrics.StoreMetrics
}

// NewCoordinator создаёт координатор.
func NewCoordinator(g *guard.Guard, logger *log.Entry, m *metrics.StoreMetrics) *Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "flag-coordinator")
	}
	return &Coordinator{guard: g, logger: logger, metrics: m}
}

// SetFlag отмечает targetID в группе groupKey в отдельной транзакции.
func (c *Coordinator) SetFlag(ctx context.Context, group Group, groupKey, targetID string) error {
	var changed bool
	err := c.guard.Run(ctx, group.Name(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		changed, err = c.SetFlagTx(ctx, tx, group, groupKey, targetID)
		return err
	})
	c.record(group, err, changed)
	if err != nil {
		return err
	}

	if changed {
		c.logger.WithFields(log.Fields{
			"group":     group.Name(),
			"group_key": groupKey,
			"target_id": targetID,
		}).Info("flag moved")
	}
	return nil
}

// SetFlagTx выполняет переключение внутри уже открытой транзакции.
// Возвращает false, если цель уже была отмечена.
func (c *Coordinator) SetFlagTx(ctx context.Context, tx domain.Tx, group Group, groupKey, targetID string) (bool, error) {
	if err := tx.LockGroup(ctx, group.LockKey(groupKey)); err != nil {
		return false, err
	}

	members, err := group.Members(ctx, tx, groupKey)
	if err != nil {
		return false, err
	}

	var (
		target  *Member
		flagged []string
	)
	for i := range members {
		if members[i].ID == targetID {
			target = &members[i]
		}
		if members[i].Flagged && members[i].ID != targetID {
			flagged = append(flagged, members[i].ID)
		}
	}
	if target == nil {
		return false, fmt.Errorf("%s %s/%s: %w", group.Name(), groupKey, targetID, domain.ErrFlagTargetNotFound)
	}
	if target.Flagged && len(flagged) == 0 {
		return false, nil
	}

	// Сначала снимаем флаг, затем ставим: уникальный индекс не должен увидеть две отметки.
	for _, id := range flagged {
		if err := group.SetFlag(ctx, tx, id, false); err != nil {
			return false, fmt.Errorf("clear %s %s: %w", group.Name(), id, err)
		}
	}
	if !target.Flagged {
		if err := group.SetFlag(ctx, tx, targetID, true); err != nil {
			return false, fmt.Errorf("set %s %s: %w", group.Name(), targetID, err)
		}
	}
	return true, nil
}

func (c *Coordinator) record(group Group, err error, changed bool) {
	result := "noop"
	switch {
	case errors.Is(err, domain.ErrFlagTargetNotFound):
		result = "not_found"
	case errors.Is(err, domain.ErrFlagConflict), domain.IsVersionConflict(err):
		result = "conflict"
	case err != nil:
		result = "error"
	case changed:
		result = "changed"
	}
	c.metrics.RecordFlagChange(group.Name(), result)
}
