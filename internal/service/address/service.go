// Package address управляет адресами доставки пользователя.
package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/flags"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
)

// Service: CRUD адресов с поддержкой единственного адреса по умолчанию.
type Service struct {
	guard  *guard.Guard
	flags  *flags.Coordinator
	logger *log.Entry
}

// NewService создаёт сервис адресов.
func NewService(g *guard.Guard, coord *flags.Coordinator, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "address-service")
	}
	return &Service{guard: g, flags: coord, logger: logger}
}

// Create сохраняет адрес. Первый адрес пользователя становится адресом по умолчанию.
func (s *Service) Create(ctx context.Context, a domain.Address) (domain.Address, error) {
	a = normalize(a)
	if err := a.Validate(); err != nil {
		return domain.Address{}, err
	}
	a.ID = uuid.NewString()
	wantDefault := a.IsDefault
	a.IsDefault = false

	return guard.Execute(ctx, s.guard, "address", func(ctx context.Context, tx domain.Tx) (domain.Address, error) {
		group := flags.AddressDefaults
		if err := tx.LockGroup(ctx, group.LockKey(a.UserID)); err != nil {
			return domain.Address{}, err
		}
		existing, err := tx.Addresses().ListByUser(ctx, a.UserID)
		if err != nil {
			return domain.Address{}, err
		}

		if err := tx.Addresses().Create(ctx, a); err != nil {
			return domain.Address{}, fmt.Errorf("create address: %w", err)
		}
		if wantDefault || len(existing) == 0 {
			if _, err := s.flags.SetFlagTx(ctx, tx, group, a.UserID, a.ID); err != nil {
				return domain.Address{}, err
			}
		}
		return tx.Addresses().Get(ctx, a.UserID, a.ID)
	})
}

// Update меняет поля адреса. Флаг по умолчанию меняется только через SetDefault.
func (s *Service) Update(ctx context.Context, a domain.Address) (domain.Address, error) {
	a = normalize(a)
	if err := a.Validate(); err != nil {
		return domain.Address{}, err
	}
	return guard.Execute(ctx, s.guard, "address", func(ctx context.Context, tx domain.Tx) (domain.Address, error) {
		if err := tx.Addresses().Update(ctx, a); err != nil {
			return domain.Address{}, err
		}
		return tx.Addresses().Get(ctx, a.UserID, a.ID)
	})
}

// List возвращает адреса пользователя в порядке создания.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Address, error) {
	return guard.Execute(ctx, s.guard, "address", func(ctx context.Context, tx domain.Tx) ([]domain.Address, error) {
		return tx.Addresses().ListByUser(ctx, userID)
	})
}

// SetDefault делает адрес адресом по умолчанию.
func (s *Service) SetDefault(ctx context.Context, userID, addressID string) error {
	err := s.flags.SetFlag(ctx, flags.AddressDefaults, userID, addressID)
	if errors.Is(err, domain.ErrFlagTargetNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrAddressNotFound, err)
	}
	return err
}

// Delete удаляет адрес. Если удалён адрес по умолчанию, флаг переходит
// к последнему изменённому из оставшихся.
func (s *Service) Delete(ctx context.Context, userID, addressID string) error {
	var promoted string
	err := s.guard.Run(ctx, "address", func(ctx context.Context, tx domain.Tx) error {
		group := flags.AddressDefaults
		if err := tx.LockGroup(ctx, group.LockKey(userID)); err != nil {
			return err
		}
		removed, err := tx.Addresses().Get(ctx, userID, addressID)
		if err != nil {
			return err
		}
		if err := tx.Addresses().Delete(ctx, userID, addressID); err != nil {
			return err
		}
		if !removed.IsDefault {
			return nil
		}

		remaining, err := tx.Addresses().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
		next := remaining[0]
		for _, a := range remaining[1:] {
			if a.UpdatedAt.After(next.UpdatedAt) {
				next = a
			}
		}
		promoted = next.ID
		_, err = s.flags.SetFlagTx(ctx, tx, group, userID, next.ID)
		return err
	})
	if err != nil {
		return err
	}

	if promoted != "" {
		s.logger.WithFields(log.Fields{
			"user_id":    userID,
			"address_id": promoted,
		}).Info("default address reassigned")
	}
	return nil
}

func normalize(a domain.Address) domain.Address {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	return a
}
