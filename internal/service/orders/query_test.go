package orders_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newQuery(t *testing.T) *orders.Query {
	t.Helper()
	store := memory.NewStore()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Do(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for i := 0; i < 3; i++ {
			created := base.Add(time.Duration(i) * time.Hour)
			if err := tx.Orders().Create(ctx, domain.Order{
				ID:         fmt.Sprintf("o-%d", i),
				UserID:     "u-1",
				Status:     domain.OrderStatusPending,
				Milestones: []domain.Milestone{{Status: domain.OrderStatusPending, OccurredAt: created}},
				CreatedAt:  created,
			}); err != nil {
				return err
			}
		}
		return nil
	}))
	return orders.NewQuery(guard.New(store, nil, nil))
}

func TestQuery_Get(t *testing.T) {
	q := newQuery(t)
	ctx := context.Background()

	order, err := q.Get(ctx, domain.Identity{UserID: "u-1", Role: domain.RoleCustomer}, "o-1")
	require.NoError(t, err)
	require.Len(t, order.Milestones, 1)

	_, err = q.Get(ctx, domain.Identity{UserID: "u-2", Role: domain.RoleCustomer}, "o-1")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = q.Get(ctx, domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}, "o-1")
	require.NoError(t, err)

	_, err = q.Get(ctx, domain.Identity{}, "o-1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestQuery_ListByUser(t *testing.T) {
	q := newQuery(t)
	ctx := context.Background()
	customer := domain.Identity{UserID: "u-1", Role: domain.RoleCustomer}

	list, err := q.ListByUser(ctx, customer, "", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "o-2", list[0].ID)
	require.Equal(t, "o-1", list[1].ID)

	_, err = q.ListByUser(ctx, domain.Identity{UserID: "u-2"}, "u-1", 10)
	require.ErrorIs(t, err, domain.ErrForbidden)

	list, err = q.ListByUser(ctx, domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}, "u-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
}
