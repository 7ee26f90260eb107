package address_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/address"
	"github.com/vladislavdragonenkov/storefront/internal/service/flags"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newService() *address.Service {
	store := memory.NewStore()
	g := guard.New(store, nil, nil)
	return address.NewService(g, flags.NewCoordinator(g, nil, nil), nil)
}

func sample(userID, street string) domain.Address {
	return domain.Address{
		UserID:   userID,
		FullName: " Karim Hassan ",
		Street:   street,
		City:     "Cairo",
		Country:  "EG",
	}
}

func defaults(t *testing.T, svc *address.Service, userID string) []string {
	t.Helper()
	list, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	var ids []string
	for _, a := range list {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestCreate_FirstAddressBecomesDefault(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	first, err := svc.Create(ctx, sample("u-1", "1 A st"))
	require.NoError(t, err)
	require.True(t, first.IsDefault)
	require.Equal(t, "Karim Hassan", first.FullName)

	second, err := svc.Create(ctx, sample("u-1", "2 B st"))
	require.NoError(t, err)
	require.False(t, second.IsDefault)

	req := sample("u-1", "3 C st")
	req.IsDefault = true
	third, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.True(t, third.IsDefault)
	require.Equal(t, []string{third.ID}, defaults(t, svc, "u-1"))
}

func TestCreate_Validation(t *testing.T) {
	svc := newService()

	_, err := svc.Create(context.Background(), sample("u-1", "  "))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Create(context.Background(), sample("", "1 A st"))
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSetDefault(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	first, err := svc.Create(ctx, sample("u-1", "1 A st"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, sample("u-1", "2 B st"))
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(ctx, "u-1", second.ID))
	require.Equal(t, []string{second.ID}, defaults(t, svc, "u-1"))

	err = svc.SetDefault(ctx, "u-2", first.ID)
	require.ErrorIs(t, err, domain.ErrAddressNotFound)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDelete_PromotesMostRecentlyUpdated(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	home, err := svc.Create(ctx, sample("u-1", "1 A st"))
	require.NoError(t, err)
	older, err := svc.Create(ctx, sample("u-1", "2 B st"))
	require.NoError(t, err)
	newer, err := svc.Create(ctx, sample("u-1", "3 C st"))
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	older.Street = "2 B st, apt 4"
	_, err = svc.Update(ctx, older)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u-1", home.ID))
	require.Equal(t, []string{older.ID}, defaults(t, svc, "u-1"))

	require.NoError(t, svc.Delete(ctx, "u-1", newer.ID))
	require.Equal(t, []string{older.ID}, defaults(t, svc, "u-1"))

	require.NoError(t, svc.Delete(ctx, "u-1", older.ID))
	require.Empty(t, defaults(t, svc, "u-1"))
}

func TestDelete_ForeignAddress(t *testing.T) {
	svc := newService()
	a, err := svc.Create(context.Background(), sample("u-1", "1 A st"))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), "u-2", a.ID), domain.ErrAddressNotFound)
}
