package flags

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var (
	// AddressDefaults: адреса пользователя, ключ группы: user_id.
	AddressDefaults Group = addressDefaults{}
	// MainImages: изображения товара, ключ группы: product_id.
	MainImages Group = mainImages{}
)

type addressDefaults struct{}

func (addressDefaults) Name() string { return "default_address" }

func (addressDefaults) LockKey(userID string) string { return "address:" + userID }

func (addressDefaults) Members(ctx context.Context, tx domain.Tx, userID string) ([]Member, error) {
	addresses, err := tx.Addresses().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(addresses))
	for _, a := range addresses {
		members = append(members, Member{ID: a.ID, Flagged: a.IsDefault})
	}
	return members, nil
}

func (addressDefaults) SetFlag(ctx context.Context, tx domain.Tx, id string, flagged bool) error {
	return tx.Addresses().SetDefault(ctx, id, flagged)
}

type mainImages struct{}

func (mainImages) Name() string { return "main_image" }

func (mainImages) LockKey(productID string) string { return "image:" + productID }

func (mainImages) Members(ctx context.Context, tx domain.Tx, productID string) ([]Member, error) {
	images, err := tx.Images().ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(images))
	for _, img := range images {
		members = append(members, Member{ID: img.ID, Flagged: img.IsMain})
	}
	return members, nil
}

func (mainImages) SetFlag(ctx context.Context, tx domain.Tx, id string, flagged bool) error {
	return tx.Images().SetMain(ctx, id, flagged)
}
