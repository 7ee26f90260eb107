// Package catalog управляет изображениями товаров.
package catalog

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

// ImageService поддерживает ровно одно главное изображение у товара.
type ImageService struct {
	guard  *guard.Guard
	flags  *flags.Coordinator
	logger *log.Entry
}

// NewImageService создаёт сервис изображений.
func NewImageService(g *guard.Guard, coord *flags.Coordinator, logger *log.Entry) *ImageService {
	if logger == nil {
		logger = log.New().WithField("component", "image-service")
	}
	return &ImageService{guard: g, flags: coord, logger: logger}
}

// Add привязывает уже загруженное изображение к товару. Первое изображение становится главным.
func (s *ImageService) Add(ctx context.Context, productID, url string) (domain.ProductImage, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.ProductImage{}, fmt.Errorf("image url is required: %w", domain.ErrInvalidArgument)
	}

	img, err := guard.Execute(ctx, s.guard, "image", func(ctx context.Context, tx domain.Tx) (domain.ProductImage, error) {
		if _, err := liveProduct(ctx, tx, productID); err != nil {
			return domain.ProductImage{}, err
		}
		group := flags.MainImages
		if err := tx.LockGroup(ctx, group.LockKey(productID)); err != nil {
			return domain.ProductImage{}, err
		}
		existing, err := tx.Images().ListByProduct(ctx, productID)
		if err != nil {
			return domain.ProductImage{}, err
		}

		img := domain.ProductImage{
			ID:        uuid.NewString(),
			ProductID: productID,
			URL:       url,
			IsMain:    len(existing) == 0,
		}
		if err := tx.Images().Create(ctx, img); err != nil {
			return domain.ProductImage{}, fmt.Errorf("create image: %w", err)
		}
		return tx.Images().Get(ctx, img.ID)
	})
	if err != nil {
		return domain.ProductImage{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"image_id":   img.ID,
		"is_main":    img.IsMain,
	}).Info("image added")
	return img, nil
}

// SetMain делает изображение главным.
func (s *ImageService) SetMain(ctx context.Context, productID, imageID string) error {
	err := s.guard.Run(ctx, "image", func(ctx context.Context, tx domain.Tx) error {
		if err := checkImage(ctx, tx, productID, imageID); err != nil {
			return err
		}
		_, err := s.flags.SetFlagTx(ctx, tx, flags.MainImages, productID, imageID)
		return err
	})
	if errors.Is(err, domain.ErrFlagTargetNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrImageNotFound, err)
	}
	return err
}

// Delete удаляет изображение. Главное изображение удалить нельзя.
func (s *ImageService) Delete(ctx context.Context, productID, imageID string) error {
	return s.guard.Run(ctx, "image", func(ctx context.Context, tx domain.Tx) error {
		if err := tx.LockGroup(ctx, flags.MainImages.LockKey(productID)); err != nil {
			return err
		}
		if err := checkImage(ctx, tx, productID, imageID); err != nil {
			return err
		}
		img, err := tx.Images().Get(ctx, imageID)
		if err != nil {
			return err
		}
		if img.IsMain {
			return domain.ErrMainImageDelete
		}
		return tx.Images().Delete(ctx, imageID)
	})
}

// List возвращает изображения товара.
func (s *ImageService) List(ctx context.Context, productID string) ([]domain.ProductImage, error) {
	return guard.Execute(ctx, s.guard, "image", func(ctx context.Context, tx domain.Tx) ([]domain.ProductImage, error) {
		if _, err := liveProduct(ctx, tx, productID); err != nil {
			return nil, err
		}
		return tx.Images().ListByProduct(ctx, productID)
	})
}

func checkImage(ctx context.Context, tx domain.Tx, productID, imageID string) error {
	if _, err := liveProduct(ctx, tx, productID); err != nil {
		return err
	}
	img, err := tx.Images().Get(ctx, imageID)
	if err != nil {
		return err
	}
	if img.ProductID != productID {
		return domain.ErrImageProductMismatch
	}
	return nil
}

func liveProduct(ctx context.Context, tx domain.Tx, productID string) (domain.Product, error) {
	p, err := tx.Products().Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if !p.Available() {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}
