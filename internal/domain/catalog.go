package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product: изменяемая запись каталога. Остаток защищён версией.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	StockQuantity int32
	IsDeleted     bool
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Available сообщает, можно ли продавать товар.
func (p Product) Available() bool {
	return !p.IsDeleted
}

// ProductImage: изображение товара; не больше одного IsMain на товар.
type ProductImage struct {
	ID        string
	ProductID string
	URL       string
	IsMain    bool
	CreatedAt time.Time
}

// MainImageURL возвращает URL главного изображения или пустую строку.
func MainImageURL(images []ProductImage) string {
	for _, img := range images {
		if img.IsMain {
			return img.URL
		}
	}
	return ""
}
