package domain

import "time"

// CartLine: ссылка на товар и количество.
type CartLine struct {
	ProductID string
	Quantity  int32
}

// Cart принадлежит ровно одному пользователю.
type Cart struct {
	UserID    string
	Lines     []CartLine
	UpdatedAt time.Time
}

// Empty сообщает, что в корзине нет позиций.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// ProductIDs возвращает идентификаторы товаров в порядке позиций.
func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// CloneCart копирует корзину вместе со слайсом позиций.
func CloneCart(c Cart) Cart {
	c.Lines = append([]CartLine(nil), c.Lines...)
	return c
}
