package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AggregateOrder: тип агрегата для событий заказа.
const AggregateOrder = "order"

const (
	// EventOrderPlaced публикуется после успешного оформления.
	EventOrderPlaced = "order.placed"
	// EventOrderStatusChanged публикуется при каждой смене статуса.
	EventOrderStatusChanged = "order.status_changed"
	// EventOrderAddressChanged публикуется при смене адреса без смены статуса.
	EventOrderAddressChanged = "order.address_changed"
)

// StockMovement: изменение остатка товара, вызванное заказом.
type StockMovement struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// OrderPlacedPayload: тело события order.placed.
type OrderPlacedPayload struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	ShippingMethod string          `json:"shipping_method"`
	TotalAmount    string          `json:"total_amount"`
	Reserved       []StockMovement `json:"reserved"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// OrderStatusChangedPayload: тело событий смены статуса и адреса.
type OrderStatusChangedPayload struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	From           OrderStatus     `json:"from"`
	To             OrderStatus     `json:"to"`
	AddressChanged bool            `json:"address_changed,omitempty"`
	Restocked      []StockMovement `json:"restocked,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NewOrderPlacedMessage собирает outbox-сообщение для нового заказа.
func NewOrderPlacedMessage(o Order) (OutboxMessage, error) {
	reserved := make([]StockMovement, 0, len(o.Lines))
	for _, line := range o.Lines {
		reserved = append(reserved, StockMovement{ProductID: line.Product.ProductID, Quantity: line.Quantity})
	}
	return newOrderMessage(o.ID, EventOrderPlaced, OrderPlacedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		ShippingMethod: string(o.ShippingMethod),
		TotalAmount:    o.TotalAmount.StringFixed(MoneyScale),
		Reserved:       reserved,
		OccurredAt:     o.CreatedAt,
	})
}

// NewOrderChangedMessage собирает outbox-сообщение для смены статуса или адреса.
func NewOrderChangedMessage(o Order, from OrderStatus, addressChanged bool, restocked []StockMovement) (OutboxMessage, error) {
	eventType := EventOrderStatusChanged
	if from == o.Status {
		eventType = EventOrderAddressChanged
	}
	return newOrderMessage(o.ID, eventType, OrderStatusChangedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		From:           from,
		To:             o.Status,
		AddressChanged: addressChanged,
		Restocked:      restocked,
		OccurredAt:     o.UpdatedAt,
	})
}

func newOrderMessage(orderID, eventType string, payload any) (OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
