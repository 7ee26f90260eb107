package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ оформлен, обработка не начата.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing: заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered: заказ вручён, терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled: заказ отменён, терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses перечисляет статусы в порядке основного пути.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	normalized := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if normalized == "canceled" {
		normalized = OrderStatusCancelled
	}
	for _, s := range OrderStatuses {
		if s == normalized {
			return s, nil
		}
	}
	return "", ErrUnknownOrderStatus
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Mutable сообщает, что заказ ещё не отгружен и допускает смену адреса.
func (s OrderStatus) Mutable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// Title возвращает статус с заглавной буквы для сообщений пользователю.
func (s OrderStatus) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ProductSnapshot: замороженная копия товара на момент покупки.
type ProductSnapshot struct {
	ProductID    string
	Name         string
	Price        decimal.Decimal
	ThumbnailURL string
}

// OrderLine: неизменяемая позиция заказа.
type OrderLine struct {
	ID        string
	Product   ProductSnapshot
	Quantity  int32
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Milestone: запись журнала статусов, только добавление.
type Milestone struct {
	Status     OrderStatus
	OccurredAt time.Time
}

// Order агрегирует заказ, его позиции и журнал статусов.
type Order struct {
	ID              string
	UserID          string
	Status          OrderStatus
	ShippingMethod  ShippingMethod
	ShippingAddress AddressSnapshot
	Lines           []OrderLine
	Subtotal        decimal.Decimal
	ShippingFees    decimal.Decimal
	Taxes           decimal.Decimal
	TotalAmount     decimal.Decimal
	Milestones      []Milestone
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	errOrderUserRequired  = errors.New("order user_id is required")
	errOrderLinesRequired = errors.New("order must contain at least one line")
	errLineQtyInvalid     = errors.New("order line quantity must be greater than zero")
	errLineTotalMismatch  = errors.New("order line total does not match quantity * unit price")
	errSubtotalMismatch   = errors.New("order subtotal does not match lines sum")
	errTotalMismatch      = errors.New("order total does not match subtotal + taxes + shipping fees")
)

// ValidateInvariants проверяет денежные инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, errOrderUserRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, errOrderLinesRequired)
	}

	sum := decimal.Zero
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, errLineQtyInvalid)
		}
		if !line.Total.Equal(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity))) {
			errs = append(errs, errLineTotalMismatch)
		}
		sum = sum.Add(line.Total)
	}
	if !sum.Equal(o.Subtotal) {
		errs = append(errs, errSubtotalMismatch)
	}
	if !o.TotalAmount.Equal(o.Subtotal.Add(o.Taxes).Add(o.ShippingFees)) {
		errs = append(errs, errTotalMismatch)
	}

	return errs
}

// LastMilestone возвращает последнюю запись журнала.
func (o Order) LastMilestone() (Milestone, bool) {
	if len(o.Milestones) == 0 {
		return Milestone{}, false
	}
	return o.Milestones[len(o.Milestones)-1], true
}

// CloneOrder копирует заказ вместе со слайсами.
func CloneOrder(o Order) Order {
	o.Lines = append([]OrderLine(nil), o.Lines...)
	o.Milestones = append([]Milestone(nil), o.Milestones...)
	return o
}
