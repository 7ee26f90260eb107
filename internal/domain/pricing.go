package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ShippingMethod: тариф доставки.
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

// MoneyScale: количество знаков после запятой для денежных сумм.
const MoneyScale = 2

var (
	// TaxRate применяется к подытогу без доставки.
	TaxRate = decimal.RequireFromString("0.14")

	shippingFees = map[ShippingMethod]decimal.Decimal{
		ShippingStandard: decimal.NewFromInt(150),
		ShippingExpress:  decimal.NewFromInt(250),
	}
)

// ParseShippingMethod разбирает способ доставки. Пустое значение означает standard.
func ParseShippingMethod(raw string) (ShippingMethod, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ShippingStandard, nil
	}
	method := ShippingMethod(raw)
	if _, ok := shippingFees[method]; !ok {
		return "", ErrUnknownShippingMethod
	}
	return method, nil
}

// ShippingFee возвращает стоимость доставки для тарифа.
func ShippingFee(method ShippingMethod) (decimal.Decimal, error) {
	fee, ok := shippingFees[method]
	if !ok {
		return decimal.Zero, ErrUnknownShippingMethod
	}
	return fee, nil
}

// Totals: денежные итоги заказа.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingFees decimal.Decimal
	Taxes        decimal.Decimal
	Total        decimal.Decimal
}

// LineTotal считает сумму позиции.
func LineTotal(unitPrice decimal.Decimal, qty int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(qty))
}

// ComputeTotals считает подытог, налог и итог. Налог округляется до копеек.
func ComputeTotals(lines []OrderLine, method ShippingMethod) (Totals, error) {
	fee, err := ShippingFee(method)
	if err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Total)
	}
	taxes := subtotal.Mul(TaxRate).Round(MoneyScale)

	return Totals{
		Subtotal:     subtotal,
		ShippingFees: fee,
		Taxes:        taxes,
		Total:        subtotal.Add(fee).Add(taxes),
	}, nil
}

// Apply переносит итоги в заказ.
func (t Totals) Apply(o *Order) {
	o.Subtotal = t.Subtotal
	o.ShippingFees = t.ShippingFees
	o.Taxes = t.Taxes
	o.TotalAmount = t.Total
}
