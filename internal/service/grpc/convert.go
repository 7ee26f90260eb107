package grpcsvc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
)

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// optionalString отличает отсутствующее поле от пустой строки.
func optionalString(req *structpb.Struct, name string) *string {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	s := strings.TrimSpace(v.GetStringValue())
	return &s
}

func intField(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, fmt.Errorf("%s must be a number: %w", name, domain.ErrInvalidArgument)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be an integer: %w", name, domain.ErrInvalidArgument)
	}
	return int64(n.NumberValue), nil
}

func requireString(req *structpb.Struct, name string) (string, error) {
	value := stringField(req, name)
	if value == "" {
		return "", fmt.Errorf("%s is required: %w", name, domain.ErrInvalidArgument)
	}
	return value, nil
}

func cartItemsFromRequest(req *structpb.Struct) ([]cart.Item, error) {
	values := req.GetFields()["items"].GetListValue().GetValues()
	items := make([]cart.Item, 0, len(values))
	for i, v := range values {
		entry := v.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("items[%d] must be an object: %w", i, domain.ErrInvalidArgument)
		}
		qty, err := intField(entry, "quantity")
		if err != nil {
			return nil, err
		}
		items = append(items, cart.Item{
			ProductID: stringField(entry, "product_id"),
			Quantity:  int32(qty),
		})
	}
	return items, nil
}

func addressFromRequest(req *structpb.Struct, userID string) domain.Address {
	return domain.Address{
		ID:         stringField(req, "address_id"),
		UserID:     userID,
		FullName:   stringField(req, "full_name"),
		Phone:      stringField(req, "phone"),
		Street:     stringField(req, "street"),
		City:       stringField(req, "city"),
		State:      stringField(req, "state"),
		PostalCode: stringField(req, "postal_code"),
		Country:    stringField(req, "country"),
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func anyStrings(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func cartToMap(view cart.View) map[string]any {
	lines := make([]any, 0, len(view.Lines))
	for _, line := range view.Lines {
		lines = append(lines, map[string]any{
			"product_id":    line.Product.ID,
			"name":          line.Product.Name,
			"price":         money(line.Product.Price),
			"quantity":      line.Quantity,
			"thumbnail_url": line.ThumbnailURL,
			"total":         money(line.Total),
		})
	}
	return map[string]any{
		"user_id":  view.UserID,
		"lines":    lines,
		"subtotal": money(view.Subtotal),
		"warnings": anyStrings(view.Warnings),
	}
}

func addressSnapshotToMap(a domain.AddressSnapshot) map[string]any {
	return map[string]any{
		"full_name":   a.FullName,
		"phone":       a.Phone,
		"street":      a.Street,
		"city":        a.City,
		"state":       a.State,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	}
}

func orderToMap(o domain.Order) map[string]any {
	lines := make([]any, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, map[string]any{
			"line_id":       line.ID,
			"product_id":    line.Product.ProductID,
			"name":          line.Product.Name,
			"thumbnail_url": line.Product.ThumbnailURL,
			"quantity":      line.Quantity,
			"unit_price":    money(line.UnitPrice),
			"total":         money(line.Total),
		})
	}
	milestones := make([]any, 0, len(o.Milestones))
	for _, m := range o.Milestones {
		milestones = append(milestones, map[string]any{
			"status":      string(m.Status),
			"occurred_at": timestamp(m.OccurredAt),
		})
	}
	return map[string]any{
		"order_id":         o.ID,
		"user_id":          o.UserID,
		"status":           string(o.Status),
		"shipping_method":  string(o.ShippingMethod),
		"shipping_address": addressSnapshotToMap(o.ShippingAddress),
		"lines":            lines,
		"subtotal":         money(o.Subtotal),
		"shipping_fees":    money(o.ShippingFees),
		"taxes":            money(o.Taxes),
		"total_amount":     money(o.TotalAmount),
		"milestones":       milestones,
		"version":          o.Version,
		"created_at":       timestamp(o.CreatedAt),
		"updated_at":       timestamp(o.UpdatedAt),
	}
}

func transitionToMap(res lifecycle.Result) map[string]any {
	restocked := make([]any, 0, len(res.Restocked))
	for _, mv := range res.Restocked {
		restocked = append(restocked, map[string]any{
			"product_id": mv.ProductID,
			"quantity":   mv.Quantity,
		})
	}
	return map[string]any{
		"order":           orderToMap(res.Order),
		"from":            string(res.From),
		"status_changed":  res.StatusChanged,
		"address_changed": res.AddressChanged,
		"restocked":       restocked,
		"skipped":         anyStrings(res.Skipped),
	}
}

func addressToMap(a domain.Address) map[string]any {
	out := addressSnapshotToMap(domain.AddressSnapshot{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	})
	out["address_id"] = a.ID
	out["user_id"] = a.UserID
	out["is_default"] = a.IsDefault
	out["created_at"] = timestamp(a.CreatedAt)
	out["updated_at"] = timestamp(a.UpdatedAt)
	return out
}

func imageToMap(img domain.ProductImage) map[string]any {
	return map[string]any{
		"image_id":   img.ID,
		"product_id": img.ProductID,
		"url":        img.URL,
		"is_main":    img.IsMain,
		"created_at": timestamp(img.CreatedAt),
	}
}

// toStruct собирает ответ; ошибка означает неподдерживаемый тип значения.
func toStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func listOf[T any](items []T, convert func(T) map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, convert(item))
	}
	return out
}
