// Package grpcsvc реализует store.v1.StoreService поверх сервисов ядра.
package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	storev1 "github.com/vladislavdragonenkov/storefront/api/store/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/address"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

// Dependencies: сервисы ядра, которые обслуживает транспорт.
type Dependencies struct {
	CartReader  *cart.Reader
	Carts       *cart.Service
	Checkout    *checkout.Coordinator
	Lifecycle   *lifecycle.Machine
	Orders      *orders.Query
	Addresses   *address.Service
	Images      *catalog.ImageService
	Idempotency domain.IdempotencyRepository
}

// Option настраивает StoreService.
type Option func(*StoreService)

// WithIdempotencyTTL задаёт время жизни ключа идемпотентности.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *StoreService) {
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *StoreService) {
		if now != nil {
			s.now = now
		}
	}
}

// StoreService реализует gRPC API магазина.
type StoreService struct {
	storev1.UnimplementedStoreServiceServer

	carts     *cart.Service
	reader    *cart.Reader
	checkout  *checkout.Coordinator
	lifecycle *lifecycle.Machine
	orders    *orders.Query
	addresses *address.Service
	images    *catalog.ImageService
	idemRepo  domain.IdempotencyRepository
	idemTTL   time.Duration
	now       func() time.Time
	logger    *log.Entry
}

// NewStoreService конструирует сервис с зависимостями.
func NewStoreService(deps Dependencies, logger *log.Entry, opts ...Option) *StoreService {
	if logger == nil {
		logger = log.New().WithField("component", "store-service")
	}
	s := &StoreService{
		carts:     deps.Carts,
		reader:    deps.CartReader,
		checkout:  deps.Checkout,
		lifecycle: deps.Lifecycle,
		orders:    deps.Orders,
		addresses: deps.Addresses,
		images:    deps.Images,
		idemRepo:  deps.Idempotency,
		idemTTL:   domain.DefaultIdempotencyTTL,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorized возвращает идентичность вызывающего; admin требует роль администратора.
func authorized(ctx context.Context, admin bool) (domain.Identity, error) {
	id := identityFromContext(ctx)
	if admin {
		return id, id.RequireAdmin()
	}
	return id, id.Require()
}

// respond переводит результат ядра в ответ gRPC.
func (s *StoreService) respond(method string, fields map[string]any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(s.logger, method, err)
	}
	out, err := toStruct(fields)
	if err != nil {
		return nil, toStatus(s.logger, method, err)
	}
	return out, nil
}

// GetCartView возвращает корзину вызывающего с живыми ценами и предупреждениями.
func (s *StoreService) GetCartView(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(storev1.StoreService_GetCartView_FullMethodName, nil, err)
	}
	view, err := s.reader.Load(ctx, id.UserID)
	return s.respond(storev1.StoreService_GetCartView_FullMethodName, cartToMap(view), err)
}

// UpdateCart заменяет содержимое корзины.
func (s *StoreService) UpdateCart(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_UpdateCart_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	items, err := cartItemsFromRequest(req)
	if err != nil {
		return s.respond(method, nil, err)
	}
	view, err := s.carts.Update(ctx, id.UserID, items)
	return s.respond(method, cartToMap(view), err)
}

// ClearCart удаляет все позиции корзины.
func (s *StoreService) ClearCart(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_ClearCart_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	return s.respond(method, map[string]any{}, s.carts.Clear(ctx, id.UserID))
}

// Checkout оформляет корзину вызывающего в заказ.
func (s *StoreService) Checkout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_Checkout_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	addressID, err := requireString(req, "address_id")
	if err != nil {
		return s.respond(method, nil, err)
	}
	shipping, err := domain.ParseShippingMethod(stringField(req, "shipping_method"))
	if err != nil {
		return s.respond(method, nil, err)
	}

	return s.withIdempotency(ctx, method, id, req, func(ctx context.Context) (*structpb.Struct, error) {
		order, err := s.checkout.Checkout(ctx, id.UserID, addressID, shipping)
		return s.respond(method, map[string]any{"order": orderToMap(order)}, err)
	})
}

// GetOrder возвращает заказ с журналом статусов.
func (s *StoreService) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_GetOrder_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	orderID, err := requireString(req, "order_id")
	if err != nil {
		return s.respond(method, nil, err)
	}
	order, err := s.orders.Get(ctx, id, orderID)
	return s.respond(method, map[string]any{"order": orderToMap(order)}, err)
}

// ListOrders возвращает заказы пользователя, новые первыми. Администратор может
// передать user_id другого пользователя.
func (s *StoreService) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_ListOrders_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	limit, err := intField(req, "limit")
	if err != nil {
		return s.respond(method, nil, err)
	}
	list, err := s.orders.ListByUser(ctx, id, stringField(req, "user_id"), int(limit))
	return s.respond(method, map[string]any{"orders": listOf(list, orderToMap)}, err)
}

// TransitionOrderStatus переводит заказ в новый статус. Только для администратора.
func (s *StoreService) TransitionOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_TransitionOrderStatus_FullMethodName
	id, err := authorized(ctx, true)
	if err != nil {
		return s.respond(method, nil, err)
	}
	orderID, err := requireString(req, "order_id")
	if err != nil {
		return s.respond(method, nil, err)
	}
	target, err := domain.ParseOrderStatus(stringField(req, "status"))
	if err != nil {
		return s.respond(method, nil, err)
	}

	return s.withIdempotency(ctx, method, id, req, func(ctx context.Context) (*structpb.Struct, error) {
		res, err := s.lifecycle.Transition(ctx, lifecycle.Request{
			OrderID:   orderID,
			Status:    target,
			AddressID: optionalString(req, "address_id"),
		})
		if err != nil {
			return s.respond(method, nil, err)
		}
		return s.respond(method, transitionToMap(res), nil)
	})
}

// CreateAddress добавляет адрес вызывающему.
func (s *StoreService) CreateAddress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_CreateAddress_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	a := addressFromRequest(req, id.UserID)
	a.ID = ""
	created, err := s.addresses.Create(ctx, a)
	return s.respond(method, map[string]any{"address": addressToMap(created)}, err)
}

// UpdateAddress меняет поля адреса вызывающего.
func (s *StoreService) UpdateAddress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_UpdateAddress_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	if _, err := requireString(req, "address_id"); err != nil {
		return s.respond(method, nil, err)
	}
	updated, err := s.addresses.Update(ctx, addressFromRequest(req, id.UserID))
	return s.respond(method, map[string]any{"address": addressToMap(updated)}, err)
}

// ListAddresses возвращает адреса вызывающего.
func (s *StoreService) ListAddresses(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_ListAddresses_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	list, err := s.addresses.List(ctx, id.UserID)
	return s.respond(method, map[string]any{"addresses": listOf(list, addressToMap)}, err)
}

// SetDefaultAddress делает адрес адресом по умолчанию.
func (s *StoreService) SetDefaultAddress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_SetDefaultAddress_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	addressID, err := requireString(req, "address_id")
	if err != nil {
		return s.respond(method, nil, err)
	}
	return s.respond(method, map[string]any{}, s.addresses.SetDefault(ctx, id.UserID, addressID))
}

// DeleteAddress удаляет адрес вызывающего.
func (s *StoreService) DeleteAddress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_DeleteAddress_FullMethodName
	id, err := authorized(ctx, false)
	if err != nil {
		return s.respond(method, nil, err)
	}
	addressID, err := requireString(req, "address_id")
	if err != nil {
		return s.respond(method, nil, err)
	}
	return s.respond(method, map[string]any{}, s.addresses.Delete(ctx, id.UserID, addressID))
}

// AddProductImage привязывает загруженное изображение к товару. Только для администратора.
func (s *StoreService) AddProductImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_AddProductImage_FullMethodName
	if _, err := authorized(ctx, true); err != nil {
		return s.respond(method, nil, err)
	}
	productID, err := requireString(req, "product_id")
	if err != nil {
		return s.respond(method, nil, err)
	}
	url, err := requireString(req, "url")
	if err != nil {
		return s.respond(method, nil, err)
	}
	img, err := s.images.Add(ctx, productID, url)
	return s.respond(method, map[string]any{"image": imageToMap(img)}, err)
}

// SetMainImage делает изображение главным. Только для администратора.
func (s *StoreService) SetMainImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_SetMainImage_FullMethodName
	if _, err := authorized(ctx, true); err != nil {
		return s.respond(method, nil, err)
	}
	productID, imageID, err := imageRef(req)
	if err != nil {
		return s.respond(method, nil, err)
	}
	return s.respond(method, map[string]any{}, s.images.SetMain(ctx, productID, imageID))
}

// DeleteProductImage удаляет неглавное изображение. Только для администратора.
func (s *StoreService) DeleteProductImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_DeleteProductImage_FullMethodName
	if _, err := authorized(ctx, true); err != nil {
		return s.respond(method, nil, err)
	}
	productID, imageID, err := imageRef(req)
	if err != nil {
		return s.respond(method, nil, err)
	}
	return s.respond(method, map[string]any{}, s.images.Delete(ctx, productID, imageID))
}

// ListProductImages возвращает изображения товара.
func (s *StoreService) ListProductImages(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const method = storev1.StoreService_ListProductImages_FullMethodName
	if _, err := authorized(ctx, false); err != nil {
		return s.respond(method, nil, err)
	}
	productID, err := requireString(req, "product_id")
	if err != nil {
		return s.respond(method, nil, err)
	}
	list, err := s.images.List(ctx, productID)
	return s.respond(method, map[string]any{"images": listOf(list, imageToMap)}, err)
}

func imageRef(req *structpb.Struct) (string, string, error) {
	productID, err := requireString(req, "product_id")
	if err != nil {
		return "", "", err
	}
	imageID, err := requireString(req, "image_id")
	if err != nil {
		return "", "", err
	}
	return productID, imageID, nil
}

var _ storev1.StoreServiceServer = (*StoreService)(nil)
