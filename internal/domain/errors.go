package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound возвращается, если товар отсутствует или удалён.
	ErrProductNotFound = errors.New("product not found")
	// ErrImageNotFound возвращается, если изображение товара не найдено.
	ErrImageNotFound = errors.New("product image not found")
	// ErrAddressNotFound возвращается, если адрес не найден или принадлежит другому пользователю.
	ErrAddressNotFound = errors.New("address not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrFlagTargetNotFound: целевой элемент отсутствует в группе флага.
	ErrFlagTargetNotFound = errors.New("flag target not found in group")

	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrFlagConflict: в группе оказалось больше одного отмеченного элемента.
	ErrFlagConflict = errors.New("singleton flag conflict")
	// ErrStockChanged: остатки изменились во время оформления, оформление нужно повторить целиком.
	ErrStockChanged = errors.New("stock changed during checkout, please try again")
	// ErrInsufficientStock: на складе меньше единиц, чем в корзине.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrMainImageDelete: главное изображение нельзя удалить, пока оно отмечено.
	ErrMainImageDelete = errors.New("main image cannot be deleted, set another main image first")

	// ErrEmptyCart: корзина пуста или содержит только недоступные товары.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUnknownShippingMethod: способ доставки отсутствует в таблице тарифов.
	ErrUnknownShippingMethod = errors.New("unknown shipping method")
	// ErrUnknownOrderStatus: статус заказа не входит в перечисление.
	ErrUnknownOrderStatus = errors.New("unknown order status")
	// ErrImageProductMismatch: изображение принадлежит другому товару.
	ErrImageProductMismatch = errors.New("image does not belong to product")
	// ErrInvalidArgument: прочие ошибки валидации входных данных.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIllegalTransition: переход запрещён таблицей переходов.
	ErrIllegalTransition = errors.New("illegal order status transition")
	// ErrSkippedStep: попытка перейти в delivered, минуя shipped.
	ErrSkippedStep = errors.New("order must be marked as shipped before it can be delivered")

	// ErrUnauthorized: вызывающий не предоставил проверенную идентичность.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: идентичность есть, но роли недостаточно.
	ErrForbidden = errors.New("forbidden")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже зарегистрирован с тем же хэшем.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ переиспользован для другого запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound: ключ не найден или истёк.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// InsufficientStockError описывает позицию, для которой не хватило остатка.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s, available: %d", e.ProductName, e.Available)
}

// Is позволяет сравнивать ошибку с ErrInsufficientStock через errors.Is.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// TransitionError уточняет, какой переход был отвергнут.
type TransitionError struct {
	From   OrderStatus
	To     OrderStatus
	Reason string
	cause  error
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.cause
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsIdempotencyConflict сообщает, что ключ уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
