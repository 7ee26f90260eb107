package domain

import (
	"context"
	"errors"
)

// Kind классифицирует ошибки ядра для транспортного слоя.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindNotFound          Kind = "not_found"
	KindBadRequest        Kind = "bad_request"
	KindConflict          Kind = "conflict"
	KindIllegalTransition Kind = "illegal_transition"
	KindSkippedStep       Kind = "skipped_step"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindCanceled          Kind = "canceled"
)

var kindTable = []struct {
	target error
	kind   Kind
}{
	{ErrProductNotFound, KindNotFound},
	{ErrImageNotFound, KindNotFound},
	{ErrAddressNotFound, KindNotFound},
	{ErrOrderNotFound, KindNotFound},
	{ErrFlagTargetNotFound, KindNotFound},
	{ErrIdempotencyKeyNotFound, KindNotFound},

	{ErrSkippedStep, KindSkippedStep},
	{ErrIllegalTransition, KindIllegalTransition},

	{ErrVersionConflict, KindConflict},
	{ErrFlagConflict, KindConflict},
	{ErrStockChanged, KindConflict},
	{ErrInsufficientStock, KindConflict},
	{ErrMainImageDelete, KindConflict},
	{ErrIdempotencyKeyAlreadyExists, KindConflict},
	{ErrIdempotencyHashMismatch, KindConflict},

	{ErrEmptyCart, KindBadRequest},
	{ErrUnknownShippingMethod, KindBadRequest},
	{ErrUnknownOrderStatus, KindBadRequest},
	{ErrImageProductMismatch, KindBadRequest},
	{ErrInvalidArgument, KindBadRequest},
	{ErrIdempotencyKeyRequired, KindBadRequest},
	{ErrIdempotencyRequestHashRequired, KindBadRequest},

	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},

	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
}

// KindOf возвращает категорию ошибки. Порядок таблицы важен:
// ErrStockChanged оборачивает ErrVersionConflict, а SkippedStep проверяется раньше IllegalTransition.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.target) {
			return entry.kind
		}
	}
	return KindInternal
}
