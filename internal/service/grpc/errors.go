package grpcsvc

import (
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var kindCodes = map[domain.Kind]codes.Code{
	domain.KindNotFound:          codes.NotFound,
	domain.KindBadRequest:        codes.InvalidArgument,
	domain.KindConflict:          codes.Aborted,
	domain.KindIllegalTransition: codes.FailedPrecondition,
	domain.KindSkippedStep:       codes.FailedPrecondition,
	domain.KindUnauthorized:      codes.Unauthenticated,
	domain.KindForbidden:         codes.PermissionDenied,
	domain.KindCanceled:          codes.Canceled,
	domain.KindInternal:          codes.Internal,
}

// codeOf возвращает gRPC-код для ошибки ядра.
func codeOf(err error) codes.Code {
	if code, ok := kindCodes[domain.KindOf(err)]; ok {
		return code
	}
	return codes.Internal
}

// toStatus переводит ошибку ядра в gRPC-статус. Текст внутренних ошибок
// наружу не отдаётся.
func toStatus(logger *log.Entry, method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codeOf(err)
	if code == codes.Internal {
		logger.WithError(err).WithField("method", method).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
