package grpcsvc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Заголовки проставляет шлюз аутентификации после проверки токена.
const (
	UserIDHeader   = "x-user-id"
	UserRoleHeader = "x-user-role"
)

func identityFromContext(ctx context.Context) domain.Identity {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Identity{}
	}
	return domain.Identity{
		UserID: firstValue(md, UserIDHeader),
		Role:   domain.ParseRole(firstValue(md, UserRoleHeader)),
	}
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
