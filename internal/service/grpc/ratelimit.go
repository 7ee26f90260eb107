package grpcsvc

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storev1 "github.com/vladislavdragonenkov/storefront/api/store/v1"
)

// idleLimiterTTL: через сколько простоя лимитер пользователя забывается.
const idleLimiterTTL = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CheckoutLimiter ограничивает частоту оформлений для каждого пользователя.
type CheckoutLimiter struct {
	mu       sync.Mutex
	users    map[string]*userLimiter
	rate     rate.Limit
	burst    int
	now      func() time.Time
	lastScan time.Time
}

// NewCheckoutLimiter создаёт лимитер: perSecond оформлений в секунду и burst подряд.
// perSecond <= 0 отключает ограничение.
func NewCheckoutLimiter(perSecond float64, burst int) *CheckoutLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &CheckoutLimiter{
		users: make(map[string]*userLimiter),
		rate:  limit,
		burst: burst,
		now:   time.Now,
	}
}

// Allow сообщает, можно ли пользователю оформить заказ сейчас.
func (l *CheckoutLimiter) Allow(userID string) bool {
	if l == nil || l.rate == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	entry, ok := l.users[userID]
	if !ok {
		entry = &userLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.users[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *CheckoutLimiter) evictIdle(now time.Time) {
	if now.Sub(l.lastScan) < idleLimiterTTL {
		return
	}
	l.lastScan = now
	for userID, entry := range l.users {
		if now.Sub(entry.lastSeen) >= idleLimiterTTL {
			delete(l.users, userID)
		}
	}
}

// UnaryServerInterceptor применяет лимит к Checkout. Запросы без пользователя
// пропускаются дальше и отклоняются самим методом.
func (l *CheckoutLimiter) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod != storev1.StoreService_Checkout_FullMethodName {
			return handler(ctx, req)
		}
		id := identityFromContext(ctx)
		if id.Authenticated() && !l.Allow(id.UserID) {
			return nil, status.Error(codes.ResourceExhausted, "checkout rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
