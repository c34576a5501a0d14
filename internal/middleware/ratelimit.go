package middleware

import (
	"sync"

	"github.com/GoPolymarket/tradevault/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CallerLimiter hands out one token bucket per authenticated caller.
type CallerLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[common.Address]*rate.Limiter
}

func NewCallerLimiter(rps float64, burst int) *CallerLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &CallerLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[common.Address]*rate.Limiter),
	}
}

func (l *CallerLimiter) Get(caller common.Address) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[caller]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[caller] = limiter
	}
	return limiter
}

func RateLimitMiddleware(limiter *CallerLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Must run after CallerAuthMiddleware.
		caller, ok := CallerFrom(c)
		if !ok {
			abortWith(c, apperrors.NewAuthFailed("unauthenticated"))
			return
		}
		if limiter == nil || limiter.limit <= 0 {
			c.Next()
			return
		}

		if !limiter.Get(caller).Allow() {
			c.Header("Retry-After", "1")
			abortWith(c, apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil))
			return
		}

		c.Next()
	}
}
