package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/google/uuid"

	"github.com/taskhub/taskhub-api/internal/pkg/logger"
	"github.com/taskhub/taskhub-api/internal/pkg/ratelimit"
	"github.com/taskhub/taskhub-api/internal/pkg/response"
)

// KeyFunc derives the rate limit key of a request. Empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ByUser keys on the authenticated user and the route.
func ByUser(r *http.Request) string {
	userID := GetUserID(r.Context())
	if userID == uuid.Nil {
		return ""
	}
	return userID.String() + ":" + r.URL.Path
}

// RateLimit enforces a shared Redis limiter. Redis failures fail open.
func RateLimit(l *ratelimit.Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), k)
			if err != nil {
				logger.FromContext(r.Context()).Warn().Err(err).Msg("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
				response.TooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// IPGuard is an in-process token bucket per client IP for unauthenticated
// endpoints such as bank webhooks. rps <= 0 disables it.
func IPGuard(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	lmt := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	lmt.SetBurst(burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if httpError := tollbooth.LimitByRequest(lmt, w, r); httpError != nil {
				response.Error(w, httpError.StatusCode, "RATE_LIMIT_EXCEEDED", httpError.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
