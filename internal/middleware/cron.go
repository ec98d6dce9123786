package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/taskhub/taskhub-api/internal/pkg/response"
)

// CronAuth guards scheduler endpoints with a shared bearer secret. An empty
// secret disables the endpoints.
func CronAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				response.Error(w, http.StatusServiceUnavailable, "CRON_DISABLED", "Cron secret is not configured")
				return
			}
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				response.Unauthorized(w, "Invalid cron secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
