package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORSHandler lets the web app call the API from allowedOrigins. Clients
// authenticate with bearer tokens, so no cookies are allowed. Retry-After is
// exposed for rate limited money routes.
func CORSHandler(allowedOrigins []string, maxAge time.Duration) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After", "X-Request-ID"},
		MaxAge:         int(maxAge.Seconds()),
	})
}
