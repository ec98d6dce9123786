package admin

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taskhub/taskhub-api/internal/middleware"
)

// Audit records every state-changing admin request after it was served.
// Reads are not recorded.
func Audit(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := &AuditLog{
				AdminID:    middleware.GetUserID(r.Context()),
				Action:     r.Method + " " + routePattern(r),
				Path:       r.URL.Path,
				StatusCode: status,
				RequestID:  optional(r.Header.Get("X-Request-ID")),
				IPAddress:  optional(clientIP(r)),
				UserAgent:  optional(r.UserAgent()),
			}
			s.Record(r.Context(), entry)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
