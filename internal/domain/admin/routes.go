package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskhub/taskhub-api/internal/middleware"
)

// Module adds its admin endpoints to the admin router.
type Module interface {
	RegisterAdminRoutes(r chi.Router)
}

// Routes returns the admin router. Every route requires an authenticated
// admin whose role is read fresh from the database by loadProfile.
func (h *Handler) Routes(auth, loadProfile func(http.Handler) http.Handler, modules ...Module) chi.Router {
	r := chi.NewRouter()
	r.Use(auth, loadProfile, middleware.RequireAdmin(), Audit(h.service))

	r.Get("/wallet/stats", h.WalletStats)
	r.Get("/audit/logs", h.AuditLogs)

	for _, m := range modules {
		m.RegisterAdminRoutes(r)
	}
	return r
}
