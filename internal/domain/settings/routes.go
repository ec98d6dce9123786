package settings

import "github.com/go-chi/chi/v5"

// RegisterRoutes adds the public fee calculator to the wallet router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/fees", h.Fees)
}

// RegisterAdminRoutes adds settings management. The router must already
// require an admin.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/wallet/settings", h.Get)
	r.Put("/wallet/settings", h.Update)
}
