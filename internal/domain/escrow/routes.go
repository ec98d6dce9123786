package escrow

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskhub/taskhub-api/internal/middleware"
)

// RegisterRoutes adds the escrow endpoints of the wallet API to an
// authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router, moneyLimit func(http.Handler) http.Handler) {
	r.With(middleware.RequireClient(), moneyLimit).Post("/payment", h.Pay)
	r.Get("/escrow", h.Mine)
	r.Post("/escrow/complaint", h.Complaint)
}

// RegisterAdminRoutes adds the admin escrow endpoints. The router must
// already require an admin.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/escrows", h.AdminList)
	r.Post("/wallet/escrow/resolve", h.Resolve)
	r.Post("/wallet/escrow/release", h.Release)
}
