package deposit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes adds the deposit endpoints to an authenticated wallet
// router.
func (h *Handler) RegisterRoutes(r chi.Router, moneyLimit func(http.Handler) http.Handler) {
	r.With(moneyLimit).Post("/deposit", h.Create)
	r.Get("/deposit/{id}", h.Get)
	r.With(moneyLimit).Post("/deposit/paypal/capture", h.Capture)
}

// WebhookRoutes serves the bank notification endpoint. It is mounted
// outside the authenticated group.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/bank", h.BankWebhook)
	r.Get("/bank", h.WebhookHealth)
	return r
}
