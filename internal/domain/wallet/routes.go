package wallet

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes adds the user wallet endpoints to an authenticated router.
// moneyLimit guards withdrawals.
func (h *Handler) RegisterRoutes(r chi.Router, moneyLimit func(http.Handler) http.Handler) {
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.With(moneyLimit).Post("/withdraw", h.Withdraw)
}

// RegisterAdminRoutes adds the admin ledger endpoints. The router must
// already require an admin.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/wallet/transactions", h.AdminTransactions)
	r.Post("/wallet/transaction/complete", h.Complete)
}
