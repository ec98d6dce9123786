package settings

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/middleware"
	"github.com/taskhub/taskhub-api/internal/pkg/errorhandler"
	"github.com/taskhub/taskhub-api/internal/pkg/response"
	"github.com/taskhub/taskhub-api/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Fees handles GET /wallet/fees?amount=100
// @Summary Calculate payment fees
// @Tags Wallet
// @Produce json
// @Param amount query number true "Payment amount in USD"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /wallet/fees [get]
func (h *Handler) Fees(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		errorhandler.Handle(r.Context(), w, ErrInvalidAmount)
		return
	}

	calc, err := h.service.CalculateFees(r.Context(), amount)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	response.OK(w, map[string]interface{}{"calculation": calc})
}

// Get handles GET /admin/wallet/settings
// @Summary Platform payment settings
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/wallet/settings [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"settings": settings})
}

// Update handles PUT /admin/wallet/settings
// @Summary Update one platform setting
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateRequest true "Setting key and value"
// @Success 200 {object} response.Response
// @Failure 400,401,403 {object} response.Response
// @Router /admin/wallet/settings [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	settings, err := h.service.Update(r.Context(), req.Key, req.Value, middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"settings": settings})
}
