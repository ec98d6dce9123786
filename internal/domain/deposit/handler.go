package deposit

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/middleware"
	"github.com/taskhub/taskhub-api/internal/pkg/apikey"
	"github.com/taskhub/taskhub-api/internal/pkg/errorhandler"
	"github.com/taskhub/taskhub-api/internal/pkg/response"
	"github.com/taskhub/taskhub-api/internal/pkg/sepay"
	"github.com/taskhub/taskhub-api/internal/pkg/validator"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	service        *Service
	webhookKeyHash string
}

// NewHandler creates the deposit handler. When webhookKeyHash is empty the
// bank webhook accepts unauthenticated calls.
func NewHandler(service *Service, webhookKeyHash string) *Handler {
	return &Handler{service: service, webhookKeyHash: webhookKeyHash}
}

// Create handles POST /wallet/deposit
// @Summary Start a deposit
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRequest true "Amount and method"
// @Success 200 {object} response.Response
// @Failure 400,401,429 {object} response.Response
// @Router /wallet/deposit [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	userID := middleware.GetUserID(r.Context())
	switch req.PaymentMethod {
	case wallet.MethodBankTransfer:
		d, err := h.service.CreateBankDeposit(r.Context(), userID, req.AmountUSD, req.amountVND())
		if err != nil {
			errorhandler.Handle(r.Context(), w, err)
			return
		}
		response.OK(w, BankDepositResponse{Deposit: d})
	case wallet.MethodPayPal:
		out, err := h.service.CreatePayPalDeposit(r.Context(), userID, req.AmountUSD)
		if err != nil {
			errorhandler.Handle(r.Context(), w, err)
			return
		}
		response.OK(w, out)
	default:
		errorhandler.Handle(r.Context(), w, ErrInvalidMethod)
	}
}

// Get handles GET /wallet/deposit/{id}
// @Summary Bank deposit status
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deposit ID"
// @Success 200 {object} response.Response{data=BankDepositResponse}
// @Failure 404 {object} response.Response
// @Router /wallet/deposit/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid deposit ID")
		return
	}
	d, err := h.service.GetDeposit(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, BankDepositResponse{Deposit: d})
}

// Capture handles POST /wallet/deposit/paypal/capture
// @Summary Capture an approved PayPal deposit
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CaptureRequest true "PayPal order id"
// @Success 200 {object} response.Response
// @Failure 400,404,409 {object} response.Response
// @Router /wallet/deposit/paypal/capture [post]
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	tx, err := h.service.CapturePayPalDeposit(r.Context(), middleware.GetUserID(r.Context()), req.OrderID)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"transaction": tx})
}

// BankWebhook handles POST /wallet/webhook/bank
// @Summary Sepay bank transfer notification
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Authorization header string false "Apikey <key>"
// @Success 200 {object} response.Response
// @Failure 400,401 {object} response.Response
// @Router /wallet/webhook/bank [post]
func (h *Handler) BankWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookKeyHash != "" && !apikey.Verify(apikey.FromRequest(r), h.webhookKeyHash) {
		response.Unauthorized(w, "Invalid webhook key")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Unreadable body")
		return
	}
	var payload sepay.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	errors := validator.Validate(&payload)
	if !payload.TransferAmount.IsPositive() {
		if errors == nil {
			errors = map[string]string{}
		}
		errors["transferAmount"] = "Value must be greater than 0"
	}
	if errors != nil {
		response.ValidationError(w, errors)
		return
	}

	result := h.service.ProcessBankWebhook(r.Context(), &payload, raw)
	log.Info().
		Str("reference", payload.Reference()).
		Str("action", string(result.Action)).
		Str("reason", result.Reason).
		Msg("Bank webhook processed")

	response.OK(w, map[string]interface{}{
		"received": true,
		"result":   result,
	})
}

// WebhookHealth handles GET /wallet/webhook/bank
func (h *Handler) WebhookHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]interface{}{
		"service":   "sepay-webhook",
		"status":    "active",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ExpireStale handles POST /cron/expire-deposits
// @Summary Expire unpaid deposits
// @Tags Cron
// @Produce json
// @Param Authorization header string true "Bearer <cron secret>"
// @Success 200 {object} response.Response
// @Router /cron/expire-deposits [post]
func (h *Handler) ExpireStale(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ExpireStale(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, result)
}
