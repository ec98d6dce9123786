package wallet

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
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

// Balance handles GET /wallet/balance
// @Summary Current wallet balance
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=BalanceResponse}
// @Router /wallet/balance [get]
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	wallet, summary, err := h.service.GetSummary(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, BalanceResponse{Wallet: wallet, Summary: summary})
}

// Transactions handles GET /wallet/transactions
// @Summary List own transactions
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param type query string false "Transaction type"
// @Param status query string false "Transaction status"
// @Param payment_method query string false "Payment method"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param min_amount query number false "Minimum amount"
// @Param max_amount query number false "Maximum amount"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} response.Response
// @Router /wallet/transactions [get]
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseTransactionFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	userID := middleware.GetUserID(r.Context())
	filter.UserID = &userID

	h.writeTransactions(w, r, filter)
}

// AdminTransactions handles GET /admin/wallet/transactions
// @Summary List transactions of every user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Restrict to one user"
// @Success 200 {object} response.Response
// @Router /admin/wallet/transactions [get]
func (h *Handler) AdminTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseTransactionFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid user_id")
			return
		}
		filter.UserID = &id
	}

	h.writeTransactions(w, r, filter)
}

func (h *Handler) writeTransactions(w http.ResponseWriter, r *http.Request, filter TransactionFilter) {
	items, total, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	filter.normalize()
	response.WithMeta(w, map[string]interface{}{"transactions": items}, response.NewMeta(total, filter.Page, filter.Limit))
}

// Withdraw handles POST /wallet/withdraw
// @Summary Withdraw funds
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WithdrawRequest true "Amount, method and destination"
// @Success 200 {object} response.Response
// @Failure 400,401,403,429 {object} response.Response
// @Router /wallet/withdraw [post]
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	tx, err := h.service.Withdraw(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"transaction": tx})
}

// Complete handles POST /admin/wallet/transaction/complete
// @Summary Mark a manual withdrawal as paid
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CompleteRequest true "Transaction id"
// @Success 200 {object} response.Response
// @Failure 400,403,404 {object} response.Response
// @Router /admin/wallet/transaction/complete [post]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	tx, err := h.service.CompleteWithdrawal(r.Context(), req.TransactionID, middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"transaction": tx})
}

type filterError string

func (e filterError) Error() string { return string(e) }

// ParseTransactionFilter reads the listing filters from the query string.
func ParseTransactionFilter(r *http.Request) (TransactionFilter, error) {
	q := r.URL.Query()
	f := TransactionFilter{
		Type:   TransactionType(q.Get("type")),
		Status: TransactionStatus(q.Get("status")),
		Method: PaymentMethod(q.Get("payment_method")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, filterError("Invalid " + name + " date, expected RFC3339")
		}
		*dst = &t
	}
	for name, dst := range map[string]**decimal.Decimal{"min_amount": &f.MinAmount, "max_amount": &f.MaxAmount} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, filterError("Invalid " + name)
		}
		*dst = &d
	}
	return f, nil
}
