package escrow

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

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

// Pay handles POST /wallet/payment
// @Summary Pay a worker into escrow
// @Tags Escrow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PaymentRequest true "Payment"
// @Success 201 {object} response.Response{data=PaymentResult}
// @Failure 400,401,403,429 {object} response.Response
// @Router /wallet/payment [post]
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	result, err := h.service.ProcessPayment(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.Created(w, result)
}

// Mine handles GET /wallet/escrow
// @Summary Escrows where the caller is employer or worker
// @Tags Escrow
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Response
// @Router /wallet/escrow [get]
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())
	filter.EmployerID, filter.WorkerID = nil, nil
	filter.PartyID = &userID

	h.writeList(w, r, filter)
}

// Complaint handles POST /wallet/escrow/complaint
// @Summary File a complaint against an escrow
// @Tags Escrow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ComplaintRequest true "Complaint"
// @Success 200 {object} response.Response
// @Failure 400,403,404 {object} response.Response
// @Router /wallet/escrow/complaint [post]
func (h *Handler) Complaint(w http.ResponseWriter, r *http.Request) {
	var req ComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	hold, err := h.service.FileComplaint(r.Context(), req.EscrowID, middleware.GetUserID(r.Context()), req.Description)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"escrow": hold})
}

// AdminList handles GET /admin/escrows
// @Summary List escrows
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param employer_id query string false "Employer"
// @Param worker_id query string false "Worker"
// @Param status query string false "Comma separated statuses"
// @Param has_complaint query bool false "Only disputed"
// @Success 200 {object} response.Response
// @Router /admin/escrows [get]
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	h.writeList(w, r, filter)
}

// Resolve handles POST /admin/wallet/escrow/resolve
// @Summary Resolve an escrow dispute
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResolveRequest true "Resolution"
// @Success 200 {object} response.Response
// @Failure 400,403,404,409 {object} response.Response
// @Router /admin/wallet/escrow/resolve [post]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	hold, err := h.service.Resolve(r.Context(), req, middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"escrow": hold})
}

// Release handles POST /admin/wallet/escrow/release
// @Summary Release an escrow to the worker now
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ReleaseRequest true "Escrow id"
// @Success 200 {object} response.Response
// @Failure 400,403,404,409 {object} response.Response
// @Router /admin/wallet/escrow/release [post]
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	var req ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	hold, err := h.service.Release(r.Context(), req.EscrowID, ReleaseBy{
		UserID: middleware.GetUserID(r.Context()),
		Admin:  true,
	})
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"escrow": hold})
}

// ReleaseDue handles POST /cron/release-escrows
func (h *Handler) ReleaseDue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ReleaseDue(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, filter Filter) {
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	filter.normalize()
	response.WithMeta(w, map[string]interface{}{"escrows": items}, response.NewMeta(total, filter.Page, filter.Limit))
}

func parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	var f Filter
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	for name, dst := range map[string]**uuid.UUID{"employer_id": &f.EmployerID, "worker_id": &f.WorkerID} {
		if v := q.Get(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				response.BadRequest(w, "Invalid "+name)
				return f, false
			}
			*dst = &id
		}
	}
	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			f.Statuses = append(f.Statuses, Status(strings.TrimSpace(s)))
		}
	}
	if v := q.Get("has_complaint"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(w, "Invalid has_complaint")
			return f, false
		}
		f.HasComplaint = &b
	}
	return f, true
}
