package booking

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskhub/taskhub-api/internal/domain/user"
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

// Calculate handles POST /booking/calculate
// @Summary Price a booking
// @Tags Booking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CalculateRequest true "Service, type and duration"
// @Success 200 {object} response.Response
// @Router /booking/calculate [post]
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	q, err := h.service.Calculate(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"calculation": q})
}

// Create handles POST /booking/create
// @Summary Request a booking
// @Tags Booking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRequest true "Booking"
// @Success 201 {object} response.Response
// @Failure 400,403,404 {object} response.Response
// @Router /booking/create [post]
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

	b, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.Created(w, map[string]interface{}{"booking": b})
}

// List handles GET /booking/list
// @Summary Bookings of the caller
// @Tags Booking
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param date_from query string false "RFC3339"
// @Param date_to query string false "RFC3339"
// @Success 200 {object} response.Response
// @Router /booking/list [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	userID := middleware.GetUserID(r.Context())
	switch user.Role(middleware.GetRole(r.Context())) {
	case user.RoleClient:
		f.ClientID = &userID
	case user.RoleWorker:
		f.WorkerID = &userID
	}

	items, total, err := h.service.List(r.Context(), f)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	f.normalize()
	response.WithMeta(w, map[string]interface{}{"bookings": items}, response.NewMeta(total, f.Page, f.Limit))
}

// Get handles GET /booking/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}
	isAdmin := middleware.GetRole(r.Context()) == string(user.RoleAdmin)
	b, err := h.service.Get(r.Context(), id, middleware.GetUserID(r.Context()), isAdmin)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"booking": b})
}

// Transition returns the handler of POST /booking/{id}/{action}. Decline and
// cancel accept an optional {"reason": "..."} body.
func (h *Handler) Transition(action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			response.BadRequest(w, "Invalid booking ID")
			return
		}

		var req ReasonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		if errors := validator.Validate(&req); errors != nil {
			response.ValidationError(w, errors)
			return
		}

		b, err := h.service.Transition(r.Context(), id, middleware.GetUserID(r.Context()), action, req.Reason)
		if err != nil {
			errorhandler.Handle(r.Context(), w, err)
			return
		}
		response.OK(w, map[string]interface{}{"booking": b})
	}
}

// CreateService handles POST /booking/services
// @Summary Offer a service
// @Tags Booking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateServiceRequest true "Service"
// @Success 201 {object} response.Response
// @Router /booking/services [post]
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	ws, err := h.service.CreateService(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.Created(w, map[string]interface{}{"service": ws})
}

// ListServices handles GET /booking/services?worker_id=
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	workerID := middleware.GetUserID(r.Context())
	if v := r.URL.Query().Get("worker_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid worker_id")
			return
		}
		workerID = id
	}

	items, err := h.service.ListServices(r.Context(), workerID)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"services": items})
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	var f Filter
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			f.Statuses = append(f.Statuses, Status(strings.TrimSpace(s)))
		}
	}
	if v := q.Get("booking_type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			f.Types = append(f.Types, Type(strings.TrimSpace(t)))
		}
	}
	for name, dst := range map[string]**time.Time{"date_from": &f.DateFrom, "date_to": &f.DateTo} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, filterError("Invalid " + name + ", expected RFC3339")
		}
		*dst = &t
	}
	return f, nil
}
