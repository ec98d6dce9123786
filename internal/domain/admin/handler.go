package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub-api/internal/pkg/errorhandler"
	"github.com/taskhub/taskhub-api/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// WalletStats handles GET /admin/wallet/stats
// @Summary Wallet and escrow totals
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=WalletStats}
// @Router /admin/wallet/stats [get]
func (h *Handler) WalletStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.WalletStats(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{"stats": stats})
}

// AuditLogs handles GET /admin/audit/logs
// @Summary Admin actions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param admin_id query string false "Admin"
// @Param action query string false "Method and route, e.g. POST /api/admin/wallet/escrow/resolve"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {object} response.Response
// @Router /admin/audit/logs [get]
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := AuditFilter{Action: q.Get("action")}
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			f.Limit = v
		}
	}
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			f.Offset = v
		}
	}
	if v := q.Get("admin_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid admin_id")
			return
		}
		f.AdminID = &id
	}
	for name, dst := range map[string]**time.Time{"from": &f.FromDate, "to": &f.ToDate} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				response.BadRequest(w, "Invalid "+name+" date, expected RFC3339")
				return
			}
			*dst = &t
		}
	}

	logs, total, err := h.service.ListAuditLogs(r.Context(), f)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"logs":  logs,
		"total": total,
	})
}
