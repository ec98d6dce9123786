package booking

import (
	"github.com/go-chi/chi/v5"

	"github.com/taskhub/taskhub-api/internal/middleware"
)

// Routes returns the booking router. The caller mounts it behind
// authentication.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/calculate", h.Calculate)
	r.With(middleware.RequireClient()).Post("/create", h.Create)
	r.Get("/list", h.List)

	r.Get("/services", h.ListServices)
	r.With(middleware.RequireWorker()).Post("/services", h.CreateService)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		for _, action := range []Action{
			ActionConfirm,
			ActionDecline,
			ActionStart,
			ActionCompleteWorker,
			ActionCompleteClient,
			ActionCancel,
		} {
			r.Post("/"+string(action), h.Transition(action))
		}
	})

	return r
}
