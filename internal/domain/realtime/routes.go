package realtime

import "github.com/go-chi/chi/v5"

// Routes mounts the event socket. Authentication happens inside Connect.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Connect)
	return r
}
