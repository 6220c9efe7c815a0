package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"skycrm/internal/domain"
	"skycrm/internal/service"
)

// ResourceHandler serves the generic CRUD surface for every registered
// resource kind. One handler instance covers all kinds; the kind is bound
// per route.
type ResourceHandler struct {
	resources *service.ResourceService
	logger    *slog.Logger
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(resources *service.ResourceService, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{resources: resources, logger: logger}
}

// Mount registers the five CRUD routes for each registered kind.
func (h *ResourceHandler) Mount(r chi.Router) {
	for _, kind := range h.resources.Kinds() {
		r.Route("/"+kind, func(r chi.Router) {
			r.Post("/", h.create(kind))
			r.Get("/", h.list(kind))
			r.Get("/{id:[0-9]+}", h.get(kind))
			r.Put("/{id:[0-9]+}", h.update(kind))
			r.Delete("/{id:[0-9]+}", h.delete(kind))
		})
	}
}

func (h *ResourceHandler) create(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		payload, err := decodeObject(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		record, err := h.resources.Create(r.Context(), p.ID, kind, payload)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	}
}

func (h *ResourceHandler) list(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		records, err := h.resources.List(r.Context(), p.ID, kind)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (h *ResourceHandler) get(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		record, err := h.resources.Get(r.Context(), p.ID, kind, id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func (h *ResourceHandler) update(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		payload, err := decodeObject(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		record, err := h.resources.Update(r.Context(), p.ID, kind, id, payload)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func (h *ResourceHandler) delete(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		if err := h.resources.Delete(r.Context(), p.ID, kind, id); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

// recordID parses the {id} route parameter. The route pattern already
// restricts it to digits.
func recordID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, domain.ErrValidation("invalid record id")
	}
	return id, nil
}
