package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"skycrm/internal/domain"
	"skycrm/internal/service"
)

// CRMHandler serves the aggregate endpoints on top of the generic CRUD
// surface: the dashboard and the business seed.
type CRMHandler struct {
	resources *service.ResourceService
	logger    *slog.Logger
}

// NewCRMHandler creates a CRMHandler.
func NewCRMHandler(resources *service.ResourceService, logger *slog.Logger) *CRMHandler {
	return &CRMHandler{resources: resources, logger: logger}
}

// Dashboard returns the tenant's aggregate counts and most recent prospects.
// The count query parameter is required.
func (h *CRMHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	raw := r.URL.Query().Get("count")
	if raw == "" {
		writeError(w, h.logger, domain.ErrValidation("count query parameter is required"))
		return
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, h.logger, domain.ErrValidation("count must be a positive integer"))
		return
	}

	stats, err := h.resources.Dashboard(r.Context(), p.ID, count)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CreateBusiness seeds a prospect with its default interaction, deal and
// payment in one transaction.
func (h *CRMHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
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

	ids, err := h.resources.CreateBusiness(r.Context(), p.ID, payload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"prospect_id":    ids.ProspectID,
		"interaction_id": ids.InteractionID,
		"deal_id":        ids.DealID,
		"payment_id":     ids.PaymentID,
	})
}

// Docs returns the registry introspection document: per-kind schema and
// endpoints.
func (h *CRMHandler) Docs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resources.Docs())
}
