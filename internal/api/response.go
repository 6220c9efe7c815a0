// Package api provides the HTTP handlers and router for the CRM REST API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"skycrm/internal/domain"
)

// writeJSON encodes a response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a domain error onto the wire. Field-level validation
// failures arrive as a list under "errors"; every other failure is a single
// "error" message. Unknown errors are logged and reported as a bare 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validations *domain.ValidationErrors
	if errors.As(err, &validations) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": validations.Violations})
		return
	}

	var notFound *domain.NotFoundError
	var accessDenied *domain.AccessDeniedError
	var validation *domain.ValidationError
	var structural *domain.StructuralError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": notFound.Message})
	case errors.As(err, &accessDenied):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": accessDenied.Message})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": validation.Message})
	case errors.As(err, &structural):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": structural.Message})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{"error": conflict.Message})
	default:
		logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
	}
}

// decodeObject parses the request body as a flat JSON object. Numbers are
// kept as json.Number so the validator can tell integers from reals. Any
// parse failure is the same structural error.
func decodeObject(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, domain.ErrStructural("invalid or missing JSON body")
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, domain.ErrStructural("invalid or missing JSON body")
	}
	if payload == nil {
		return nil, domain.ErrStructural("invalid or missing JSON body")
	}
	return payload, nil
}

// principal extracts the authenticated principal placed by the auth
// middleware. Reaching a protected handler without one is a wiring bug.
func principal(r *http.Request) (domain.ContextPrincipal, error) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		return domain.ContextPrincipal{}, domain.ErrAccessDenied("authentication required")
	}
	return p, nil
}
