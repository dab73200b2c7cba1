package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Response Envelope
// =============================================================================

// Response is the envelope every API endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Success: status < 400, Data: data}); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Success: status < 400, Message: message}); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// =============================================================================
// Error Mapping
// =============================================================================

// writeError maps a service error onto the HTTP status for its taxonomy
// class. Unknown errors become 500 without leaking internals.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		h.writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRender), errors.Is(err, domain.ErrWrite):
		h.writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("internal error", "error", err)
		h.writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
