package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"go.uber.org/zap"
)

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrStateConflict), errors.Is(err, core.ErrDuplicateKey), errors.Is(err, core.ErrAlreadyAccrued):
		return http.StatusConflict
	case errors.Is(err, core.ErrConcurrency):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	var ie *core.InsufficientBalanceError
	if errors.As(err, &ie) {
		available, requested := ie.Available, ie.Requested
		resp.Available, resp.Requested = &available, &requested
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, resp)
}

// fail writes err with the status its sentinel maps to. Internal errors are
// logged and their details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

// =============================================================================
// REQUEST DECODING
// =============================================================================

// decode reads a JSON body into v and runs its validate tags. It writes the
// 400 response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := core.ValidateStruct(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// actor returns the acting employee from the X-Actor-ID header, writing a
// 401 when it is missing.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(ActorHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, ActorHeader+" header is required", nil)
		return "", false
	}
	return id, true
}
