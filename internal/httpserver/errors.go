package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"calltrack/internal/domain"
	"calltrack/internal/service"
	"calltrack/internal/store"
)

const (
	ErrInvalidJSON       = "invalid json"
	ErrInvalidInput      = "Invalid input"
	ErrMissingID         = "missing id"
	ErrMissingCallID     = "callId is required"
	ErrCallNotFound      = "Call not found"
	ErrUnauthorized      = "Unauthorized"
	ErrStoreUnavailable  = "store unavailable"
	ErrDependency        = "dependency error"
	ErrAlreadyDispatched = "call already dispatched"
	ErrProviderMismatch  = "providerId does not match call"
	ErrBadTransition     = "status transition not allowed"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError translates service and store errors into the structured
// responses of the API contract. Nothing here crashes the process.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrInvalidInput, Details: verr.Fields})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCallNotFound)
	case errors.Is(err, service.ErrAlreadyDispatched):
		writeError(w, http.StatusConflict, ErrAlreadyDispatched)
	case errors.Is(err, service.ErrProviderMismatch):
		writeError(w, http.StatusConflict, ErrProviderMismatch)
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, ErrBadTransition)
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrStoreUnavailable)
	default:
		writeError(w, http.StatusServiceUnavailable, ErrDependency)
	}
}
