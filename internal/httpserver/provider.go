package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"calltrack/internal/domain"
	"calltrack/internal/service"
	"calltrack/internal/store"
)

// handleSendCall simulates the external provider accepting a dispatch. It
// answers with the assigned provider reference and how far in the future the
// status callback will fire.
func (a *API) handleSendCall(w http.ResponseWriter, r *http.Request) {
	var req domain.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	if req.CallID == "" {
		writeError(w, http.StatusBadRequest, ErrMissingCallID)
		return
	}

	resp, err := a.Svc.AcceptDispatch(r.Context(), req)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, service.ErrAlreadyDispatched) {
			slog.Error("accept dispatch failed", "err", err, "call_id", req.CallID)
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProviderStatus is the webhook the simulated provider posts its
// outcome to. Duplicate deliveries against a finalized call acknowledge with
// idempotent=true and change nothing.
func (a *API) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	if req.CallID == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "callId and valid status are required")
		return
	}

	call, idempotent, err := a.Svc.ApplyOutcome(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			writeError(w, http.StatusBadRequest, "callId and valid status are required")
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("apply outcome failed", "err", err, "call_id", req.CallID, "status", req.Status)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.StatusCallbackResponse{OK: true, Call: &call, Idempotent: idempotent})
}
