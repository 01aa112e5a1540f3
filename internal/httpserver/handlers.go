package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"calltrack/internal/domain"
	"calltrack/internal/store"
)

// CallService is the slice of the orchestrator the handlers need.
type CallService interface {
	SubmitCall(ctx context.Context, req domain.CreateCallRequest) (domain.Call, error)
	ListCalls(ctx context.Context) ([]domain.Call, error)
	UpdateStatus(ctx context.Context, id string, target domain.CallStatus) (domain.Call, bool, error)
	ClearCalls(ctx context.Context) error
	AcceptDispatch(ctx context.Context, req domain.DispatchRequest) (domain.DispatchResponse, error)
	ApplyOutcome(ctx context.Context, req domain.StatusCallbackRequest) (domain.Call, bool, error)
}

type API struct {
	Svc CallService
}

// Register wires the public call API and the internal provider endpoints
// behind auth. The status webhook stays open: the simulated provider posts it
// without credentials, like a real vendor callback.
func (a *API) Register(r *mux.Router, auth mux.MiddlewareFunc) {
	calls := r.PathPrefix("/v1/calls").Subrouter()
	calls.Use(auth)
	calls.HandleFunc("", a.handleListCalls).Methods(http.MethodGet)
	calls.HandleFunc("", a.handleCreateCall).Methods(http.MethodPost)
	calls.HandleFunc("", a.handleClearCalls).Methods(http.MethodDelete)
	calls.HandleFunc("/{id}", a.handleUpdateStatus).Methods(http.MethodPatch)

	prov := r.PathPrefix("/v1/provider").Subrouter()
	prov.Use(auth)
	prov.HandleFunc("/send-call", a.handleSendCall).Methods(http.MethodPost)

	r.HandleFunc("/v1/webhooks/provider-status", a.handleProviderStatus).Methods(http.MethodPost)
}

type callResponse struct {
	Call domain.Call `json:"call"`
}

type listResponse struct {
	Calls []domain.Call `json:"calls"`
}

func (a *API) handleListCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := a.Svc.ListCalls(r.Context())
	if err != nil {
		slog.Error("list calls failed", "err", err)
		// degrade to an empty result set with a distinct status
		writeJSON(w, http.StatusServiceUnavailable, struct {
			Error string        `json:"error"`
			Calls []domain.Call `json:"calls"`
		}{Error: ErrStoreUnavailable, Calls: []domain.Call{}})
		return
	}
	if calls == nil {
		calls = []domain.Call{}
	}
	writeJSON(w, http.StatusOK, listResponse{Calls: calls})
}

func (a *API) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}

	call, err := a.Svc.SubmitCall(r.Context(), req)
	if err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			slog.Error("submit call failed", "err", err, "customer", req.CustomerName, "workflow", req.Workflow)
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, callResponse{Call: call})
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrMissingID)
		return
	}

	var req domain.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	if err := domain.Validate(req); err != nil {
		writeServiceError(w, err)
		return
	}
	target, _ := domain.ParseStatus(req.Status)

	call, _, err := a.Svc.UpdateStatus(r.Context(), id, target)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("update status failed", "err", err, "id", id, "status", req.Status)
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{Call: call})
}

func (a *API) handleClearCalls(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.ClearCalls(r.Context()); err != nil {
		slog.Error("clear calls failed", "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
