package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"calltrack/internal/domain"
	"calltrack/internal/service"
	"calltrack/internal/store"
)

// stubService lets each test script the orchestrator's behavior per method.
type stubService struct {
	submit   func(domain.CreateCallRequest) (domain.Call, error)
	list     func() ([]domain.Call, error)
	update   func(string, domain.CallStatus) (domain.Call, bool, error)
	clear    func() error
	dispatch func(domain.DispatchRequest) (domain.DispatchResponse, error)
	outcome  func(domain.StatusCallbackRequest) (domain.Call, bool, error)
}

func (s *stubService) SubmitCall(ctx context.Context, req domain.CreateCallRequest) (domain.Call, error) {
	return s.submit(req)
}

func (s *stubService) ListCalls(ctx context.Context) ([]domain.Call, error) {
	return s.list()
}

func (s *stubService) UpdateStatus(ctx context.Context, id string, target domain.CallStatus) (domain.Call, bool, error) {
	return s.update(id, target)
}

func (s *stubService) ClearCalls(ctx context.Context) error {
	return s.clear()
}

func (s *stubService) AcceptDispatch(ctx context.Context, req domain.DispatchRequest) (domain.DispatchResponse, error) {
	return s.dispatch(req)
}

func (s *stubService) ApplyOutcome(ctx context.Context, req domain.StatusCallbackRequest) (domain.Call, bool, error) {
	return s.outcome(req)
}

func newTestServer(svc CallService, token string) *httptest.Server {
	s := New()
	api := &API{Svc: svc}
	api.Register(s.Mux, BearerAuth(token))
	return httptest.NewServer(s.Mux)
}

func doJSON(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func sampleCall() domain.Call {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	return domain.Call{
		ID:           "call_01ABC",
		CustomerName: "Ada Lovelace",
		PhoneNumber:  "+15550102030",
		Workflow:     domain.WorkflowSupport,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestBearerAuth(t *testing.T) {
	svc := &stubService{list: func() ([]domain.Call, error) { return nil, nil }}
	srv := newTestServer(svc, "secret")
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/calls", "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: got %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/calls", "wrong", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: got %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/calls", "secret", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: got %d, want 200", resp.StatusCode)
	}
}

func TestBearerAuthOpenWhenUnset(t *testing.T) {
	svc := &stubService{list: func() ([]domain.Call, error) { return nil, nil }}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/calls", "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("empty token config must allow access, got %d", resp.StatusCode)
	}
}

func TestWebhookIsUnauthenticated(t *testing.T) {
	svc := &stubService{
		outcome: func(req domain.StatusCallbackRequest) (domain.Call, bool, error) {
			c := sampleCall()
			c.Status = domain.StatusCompleted
			return c, false, nil
		},
	}
	srv := newTestServer(svc, "secret")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/webhooks/provider-status", "",
		`{"callId":"call_01ABC","status":"COMPLETED"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook must not require auth, got %d", resp.StatusCode)
	}
}

func TestCreateCall(t *testing.T) {
	svc := &stubService{
		submit: func(req domain.CreateCallRequest) (domain.Call, error) {
			return sampleCall(), nil
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/calls", "",
		`{"customerName":"Ada Lovelace","phoneNumber":"+15550102030","workflow":"SUPPORT"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got %d, want 201", resp.StatusCode)
	}
	var body struct {
		Call domain.Call `json:"call"`
	}
	decodeBody(t, resp, &body)
	if body.Call.ID != "call_01ABC" || body.Call.Status != domain.StatusPending {
		t.Fatalf("unexpected call in response: %+v", body.Call)
	}
}

func TestCreateCallInvalidJSON(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/calls", "", `{"customerName":`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", resp.StatusCode)
	}
}

func TestCreateCallValidationDetails(t *testing.T) {
	svc := &stubService{
		submit: func(req domain.CreateCallRequest) (domain.Call, error) {
			return domain.Call{}, &domain.ValidationError{Fields: map[string]string{
				"phoneNumber": "invalid phone number format",
				"workflow":    "must be one of SUPPORT, SALES, REMINDER",
			}}
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/calls", "",
		`{"customerName":"Ada","phoneNumber":"nope","workflow":"OTHER"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", resp.StatusCode)
	}
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	decodeBody(t, resp, &body)
	if body.Error != ErrInvalidInput {
		t.Fatalf("got error %q, want %q", body.Error, ErrInvalidInput)
	}
	if body.Details["phoneNumber"] == "" || body.Details["workflow"] == "" {
		t.Fatalf("expected field-level details, got %v", body.Details)
	}
}

func TestListCalls(t *testing.T) {
	svc := &stubService{
		list: func() ([]domain.Call, error) {
			return []domain.Call{sampleCall()}, nil
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/calls", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var body struct {
		Calls []domain.Call `json:"calls"`
	}
	decodeBody(t, resp, &body)
	if len(body.Calls) != 1 || body.Calls[0].ID != "call_01ABC" {
		t.Fatalf("unexpected list: %+v", body.Calls)
	}
}

func TestListCallsDegradesOnStoreFailure(t *testing.T) {
	svc := &stubService{
		list: func() ([]domain.Call, error) {
			return nil, store.ErrUnavailable
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/calls", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", resp.StatusCode)
	}
	var body struct {
		Error string        `json:"error"`
		Calls []domain.Call `json:"calls"`
	}
	decodeBody(t, resp, &body)
	if body.Error != ErrStoreUnavailable {
		t.Fatalf("got error %q, want %q", body.Error, ErrStoreUnavailable)
	}
	if body.Calls == nil || len(body.Calls) != 0 {
		t.Fatalf("degraded response must carry an empty calls array, got %v", body.Calls)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc := &stubService{
		update: func(id string, target domain.CallStatus) (domain.Call, bool, error) {
			if id != "call_01ABC" || target != domain.StatusCompleted {
				return domain.Call{}, false, errors.New("unexpected args")
			}
			c := sampleCall()
			c.Status = domain.StatusCompleted
			return c, false, nil
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/calls/call_01ABC", "", `{"status":"COMPLETED"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var body struct {
		Call domain.Call `json:"call"`
	}
	decodeBody(t, resp, &body)
	if body.Call.Status != domain.StatusCompleted {
		t.Fatalf("got status %s, want COMPLETED", body.Call.Status)
	}
}

func TestUpdateStatusBadTarget(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/calls/call_01ABC", "", `{"status":"RINGING"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", resp.StatusCode)
	}
}

func TestUpdateStatusUnknownCall(t *testing.T) {
	svc := &stubService{
		update: func(id string, target domain.CallStatus) (domain.Call, bool, error) {
			return domain.Call{}, false, store.ErrNotFound
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/calls/call_nope", "", `{"status":"FAILED"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error != ErrCallNotFound {
		t.Fatalf("got error %q, want %q", body.Error, ErrCallNotFound)
	}
}

func TestClearCalls(t *testing.T) {
	cleared := false
	svc := &stubService{
		clear: func() error {
			cleared = true
			return nil
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodDelete, srv.URL+"/v1/calls", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var body struct {
		Success bool `json:"success"`
	}
	decodeBody(t, resp, &body)
	if !body.Success || !cleared {
		t.Fatalf("expected success=true and clear invoked, got %v / %v", body.Success, cleared)
	}
}

func TestSendCall(t *testing.T) {
	svc := &stubService{
		dispatch: func(req domain.DispatchRequest) (domain.DispatchResponse, error) {
			return domain.DispatchResponse{ProviderID: "prov_01XYZ", ScheduledInMs: 1500}, nil
		},
	}
	srv := newTestServer(svc, "secret")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/provider/send-call", "secret",
		`{"callId":"call_01ABC","phoneNumber":"+15550102030","workflow":"SUPPORT"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var body domain.DispatchResponse
	decodeBody(t, resp, &body)
	if body.ProviderID != "prov_01XYZ" || body.ScheduledInMs != 1500 {
		t.Fatalf("unexpected dispatch response: %+v", body)
	}
}

func TestSendCallMissingCallID(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/provider/send-call", "", `{"phoneNumber":"+1555"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", resp.StatusCode)
	}
}

func TestSendCallAlreadyDispatched(t *testing.T) {
	svc := &stubService{
		dispatch: func(req domain.DispatchRequest) (domain.DispatchResponse, error) {
			return domain.DispatchResponse{}, service.ErrAlreadyDispatched
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/provider/send-call", "", `{"callId":"call_01ABC"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("got %d, want 409", resp.StatusCode)
	}
}

func TestProviderStatusWebhook(t *testing.T) {
	svc := &stubService{
		outcome: func(req domain.StatusCallbackRequest) (domain.Call, bool, error) {
			c := sampleCall()
			c.Status = domain.StatusCompleted
			c.ProviderID = req.ProviderID
			return c, false, nil
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/webhooks/provider-status", "",
		`{"callId":"call_01ABC","providerId":"prov_01XYZ","status":"COMPLETED"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var body domain.StatusCallbackResponse
	decodeBody(t, resp, &body)
	if !body.OK || body.Idempotent {
		t.Fatalf("expected ok=true idempotent=false, got %+v", body)
	}
	if body.Call == nil || body.Call.Status != domain.StatusCompleted {
		t.Fatalf("expected finalized call in response, got %+v", body.Call)
	}
}

func TestProviderStatusWebhookIdempotentReplay(t *testing.T) {
	svc := &stubService{
		outcome: func(req domain.StatusCallbackRequest) (domain.Call, bool, error) {
			c := sampleCall()
			c.Status = domain.StatusCompleted
			return c, true, nil
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/webhooks/provider-status", "",
		`{"callId":"call_01ABC","status":"FAILED"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var body domain.StatusCallbackResponse
	decodeBody(t, resp, &body)
	if !body.OK || !body.Idempotent {
		t.Fatalf("replay must report idempotent, got %+v", body)
	}
	if body.Call.Status != domain.StatusCompleted {
		t.Fatalf("replay must return the original terminal status, got %s", body.Call.Status)
	}
}

func TestProviderStatusWebhookMissingFields(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(svc, "")
	defer srv.Close()

	for _, body := range []string{`{}`, `{"callId":"call_01ABC"}`, `{"status":"COMPLETED"}`} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/v1/webhooks/provider-status", "", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: got %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestProviderStatusWebhookNonTerminalTarget(t *testing.T) {
	svc := &stubService{
		outcome: func(req domain.StatusCallbackRequest) (domain.Call, bool, error) {
			return domain.Call{}, false, service.ErrInvalidTransition
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/webhooks/provider-status", "",
		`{"callId":"call_01ABC","status":"PENDING"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", resp.StatusCode)
	}
}

func TestProviderStatusWebhookUnknownCall(t *testing.T) {
	svc := &stubService{
		outcome: func(req domain.StatusCallbackRequest) (domain.Call, bool, error) {
			return domain.Call{}, false, store.ErrNotFound
		},
	}
	srv := newTestServer(svc, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/webhooks/provider-status", "",
		`{"callId":"call_gone","status":"COMPLETED"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}
