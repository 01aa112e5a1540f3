package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"calltrack/internal/domain"
	"calltrack/internal/observability"
	"calltrack/internal/provider"
	"calltrack/internal/store"
	"calltrack/internal/util"
)

var (
	// ErrAlreadyDispatched guards the at-most-one-dispatch invariant: a call
	// that already carries a provider reference is never dispatched again.
	ErrAlreadyDispatched = errors.New("call already dispatched")

	// ErrProviderMismatch rejects a callback whose provider reference does not
	// match the one stored on the call.
	ErrProviderMismatch = errors.New("provider id does not match call")

	ErrInvalidTransition = errors.New("status transition not allowed")
)

type Store interface {
	InsertCall(ctx context.Context, in store.CallInsert) (domain.Call, error)
	GetCall(ctx context.Context, id string) (domain.Call, bool, error)
	ListCalls(ctx context.Context, limit int) ([]domain.Call, error)
	ClaimDispatch(ctx context.Context, id, providerID string, now time.Time) (bool, error)
	FinalizeStatus(ctx context.Context, in store.StatusFinalize) (bool, error)
	DeleteAllCalls(ctx context.Context) error
}

// Dispatcher triggers the provider's accept-dispatch endpoint.
type Dispatcher interface {
	SendCall(ctx context.Context, req domain.DispatchRequest) (domain.DispatchResponse, error)
}

// CallbackSender delivers the provider's outcome webhook.
type CallbackSender interface {
	PostStatus(ctx context.Context, req domain.StatusCallbackRequest) error
}

// Scheduler runs a function after a delay without blocking the caller.
type Scheduler interface {
	Schedule(d time.Duration, fn func())
}

const (
	ListLimit = 100

	// scheduled actions run detached from any request; they still get a
	// generous deadline so a wedged loopback call cannot leak goroutines
	fireTimeout = 30 * time.Second
)

// CallService orchestrates the call lifecycle: create PENDING, trigger the
// provider after the schedule delay, and apply the provider's outcome when
// the webhook lands.
type CallService struct {
	Store     Store
	Dispatch  Dispatcher
	Callbacks CallbackSender
	Timers    Scheduler
	Simulator *provider.Simulator

	IDGen func() string
	Now   func() time.Time
}

func (s *CallService) newID() string {
	if s.IDGen != nil {
		return s.IDGen()
	}
	return util.NewCallID()
}

func (s *CallService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return util.NowUTC()
}

// SubmitCall validates the request, records the call PENDING, and schedules
// the dispatch trigger. It returns immediately; the caller never waits on the
// provider round-trip.
func (s *CallService) SubmitCall(ctx context.Context, req domain.CreateCallRequest) (domain.Call, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.PhoneNumber = util.NormalizePhone(req.PhoneNumber)

	if err := domain.Validate(req); err != nil {
		return domain.Call{}, err
	}
	workflow, _ := domain.ParseWorkflow(req.Workflow)

	now := s.now()
	var scheduledAt *time.Time
	if req.ScheduledAt != "" {
		if t, err := time.Parse(time.RFC3339, req.ScheduledAt); err == nil {
			t = t.UTC()
			scheduledAt = &t
		}
	}

	call, err := s.Store.InsertCall(ctx, store.CallInsert{
		ID:           s.newID(),
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Workflow:     workflow,
		ScheduledAt:  scheduledAt,
		Now:          now,
	})
	if err != nil {
		return domain.Call{}, err
	}

	dispatchDelay := DispatchDelay(scheduledAt, now)
	observability.Dispatches.WithLabelValues("scheduled").Inc()

	s.Timers.Schedule(dispatchDelay, func() {
		fireCtx, cancel := context.WithTimeout(context.Background(), fireTimeout)
		defer cancel()

		// Fire-and-forget: a failed trigger is logged and dropped, never retried.
		if _, err := s.Dispatch.SendCall(fireCtx, domain.DispatchRequest{
			CallID:      call.ID,
			PhoneNumber: call.PhoneNumber,
			Workflow:    string(call.Workflow),
		}); err != nil {
			observability.Dispatches.WithLabelValues("error").Inc()
			slog.Error("dispatch trigger failed", "call_id", call.ID, "err", err)
			return
		}
		observability.Dispatches.WithLabelValues("ok").Inc()
	})

	return call, nil
}

// DispatchDelay is how long to defer the provider trigger: time until
// scheduledAt, or zero when it is absent or already past.
func DispatchDelay(scheduledAt *time.Time, now time.Time) time.Duration {
	if scheduledAt == nil {
		return 0
	}
	d := scheduledAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// AcceptDispatch is the provider side of the round-trip: assign a provider
// reference, then schedule the outcome webhook after the drawn delay.
func (s *CallService) AcceptDispatch(ctx context.Context, req domain.DispatchRequest) (domain.DispatchResponse, error) {
	call, found, err := s.Store.GetCall(ctx, req.CallID)
	if err != nil {
		return domain.DispatchResponse{}, err
	}
	if !found {
		return domain.DispatchResponse{}, store.ErrNotFound
	}

	res := s.Simulator.Dispatch()

	claimed, err := s.Store.ClaimDispatch(ctx, call.ID, res.ProviderID, s.now())
	if err != nil {
		return domain.DispatchResponse{}, err
	}
	if !claimed {
		return domain.DispatchResponse{}, ErrAlreadyDispatched
	}

	observability.ProviderOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	observability.ProviderDelay.Observe(res.ResponseDelay.Seconds())

	s.Timers.Schedule(res.ResponseDelay, func() {
		fireCtx, cancel := context.WithTimeout(context.Background(), fireTimeout)
		defer cancel()

		if err := s.Callbacks.PostStatus(fireCtx, domain.StatusCallbackRequest{
			CallID:     call.ID,
			ProviderID: res.ProviderID,
			Status:     string(res.Outcome),
		}); err != nil {
			slog.Error("status callback delivery failed", "call_id", call.ID, "provider_id", res.ProviderID, "err", err)
		}
	})

	return domain.DispatchResponse{
		ProviderID:    res.ProviderID,
		ScheduledInMs: res.ResponseDelay.Milliseconds(),
	}, nil
}

// ApplyOutcome moves a PENDING call to a terminal status. Replays against an
// already-finalized call report idempotent success and touch nothing; the
// status check and the write are a single conditional UPDATE, so two racing
// deliveries can never both commit.
func (s *CallService) ApplyOutcome(ctx context.Context, req domain.StatusCallbackRequest) (domain.Call, bool, error) {
	status, ok := domain.ParseStatus(req.Status)
	if !ok || !status.Terminal() {
		return domain.Call{}, false, ErrInvalidTransition
	}

	call, found, err := s.Store.GetCall(ctx, req.CallID)
	if err != nil {
		return domain.Call{}, false, err
	}
	if !found {
		return domain.Call{}, false, store.ErrNotFound
	}

	if call.Status.Terminal() {
		observability.IdempotentCallbacks.Inc()
		return call, true, nil
	}

	if req.ProviderID != "" && call.ProviderID != "" && req.ProviderID != call.ProviderID {
		return domain.Call{}, false, ErrProviderMismatch
	}

	committed, err := s.Store.FinalizeStatus(ctx, store.StatusFinalize{
		ID:         call.ID,
		Status:     status,
		ProviderID: req.ProviderID,
		Now:        s.now(),
	})
	if err != nil {
		return domain.Call{}, false, err
	}

	updated, found, err := s.Store.GetCall(ctx, req.CallID)
	if err != nil {
		return domain.Call{}, false, err
	}
	if !found {
		return domain.Call{}, false, store.ErrNotFound
	}

	if !committed {
		// lost the race to a concurrent delivery
		observability.IdempotentCallbacks.Inc()
		return updated, true, nil
	}

	observability.WebhookEvents.WithLabelValues(string(status)).Inc()
	return updated, false, nil
}

// UpdateStatus is the manual PATCH path. It goes through the same state
// machine as the webhook: terminal targets finalize a PENDING call, a replay
// against a finalized call is a no-op, and PENDING is never a valid target.
func (s *CallService) UpdateStatus(ctx context.Context, id string, target domain.CallStatus) (domain.Call, bool, error) {
	if !target.Terminal() {
		return domain.Call{}, false, ErrInvalidTransition
	}

	call, found, err := s.Store.GetCall(ctx, id)
	if err != nil {
		return domain.Call{}, false, err
	}
	if !found {
		return domain.Call{}, false, store.ErrNotFound
	}

	if call.Status.Terminal() {
		return call, true, nil
	}

	if _, err := s.Store.FinalizeStatus(ctx, store.StatusFinalize{
		ID:     call.ID,
		Status: target,
		Now:    s.now(),
	}); err != nil {
		return domain.Call{}, false, err
	}

	updated, found, err := s.Store.GetCall(ctx, id)
	if err != nil {
		return domain.Call{}, false, err
	}
	if !found {
		return domain.Call{}, false, store.ErrNotFound
	}
	return updated, updated.Status != target, nil
}

func (s *CallService) ListCalls(ctx context.Context) ([]domain.Call, error) {
	return s.Store.ListCalls(ctx, ListLimit)
}

// ClearCalls drops every call. In-flight timers are not cancelled; their
// later callbacks resolve as not-found and are discarded.
func (s *CallService) ClearCalls(ctx context.Context) error {
	return s.Store.DeleteAllCalls(ctx)
}
