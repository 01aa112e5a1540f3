package domain

import "time"

type CallStatus string

const (
	StatusPending   CallStatus = "PENDING"
	StatusCompleted CallStatus = "COMPLETED"
	StatusFailed    CallStatus = "FAILED"
)

func ParseStatus(s string) (CallStatus, bool) {
	switch CallStatus(s) {
	case StatusPending, StatusCompleted, StatusFailed:
		return CallStatus(s), true
	}
	return "", false
}

// Terminal reports whether no further transition can leave the status.
func (s CallStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Workflow string

const (
	WorkflowSupport  Workflow = "SUPPORT"
	WorkflowSales    Workflow = "SALES"
	WorkflowReminder Workflow = "REMINDER"
)

func ParseWorkflow(s string) (Workflow, bool) {
	switch Workflow(s) {
	case WorkflowSupport, WorkflowSales, WorkflowReminder:
		return Workflow(s), true
	}
	return "", false
}

// Call is a single outbound contact request tracked through its lifecycle.
// It starts PENDING and is finalized exactly once by a provider callback.
type Call struct {
	ID           string     `json:"id"`
	CustomerName string     `json:"customerName"`
	PhoneNumber  string     `json:"phoneNumber"`
	Workflow     Workflow   `json:"workflow"`
	Status       CallStatus `json:"status"`
	ProviderID   string     `json:"providerId,omitempty"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CanTransition reports whether the call may move to target. The only legal
// moves are PENDING -> COMPLETED and PENDING -> FAILED; a replay against a
// finalized call is a no-op, not an error.
func (c *Call) CanTransition(target CallStatus) bool {
	return c.Status == StatusPending && target.Terminal()
}

type CreateCallRequest struct {
	CustomerName string `json:"customerName" validate:"required,max=80"`
	PhoneNumber  string `json:"phoneNumber"  validate:"required,min=7,max=20,phone"`
	Workflow     string `json:"workflow"     validate:"required,oneof=SUPPORT SALES REMINDER"`
	ScheduledAt  string `json:"scheduledAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING COMPLETED FAILED"`
}

type DispatchRequest struct {
	CallID      string `json:"callId" validate:"required"`
	PhoneNumber string `json:"phoneNumber"`
	Workflow    string `json:"workflow"`
}

type DispatchResponse struct {
	ProviderID    string `json:"providerId"`
	ScheduledInMs int64  `json:"scheduledInMs"`
}

type StatusCallbackRequest struct {
	CallID     string `json:"callId" validate:"required"`
	ProviderID string `json:"providerId,omitempty"`
	Status     string `json:"status" validate:"required,oneof=PENDING COMPLETED FAILED"`
}

type StatusCallbackResponse struct {
	OK         bool  `json:"ok"`
	Call       *Call `json:"call"`
	Idempotent bool  `json:"idempotent,omitempty"`
}
