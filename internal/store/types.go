package store

import (
	"errors"
	"time"

	"calltrack/internal/domain"
)

// ErrUnavailable marks the persistence layer as unreachable (connection
// refused, breaker open). Handlers translate it to 503 instead of a generic
// failure so callers can tell the two apart.
var ErrUnavailable = errors.New("store unavailable")

var ErrNotFound = errors.New("call not found")

type CallInsert struct {
	ID           string
	CustomerName string
	PhoneNumber  string
	Workflow     domain.Workflow
	ScheduledAt  *time.Time
	Now          time.Time
}

// StatusFinalize is the conditional terminal-state write. It only applies
// while the row is still PENDING, which is what makes duplicate callback
// delivery safe.
type StatusFinalize struct {
	ID         string
	Status     domain.CallStatus
	ProviderID string
	Now        time.Time
}
