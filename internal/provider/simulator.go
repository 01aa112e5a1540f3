package provider

import (
	"math/rand"
	"sync"
	"time"

	"calltrack/internal/domain"
	"calltrack/internal/util"
)

const (
	DefaultMinDelay = 800 * time.Millisecond
	DefaultMaxDelay = 2200 * time.Millisecond
	DefaultFailRate = 0.15
)

// Simulator generates the values a real telephony provider would produce:
// an opaque reference id, a response delay, and a final outcome. It only
// generates values; scheduling the callback is the caller's job.
type Simulator struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	FailRate float64

	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewSimulator clamps its knobs into range. A nil rng gets a time-seeded one;
// tests pass a fixed-seed source for deterministic draws.
func NewSimulator(minDelay, maxDelay time.Duration, failRate float64, rng *rand.Rand) *Simulator {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < 0 {
		maxDelay = 0
	}
	if failRate < 0 {
		failRate = 0
	}
	if failRate > 1 {
		failRate = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{MinDelay: minDelay, MaxDelay: maxDelay, FailRate: failRate, rng: rng}
}

type DispatchResult struct {
	ProviderID    string
	ResponseDelay time.Duration
	Outcome       domain.CallStatus
}

// Dispatch draws everything for one provider round-trip. No side effects.
func (s *Simulator) Dispatch() DispatchResult {
	return DispatchResult{
		ProviderID:    util.NewProviderID(),
		ResponseDelay: s.PickDelay(),
		Outcome:       s.PickOutcome(),
	}
}

// PickDelay draws uniformly from [MinDelay, MaxDelay] inclusive. When the
// interval is degenerate (max <= min) the delay is exactly MinDelay.
func (s *Simulator) PickDelay() time.Duration {
	if s.MaxDelay <= s.MinDelay {
		return s.MinDelay
	}
	span := int64(s.MaxDelay - s.MinDelay)
	s.rngMu.Lock()
	n := s.rng.Int63n(span + 1)
	s.rngMu.Unlock()
	return s.MinDelay + time.Duration(n)
}

// PickOutcome returns FAILED with probability FailRate, COMPLETED otherwise.
func (s *Simulator) PickOutcome() domain.CallStatus {
	s.rngMu.Lock()
	r := s.rng.Float64()
	s.rngMu.Unlock()
	if r < s.FailRate {
		return domain.StatusFailed
	}
	return domain.StatusCompleted
}
