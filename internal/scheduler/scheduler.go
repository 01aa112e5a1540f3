package scheduler

import (
	"sync"
	"time"
)

// Timers runs functions after a delay on their own goroutine. Once scheduled
// a task always fires; there is no cancellation. Stray tasks whose subject has
// since been deleted are expected to resolve as not-found downstream.
type Timers struct {
	wg sync.WaitGroup
}

func New() *Timers {
	return &Timers{}
}

func (t *Timers) Schedule(d time.Duration, fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			<-timer.C
		}
		fn()
	}()
}

// Wait blocks until every scheduled task has fired. Used by tests and by
// shutdown paths that want to drain in-flight timers.
func (t *Timers) Wait() {
	t.wg.Wait()
}
