// Package schedule coalesces bursts of local writes into a single deferred
// publish.
//
// The scheduler holds at most one pending timer. Arming always supersedes
// the previous timer, so the publish fires once per quiet period no matter
// how many writes arrive. It carries no record of what changed; the publish
// it fires serializes the entire current state, which makes the coalescing
// lossless.
package schedule

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is how long the scheduler waits after the last write
// before firing. Matches the cadence of a human saving a form.
const DefaultQuietPeriod = 1500 * time.Millisecond

// Scheduler debounces calls to a single deferred function.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	quiet time.Duration
	fn    func()

	// gen invalidates callbacks from superseded timers. Stop() on a timer
	// whose callback is already blocked on mu cannot prevent that callback
	// from running; the generation check in run can.
	gen uint64
}

// New creates a scheduler that runs fn after quiet period of inactivity.
// A non-positive quiet duration falls back to DefaultQuietPeriod.
func New(quiet time.Duration, fn func()) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Scheduler{quiet: quiet, fn: fn}
}

// Schedule arms the timer, cancelling any pending one first. Call this on
// every local mutation; only the last call of a burst takes effect.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.quiet, func() { s.run(gen) })
}

// Cancel clears the pending timer without firing it. Callers about to run
// an explicit awaited publish must cancel first so the debounced publish
// cannot race it.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Pending reports whether a publish is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) run(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		// A newer Schedule or Cancel superseded this timer while its
		// callback was waiting on the lock. The newer timer owns the fire.
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.fn()
}
