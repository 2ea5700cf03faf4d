package core

import "sync"

// TurnLimiter enforces a maximum number of turns per run. The counter is
// incremented before the limit is checked, so with max N the (N+1)th call to
// Increment fails and no model call must follow it.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a new limiter. If max <= 0, unlimited turns are allowed.
func NewTurnLimiter(max int) *TurnLimiter {
	return &TurnLimiter{max: max}
}

// Increment advances the turn counter and returns a *MaxTurnsExceededError
// if the limit is exceeded.
func (tl *TurnLimiter) Increment() (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.count++
	if tl.max > 0 && tl.count > tl.max {
		return tl.count, &MaxTurnsExceededError{MaxTurns: tl.max}
	}

	return tl.count, nil
}

// Count returns the number of turns counted so far.
func (tl *TurnLimiter) Count() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return tl.count
}

// Remaining returns how many turns are left before hitting the limit.
func (tl *TurnLimiter) Remaining() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.max <= 0 {
		return -1 // unlimited
	}

	if tl.count >= tl.max {
		return 0
	}

	return tl.max - tl.count
}
