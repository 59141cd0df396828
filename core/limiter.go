package core

import (
	"fmt"
	"sync"
)

// LoopLimiter bounds the number of worker passes within a single turn,
// guarding against an evaluator that never sets a termination flag.
type LoopLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewLoopLimiter creates a limiter with a max number of passes.
// If max == 0, unlimited passes are allowed.
func NewLoopLimiter(max int) *LoopLimiter {
	return &LoopLimiter{max: max}
}

// Increment increases the pass counter and returns an error if the limit is exceeded.
func (l *LoopLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("exceeded max worker passes: %d", l.max)
	}

	return nil
}

// Count returns the current number of passes made.
func (l *LoopLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many passes are left before hitting the limit.
func (l *LoopLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1 // unlimited
	}

	return l.max - l.count
}
