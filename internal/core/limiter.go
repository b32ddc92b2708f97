package core

// limiter.go is the counting semaphore used twice: to bound the parallel
// splitter's active workers, and to bound concurrent split requests at the
// service boundary. Slots are tokens in a buffered channel; goroutines queue
// on the channel send, run, then receive to free the slot.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxWorkers is the number of shard writers active at once in parallel mode.
const DefaultMaxWorkers = 2

// Limiter bounds how many holders may be active at the same time.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	peak   int
}

// NewLimiter creates a limiter with max slots. With maxWait > 0, Acquire
// gives up after that long with ErrTooManySplits; otherwise it waits until
// a slot frees or ctx ends.
func NewLimiter(max int, maxWait time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxWorkers
	}
	return &Limiter{
		slots:   make(chan struct{}, max),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must call Release exactly once after a
// nil return.
func (l *Limiter) Acquire(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// A free slot needs no timer.
	if l.TryAcquire() {
		return nil
	}

	if l.maxWait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
		defer cancel()

		select {
		case l.slots <- struct{}{}:
			l.enter()
			return nil
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrTooManySplits
		}
	}

	select {
	case l.slots <- struct{}{}:
		l.enter()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking and reports whether it did.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.enter()
		return true
	default:
		return false
	}
}

func (l *Limiter) enter() {
	l.mu.Lock()
	l.active++
	if l.active > l.peak {
		l.peak = l.active
	}
	l.mu.Unlock()
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// ActiveCount returns the number of slots currently held.
func (l *Limiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Peak returns the highest ActiveCount seen so far.
func (l *Limiter) Peak() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}

// Max returns the slot count.
func (l *Limiter) Max() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no slot is held or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of a limiter for monitoring.
type LimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Max       int `json:"max"`
}

// Status returns the current state.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:    l.ActiveCount(),
		Available: l.Available(),
		Max:       l.Max(),
	}
}
