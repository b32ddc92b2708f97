package history

import (
	"context"
	"sync"
)

// DefaultCapacity is the number of runs a MemoryStore keeps.
const DefaultCapacity = 500

// MemoryStore keeps the most recent runs in a fixed-size ring.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []Run
	next int
	full bool
}

// NewMemoryStore creates a store holding at most capacity runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{runs: make([]Run, capacity)}
}

// Record implements Store. The oldest run is overwritten once full.
func (m *MemoryStore) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[m.next] = run
	m.next = (m.next + 1) % len(m.runs)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent implements Store, newest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Run, error) {
	limit = ClampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.runs)
	}
	if limit > size {
		limit = size
	}

	out := make([]Run, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, m.runs[(m.next-i+len(m.runs))%len(m.runs)])
	}
	return out, nil
}
