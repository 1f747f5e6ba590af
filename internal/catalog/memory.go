package catalog

import (
	"context"
	"fmt"
	"sync"
)

var _ Catalog = (*Memory)(nil)

// Memory is a map-backed catalog guarded by a whole-store lock. limit caps
// the number of entries (0 = unlimited) so callers can exercise the
// capacity-exceeded path.
type Memory struct {
	limit int

	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemory(limit int) *Memory {
	return &Memory{limit: limit, entries: make(map[string]Entry)}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[e.ID]; exists {
		return &PersistenceError{Op: "append", Err: ErrDuplicateID}
	}
	if m.limit > 0 && len(m.entries) >= m.limit {
		return &PersistenceError{Op: "append", Err: fmt.Errorf("capacity exceeded (%d entries)", m.limit)}
	}
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) Remove(_ context.Context, id string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false, nil
	}
	delete(m.entries, id)
	return e, true, nil
}
