package audit

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStorage keeps events in memory. Useful for tests and single-process setups.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Store(ctx context.Context, event Event) error {
	return m.StoreBatch(ctx, []Event{event})
}

func (m *MemoryStorage) StoreBatch(ctx context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range events {
		e.Metadata = maps.Clone(e.Metadata)
		m.events = append(m.events, e)
	}
	return nil
}

func (m *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Event, 0)
	for _, e := range slices.Backward(m.events) {
		if criteria.Matches(e) {
			result = append(result, e)
		}
	}
	return paginate(result, criteria.Offset, criteria.Limit), nil
}

func paginate(events []Event, offset, limit int) []Event {
	if offset > 0 {
		if offset >= len(events) {
			return []Event{}
		}
		events = events[offset:]
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}
