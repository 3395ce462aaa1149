package saferollout

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu       sync.RWMutex
	rollouts map[string]*SafeRollout
}

// NewMemoryStore creates an in-memory store seeded with initial rollouts.
func NewMemoryStore(initial ...*SafeRollout) *MemoryStore {
	s := &MemoryStore{rollouts: make(map[string]*SafeRollout, len(initial))}
	for _, r := range initial {
		if r != nil {
			s.rollouts[key(r.Organization, r.ID)] = r.Clone()
		}
	}
	return s
}

func key(org, id string) string {
	return org + "/" + id
}

func (m *MemoryStore) Create(ctx context.Context, s *SafeRollout) error {
	if s == nil || s.ID == "" || s.Organization == "" {
		return errors.Join(ErrInvalidRollout, errors.New("id and organization are required"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(s.Organization, s.ID)
	if _, exists := m.rollouts[k]; exists {
		return ErrExists
	}
	m.rollouts[k] = s.Clone()
	return nil
}

func (m *MemoryStore) GetByIDs(ctx context.Context, org string, ids []string) ([]*SafeRollout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*SafeRollout, 0, len(ids))
	for _, id := range slices.Compact(slices.Sorted(slices.Values(ids))) {
		if r, ok := m.rollouts[key(org, id)]; ok {
			result = append(result, r.Clone())
		}
	}
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, s *SafeRollout) error {
	if s == nil {
		return errors.Join(ErrInvalidRollout, errors.New("safe rollout cannot be nil"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(s.Organization, s.ID)
	if _, exists := m.rollouts[k]; !exists {
		return ErrNotFound
	}
	m.rollouts[k] = s.Clone()
	return nil
}
