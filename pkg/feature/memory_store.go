package feature

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// NewMemoryStore creates a new in-memory feature store.
func NewMemoryStore(initial ...*Feature) (*MemoryStore, error) {
	s := &MemoryStore{features: make(map[string]*Feature)}

	for _, f := range initial {
		if f == nil {
			continue
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		s.features[key(f.Organization, f.ID)] = f.Clone()
	}

	return s, nil
}

func key(org, id string) string {
	return org + "/" + id
}

func (s *MemoryStore) Create(ctx context.Context, f *Feature) error {
	if f == nil {
		return errors.Join(ErrInvalidFeature, errors.New("feature cannot be nil"))
	}
	if err := f.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(f.Organization, f.ID)
	if _, exists := s.features[k]; exists {
		return ErrFeatureExists
	}

	// Store a copy to prevent external modification
	s.features[k] = f.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, org, id string) (*Feature, error) {
	s.mu.RLock()
	f, exists := s.features[key(org, id)]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrFeatureNotFound
	}
	return f.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, org string, filter Filter) ([]*Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Feature, 0)
	for _, f := range s.features {
		if f.Organization != org || !filter.Matches(f) {
			continue
		}
		result = append(result, f.Clone())
	}
	sortByID(result)
	return result, nil
}

func (s *MemoryStore) Update(ctx context.Context, next *Feature, expectedVersion int) error {
	if next == nil {
		return errors.Join(ErrInvalidFeature, errors.New("feature cannot be nil"))
	}
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(next.Organization, next.ID)
	existing, exists := s.features[k]
	if !exists {
		return ErrFeatureNotFound
	}
	if existing.Version != expectedVersion {
		return ErrVersionConflict
	}

	stored := next.Clone()
	stored.DateCreated = existing.DateCreated
	s.features[k] = stored
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, org, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(org, id)
	if _, exists := s.features[k]; !exists {
		return ErrFeatureNotFound
	}
	delete(s.features, k)
	return nil
}

func (s *MemoryStore) FindDue(ctx context.Context, now time.Time) ([]*Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Feature, 0)
	for _, f := range s.features {
		if IsDue(f, now) {
			result = append(result, f.Clone())
		}
	}
	sortByID(result)
	return result, nil
}

func sortByID(fs []*Feature) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Organization != fs[j].Organization {
			return fs[i].Organization < fs[j].Organization
		}
		return fs[i].ID < fs[j].ID
	})
}
