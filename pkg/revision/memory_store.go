package revision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu        sync.RWMutex
	revisions map[string]*Revision
}

// NewMemoryStore creates a new in-memory revision store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revisions: make(map[string]*Revision)}
}

func key(org, featureID string, version int) string {
	return fmt.Sprintf("%s/%s/%d", org, featureID, version)
}

func (s *MemoryStore) Create(ctx context.Context, r *Revision) error {
	if r == nil {
		return errors.New("revision cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(r.Organization, r.FeatureID, r.Version)
	if _, exists := s.revisions[k]; exists {
		return ErrRevisionExists
	}
	s.revisions[k] = r.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, org, featureID string, version int) (*Revision, error) {
	s.mu.RLock()
	r, exists := s.revisions[key(org, featureID, version)]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrRevisionNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, org, featureID string) ([]*Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Revision, 0)
	for _, r := range s.revisions {
		if r.Organization == org && r.FeatureID == featureID {
			result = append(result, r.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func (s *MemoryStore) Update(ctx context.Context, r *Revision) error {
	if r == nil {
		return errors.New("revision cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(r.Organization, r.FeatureID, r.Version)
	existing, exists := s.revisions[k]
	if !exists {
		return ErrRevisionNotFound
	}
	if !existing.Status.Active() {
		return errorf(ErrInvalidRevisionState, "revision %d is %s", r.Version, existing.Status)
	}
	s.revisions[k] = r.Clone()
	return nil
}

func (s *MemoryStore) MarkPublished(ctx context.Context, org, featureID string, version int, by Actor, comment string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(org, featureID, version)
	existing, exists := s.revisions[k]
	if !exists {
		return ErrRevisionNotFound
	}
	if !existing.Status.Active() {
		return errorf(ErrInvalidRevisionState, "revision %d is %s", version, existing.Status)
	}

	next := existing.Clone()
	next.Status = StatusPublished
	next.PublishedBy = &by
	next.DatePublished = &at
	next.DateUpdated = at
	if comment != "" {
		next.Comment = comment
	}
	next.Log = append(next.Log, LogEntry{Action: string(EventPublish), Value: comment, Actor: by, Timestamp: at})
	s.revisions[k] = next
	return nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context, org, featureID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, r := range s.revisions {
		if r.Organization == org && r.FeatureID == featureID {
			delete(s.revisions, k)
		}
	}
	return nil
}

func (s *MemoryStore) LatestVersion(ctx context.Context, org, featureID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := 0
	for _, r := range s.revisions {
		if r.Organization == org && r.FeatureID == featureID && r.Version > latest {
			latest = r.Version
		}
	}
	return latest, nil
}
