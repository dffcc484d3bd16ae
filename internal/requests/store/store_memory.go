package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"dsrengine/internal/requests/models"
	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

// Error Contract:
// - Get and FindActive return sentinel.ErrNotFound when nothing matches
// - Create returns sentinel.ErrConflict when the user already has a
//   non-terminal request of the same kind
// - Transition returns sentinel.ErrConflict when the stored state is not t.From

// InMemoryStore keeps privacy requests in memory for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.Request
}

func New() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return sentinel.ErrConflict
	}
	if !r.State.IsTerminal() && s.activeLocked(r.UserID, r.Kind) != nil {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = clone(r)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *InMemoryStore) FindActive(_ context.Context, userID id.UserID, kind models.Kind) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.activeLocked(userID, kind)
	if r == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

// ListByUser returns the user's requests, newest first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if r.UserID == userID {
			out = append(out, clone(r))
		}
	}
	slices.SortFunc(out, func(a, b *models.Request) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// ListPending returns up to limit PENDING request ids, oldest first.
func (s *InMemoryStore) ListPending(_ context.Context, limit int) ([]id.RequestID, error) {
	s.mu.RLock()
	var pending []*models.Request
	for _, r := range s.requests {
		if r.State == models.StatePending {
			pending = append(pending, r)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(pending, func(a, b *models.Request) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	ids := make([]id.RequestID, len(pending))
	for i, r := range pending {
		ids[i] = r.ID
	}
	return ids, nil
}

// ListStale returns up to limit PROCESSING requests claimed before cutoff,
// oldest claim first.
func (s *InMemoryStore) ListStale(_ context.Context, claimedBefore time.Time, limit int) ([]*models.Request, error) {
	s.mu.RLock()
	var stale []*models.Request
	for _, r := range s.requests {
		if r.State == models.StateProcessing && r.ClaimedAt.Before(claimedBefore) {
			stale = append(stale, clone(r))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(stale, func(a, b *models.Request) int {
		return a.ClaimedAt.Compare(b.ClaimedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *InMemoryStore) Transition(_ context.Context, t models.Transition) (*models.Request, error) {
	if err := t.Validate(); err != nil {
		return nil, sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[t.ID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if r.State != t.From {
		return nil, sentinel.ErrConflict
	}
	t.Apply(r)
	return clone(r), nil
}

func (s *InMemoryStore) activeLocked(userID id.UserID, kind models.Kind) *models.Request {
	for _, r := range s.requests {
		if r.UserID == userID && r.Kind == kind && !r.State.IsTerminal() {
			return r
		}
	}
	return nil
}

func clone(r *models.Request) *models.Request {
	c := *r
	c.Categories = slices.Clone(r.Categories)
	if r.Download != nil {
		d := *r.Download
		c.Download = &d
	}
	if r.Deletion != nil {
		c.Deletion = &models.DeletionSummary{
			Actions:       maps.Clone(r.Deletion.Actions),
			Counts:        maps.Clone(r.Deletion.Counts),
			ExportsPurged: r.Deletion.ExportsPurged,
		}
	}
	return &c
}
