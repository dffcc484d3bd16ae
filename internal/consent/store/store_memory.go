package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"dsrengine/internal/consent/models"
	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

// Error Contract:
// - Latest and Preferences return sentinel.ErrNotFound when nothing is stored
// - Append returns sentinel.ErrConflict when the version is not latest+1

// InMemoryStore keeps the consent ledger in memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[models.Scope][]models.Record
	prefs   map[id.UserID]*models.Preferences
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[models.Scope][]models.Record),
		prefs:   make(map[id.UserID]*models.Preferences),
	}
}

func (s *InMemoryStore) Latest(_ context.Context, scope models.Scope) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.records[scope]
	if len(history) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (s *InMemoryStore) Append(_ context.Context, record models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := models.Scope{UserID: record.UserID, Purpose: record.Purpose}
	history := s.records[scope]
	if record.Version != int64(len(history))+1 {
		return sentinel.ErrConflict
	}
	s.records[scope] = append(history, record)
	return nil
}

// ListPage returns up to limit records with Version > afterVersion, ascending.
func (s *InMemoryStore) ListPage(_ context.Context, scope models.Scope, afterVersion int64, limit int) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.records[scope]
	// versions are dense and start at 1, so index == version-1
	start := int(min(max(afterVersion, 0), int64(len(history))))
	end := min(start+limit, len(history))
	return append([]models.Record(nil), history[start:end]...), nil
}

func (s *InMemoryStore) SetPreference(_ context.Context, userID id.UserID, purpose string, granted bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, ok := s.prefs[userID]
	if !ok {
		prefs = &models.Preferences{UserID: userID, Purposes: make(map[string]bool)}
		s.prefs[userID] = prefs
	}
	prefs.Purposes[purpose] = granted
	if at.After(prefs.UpdatedAt) {
		prefs.UpdatedAt = at
	}
	return nil
}

func (s *InMemoryStore) Preferences(_ context.Context, userID id.UserID) (*models.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.prefs[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *prefs
	out.Purposes = maps.Clone(prefs.Purposes)
	return &out, nil
}
