package subjectdata

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	id "dsrengine/pkg/domain"
)

// InMemoryStore keeps subject records in memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *InMemoryStore) Insert(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Data = maps.Clone(record.Data)
	s.records[record.ID] = record
	return nil
}

// ListByUser returns the user's records in the category, oldest first.
func (s *InMemoryStore) ListByUser(_ context.Context, category string, userID id.UserID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.Category == category && r.UserID == userID {
			r.Data = maps.Clone(r.Data)
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *InMemoryStore) DeleteByUser(_ context.Context, category string, userID id.UserID) (int, error) {
	return s.deleteWhere(func(r Record) bool {
		return r.Category == category && r.UserID == userID
	}), nil
}

func (s *InMemoryStore) AnonymizeByUser(_ context.Context, category string, userID id.UserID, fn Transform) (int, error) {
	return s.anonymizeWhere(fn, func(r Record) bool {
		return r.Category == category && r.UserID == userID
	})
}

func (s *InMemoryStore) DeleteBefore(_ context.Context, category string, cutoff time.Time) (int, error) {
	return s.deleteWhere(func(r Record) bool {
		return r.Category == category && r.CreatedAt.Before(cutoff)
	}), nil
}

func (s *InMemoryStore) AnonymizeBefore(_ context.Context, category string, cutoff time.Time, fn Transform) (int, error) {
	return s.anonymizeWhere(fn, func(r Record) bool {
		return r.Category == category && r.CreatedAt.Before(cutoff)
	})
}

func (s *InMemoryStore) CountByCategory(_ context.Context, category string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total, anonymized int
	for _, r := range s.records {
		if r.Category != category {
			continue
		}
		total++
		if r.Anonymized {
			anonymized++
		}
	}
	return total, anonymized, nil
}

func (s *InMemoryStore) deleteWhere(match func(Record) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, r := range s.records {
		if match(r) {
			delete(s.records, key)
			n++
		}
	}
	return n
}

// anonymizeWhere transforms every matching record or none of them.
func (s *InMemoryStore) anonymizeWhere(fn Transform, match func(Record) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := make(map[uuid.UUID]Record)
	for key, r := range s.records {
		if r.Anonymized || !match(r) {
			continue
		}
		r.Data = maps.Clone(r.Data)
		out, err := fn(r)
		if err != nil {
			return 0, err
		}
		out.Anonymized = true
		updated[key] = out
	}
	maps.Copy(s.records, updated)
	return len(updated), nil
}

func sortRecords(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}
