// Package subjectdata is the reference personal-data store the engine
// operates on, plus the per-category handlers bound into the registry.
package subjectdata

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "dsrengine/pkg/domain"
)

// Record is one piece of personal data held for a user in a category.
type Record struct {
	ID         uuid.UUID      `json:"id"`
	UserID     id.UserID      `json:"-"`
	Category   string         `json:"-"`
	Data       map[string]any `json:"data"`
	Anonymized bool           `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Transform rewrites a record during anonymization. The store persists the
// returned UserID and Data and marks the record anonymized.
type Transform func(Record) (Record, error)

//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks Store

// Store holds subject records per category.
// Anonymize* methods only visit records that are not yet anonymized, so
// repeating them changes nothing.
type Store interface {
	Insert(ctx context.Context, record Record) error
	ListByUser(ctx context.Context, category string, userID id.UserID) ([]Record, error)
	DeleteByUser(ctx context.Context, category string, userID id.UserID) (int, error)
	AnonymizeByUser(ctx context.Context, category string, userID id.UserID, fn Transform) (int, error)
	DeleteBefore(ctx context.Context, category string, cutoff time.Time) (int, error)
	AnonymizeBefore(ctx context.Context, category string, cutoff time.Time, fn Transform) (int, error)
	CountByCategory(ctx context.Context, category string) (total, anonymized int, err error)
}
