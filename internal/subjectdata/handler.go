package subjectdata

import (
	"context"
	"fmt"
	"time"

	"dsrengine/internal/platform/privacy"
	"dsrengine/internal/registry"
	id "dsrengine/pkg/domain"
)

// CategoryHandler implements registry.Handler and registry.RetentionHandler
// for one category on top of a Store.
type CategoryHandler struct {
	category   registry.Category
	store      Store
	anonymizer *privacy.Anonymizer
}

var (
	_ registry.Handler          = (*CategoryHandler)(nil)
	_ registry.RetentionHandler = (*CategoryHandler)(nil)
)

// NewFactory binds a CategoryHandler to every category of a snapshot.
func NewFactory(store Store, anonymizer *privacy.Anonymizer) registry.HandlerFactory {
	return func(c registry.Category) (registry.Handler, error) {
		if c.Anonymization != "" && !privacy.IsKnownStrategy(c.Anonymization) {
			return nil, fmt.Errorf("category %s: unknown anonymization strategy %q", c.ID, c.Anonymization)
		}
		return &CategoryHandler{category: c, store: store, anonymizer: anonymizer}, nil
	}
}

// CollectedRecord is the export view of a record.
type CollectedRecord struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data"`
}

func (h *CategoryHandler) Collect(ctx context.Context, userID id.UserID) (any, error) {
	records, err := h.store.ListByUser(ctx, h.category.ID, userID)
	if err != nil {
		return nil, err
	}
	out := make([]CollectedRecord, 0, len(records))
	for _, r := range records {
		out = append(out, CollectedRecord{ID: r.ID.String(), CreatedAt: r.CreatedAt, Data: r.Data})
	}
	return out, nil
}

func (h *CategoryHandler) Erase(ctx context.Context, userID id.UserID) (int, error) {
	return h.store.DeleteByUser(ctx, h.category.ID, userID)
}

func (h *CategoryHandler) Anonymize(ctx context.Context, userID id.UserID) (int, error) {
	return h.store.AnonymizeByUser(ctx, h.category.ID, userID, h.transform)
}

func (h *CategoryHandler) EraseBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return h.store.DeleteBefore(ctx, h.category.ID, cutoff)
}

func (h *CategoryHandler) AnonymizeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return h.store.AnonymizeBefore(ctx, h.category.ID, cutoff, h.transform)
}

// transform applies the category strategy and unlinks the record from the
// user by replacing the owner with a pseudonym.
func (h *CategoryHandler) transform(r Record) (Record, error) {
	strategy := h.category.Anonymization
	if strategy == "" {
		strategy = privacy.StrategyRedact
	}
	data, err := h.anonymizer.Apply(strategy, h.category.AnonymizeFields, r.Data)
	if err != nil {
		return Record{}, fmt.Errorf("anonymize %s record: %w", h.category.ID, err)
	}
	r.Data = data
	r.UserID = id.UserID(h.anonymizer.Pseudonym(r.UserID.String()))
	return r, nil
}
