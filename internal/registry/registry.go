package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"dsrengine/internal/platform/privacy"
	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/validation"
)

// HandlerFactory binds a handler to a category when a snapshot is built.
type HandlerFactory func(Category) (Handler, error)

// Snapshot is an immutable view of the policy table.
type Snapshot struct {
	version    int64
	builtAt    time.Time
	categories []Category
	index      map[string]int
	handlers   map[string]Handler
	purposes   map[string]Purpose
	purposeIDs []string
}

// Version increases with every published snapshot.
func (s *Snapshot) Version() int64 { return s.version }

// BuiltAt is when the snapshot was published.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Lookup returns the category or CodeUnknownCategory.
func (s *Snapshot) Lookup(categoryID string) (Category, error) {
	i, ok := s.index[categoryID]
	if !ok {
		return Category{}, dErrors.New(dErrors.CodeUnknownCategory, fmt.Sprintf("unknown category: %s", categoryID))
	}
	return s.categories[i], nil
}

// ListAll returns every category in declaration order.
func (s *Snapshot) ListAll() []Category {
	return slices.Clone(s.categories)
}

// Handler returns the capability bound to categoryID.
func (s *Snapshot) Handler(categoryID string) (Handler, error) {
	h, ok := s.handlers[categoryID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownCategory, fmt.Sprintf("unknown category: %s", categoryID))
	}
	return h, nil
}

// Resolve expands ids into categories. An empty list means every category.
// Duplicates are dropped and the first unknown id fails the whole call.
func (s *Snapshot) Resolve(ids []string) ([]Category, error) {
	if len(ids) == 0 {
		return s.ListAll(), nil
	}
	out := make([]Category, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, categoryID := range ids {
		if _, dup := seen[categoryID]; dup {
			continue
		}
		seen[categoryID] = struct{}{}
		c, err := s.Lookup(categoryID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Purpose returns a declared purpose.
func (s *Snapshot) Purpose(purposeID string) (Purpose, bool) {
	p, ok := s.purposes[purposeID]
	return p, ok
}

// Purposes returns every declared purpose in declaration order.
func (s *Snapshot) Purposes() []Purpose {
	out := make([]Purpose, 0, len(s.purposeIDs))
	for _, pid := range s.purposeIDs {
		out = append(out, s.purposes[pid])
	}
	return out
}

// Registry publishes snapshots atomically.
type Registry struct {
	current atomic.Pointer[Snapshot]
	factory HandlerFactory
	mu      sync.Mutex // serializes Publish
	version int64
}

// New builds the first snapshot from cfg.
func New(cfg Config, factory HandlerFactory) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("registry: handler factory is required")
	}
	r := &Registry{factory: factory}
	if _, err := r.Publish(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the snapshot new work should use.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Publish validates cfg, binds handlers and swaps in a new snapshot. On error
// the current snapshot stays in place.
func (r *Registry) Publish(cfg Config) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := Build(cfg, r.factory)
	if err != nil {
		return nil, err
	}
	r.version++
	snap.version = r.version
	r.current.Store(snap)
	return snap, nil
}

// Build validates cfg and binds handlers without publishing. All problems
// are reported together.
func Build(cfg Config, factory HandlerFactory) (*Snapshot, error) {
	snap := &Snapshot{
		builtAt:  time.Now().UTC(),
		index:    make(map[string]int, len(cfg.Categories)),
		handlers: make(map[string]Handler, len(cfg.Categories)),
		purposes: make(map[string]Purpose, len(cfg.Purposes)),
	}

	var errs []error
	for _, cc := range cfg.Categories {
		c, err := cc.toCategory()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := snap.index[c.ID]; dup {
			errs = append(errs, fmt.Errorf("category %s: declared twice", c.ID))
			continue
		}
		snap.index[c.ID] = len(snap.categories)
		snap.categories = append(snap.categories, c)
	}

	for _, pc := range cfg.Purposes {
		if !validation.IsIdentifier(pc.ID) {
			errs = append(errs, fmt.Errorf("purpose %q: id must be a lowercase identifier", pc.ID))
			continue
		}
		if _, dup := snap.purposes[pc.ID]; dup {
			errs = append(errs, fmt.Errorf("purpose %s: declared twice", pc.ID))
			continue
		}
		if len(pc.Categories) == 0 {
			errs = append(errs, fmt.Errorf("purpose %s: must cover at least one category", pc.ID))
		}
		for _, cid := range pc.Categories {
			if _, ok := snap.index[cid]; !ok {
				errs = append(errs, fmt.Errorf("purpose %s: unknown category %s", pc.ID, cid))
			}
		}
		snap.purposes[pc.ID] = Purpose{ID: pc.ID, Description: pc.Description, Categories: slices.Clone(pc.Categories)}
		snap.purposeIDs = append(snap.purposeIDs, pc.ID)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid registry: %w", errors.Join(errs...))
	}

	for _, c := range snap.categories {
		h, err := factory(c)
		if err != nil {
			errs = append(errs, fmt.Errorf("category %s: bind handler: %w", c.ID, err))
			continue
		}
		if h == nil {
			errs = append(errs, fmt.Errorf("category %s: no handler", c.ID))
			continue
		}
		snap.handlers[c.ID] = h
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid registry: %w", errors.Join(errs...))
	}
	return snap, nil
}

func (cc CategoryConfig) toCategory() (Category, error) {
	if !validation.IsIdentifier(cc.ID) {
		return Category{}, fmt.Errorf("category %q: id must be a lowercase identifier", cc.ID)
	}
	basis := LegalBasis(cc.LegalBasis)
	if !basis.IsValid() {
		return Category{}, fmt.Errorf("category %s: unknown legal basis %q", cc.ID, cc.LegalBasis)
	}
	retention, err := ParseRetention(cc.Retention)
	if err != nil {
		return Category{}, fmt.Errorf("category %s: %w", cc.ID, err)
	}
	switch {
	case cc.Anonymization == "" && !cc.Deletable:
		return Category{}, fmt.Errorf("category %s: non-deletable categories need an anonymization strategy", cc.ID)
	case cc.Anonymization != "" && !privacy.IsKnownStrategy(cc.Anonymization):
		return Category{}, fmt.Errorf("category %s: unknown anonymization strategy %q", cc.ID, cc.Anonymization)
	}
	return Category{
		ID:              cc.ID,
		Description:     cc.Description,
		LegalBasis:      basis,
		Retention:       retention,
		Deletable:       cc.Deletable,
		Anonymization:   cc.Anonymization,
		AnonymizeFields: slices.Clone(cc.AnonymizeFields),
	}, nil
}
