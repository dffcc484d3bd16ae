// Package deletion erases or anonymizes a user's data category by category.
// Non-deletable categories are always anonymized, never erased.
package deletion

import (
	"context"
	"fmt"
	"log/slog"

	"dsrengine/internal/audit"
	"dsrengine/internal/categoryrun"
	"dsrengine/internal/registry"
	id "dsrengine/pkg/domain"
)

// Action is what happened to a category.
type Action string

const (
	ActionDeleted    Action = "deleted"
	ActionAnonymized Action = "anonymized"
)

// Job identifies the DELETION request being processed. Empty Categories
// means every category in the snapshot.
type Job struct {
	RequestID  id.RequestID
	UserID     id.UserID
	Categories []string
}

// Summary records the action and affected record count per category, and
// how many stored export copies were dropped.
type Summary struct {
	Actions       map[string]Action `json:"actions"`
	Counts        map[string]int    `json:"counts"`
	ExportsPurged int               `json:"exports_purged"`
}

// ExportPurger drops every export copy held for a user.
type ExportPurger interface {
	PurgeOwner(ctx context.Context, owner id.UserID) (int, error)
}

func newSummary(n int) Summary {
	return Summary{Actions: make(map[string]Action, n), Counts: make(map[string]int, n)}
}

type Processor struct {
	runner  *categoryrun.Runner
	auditor *audit.Publisher
	exports ExportPurger
	logger  *slog.Logger
}

type Option func(*Processor)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithExports makes every completed deletion also drop the user's
// outstanding access-request exports.
func WithExports(exports ExportPurger) Option {
	return func(p *Processor) {
		p.exports = exports
	}
}

func New(runner *categoryrun.Runner, auditor *audit.Publisher, opts ...Option) *Processor {
	p := &Processor{
		runner:  runner,
		auditor: auditor,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ActionFor is the only place the deletable flag is interpreted.
func ActionFor(c registry.Category) Action {
	if c.Deletable {
		return ActionDeleted
	}
	return ActionAnonymized
}

// Process handles categories sequentially in registry order. On the first
// failure it stops and returns the partial summary together with the error;
// categories already handled stay handled.
func (p *Processor) Process(ctx context.Context, snap *registry.Snapshot, job Job) (Summary, error) {
	categories, err := snap.Resolve(job.Categories)
	if err != nil {
		return Summary{}, err
	}

	summary := newSummary(len(categories))
	for _, category := range categories {
		handler, err := snap.Handler(category.ID)
		if err != nil {
			return summary, err
		}

		action := ActionFor(category)
		op := categoryrun.OpErase
		if action == ActionAnonymized {
			op = categoryrun.OpAnonymize
		}

		var affected int
		err = p.runner.Run(ctx, job.UserID, category.ID, op, func(ctx context.Context) error {
			var err error
			switch action {
			case ActionDeleted:
				affected, err = handler.Erase(ctx, job.UserID)
			case ActionAnonymized:
				affected, err = handler.Anonymize(ctx, job.UserID)
			}
			return err
		})
		if err != nil {
			return summary, err
		}

		summary.Actions[category.ID] = action
		summary.Counts[category.ID] = affected
		p.emitAudit(ctx, job, category.ID, action, affected)
	}

	if p.exports != nil {
		purged, err := p.exports.PurgeOwner(ctx, job.UserID)
		if err != nil {
			return summary, fmt.Errorf("purge exports: %w", err)
		}
		summary.ExportsPurged = purged
		if purged > 0 {
			p.emit(ctx, audit.Event{
				Actor:     audit.ActorWorker,
				Action:    audit.ActionExportsPurged,
				UserID:    job.UserID,
				RequestID: audit.RequestRef(job.RequestID),
				Reason:    fmt.Sprintf("%d exports", purged),
			})
		}
	}

	p.logger.InfoContext(ctx, "deletion request applied",
		"request_id", job.RequestID,
		"user_id", job.UserID,
		"categories", len(categories),
	)
	return summary, nil
}

func (p *Processor) emitAudit(ctx context.Context, job Job, category string, action Action, affected int) {
	auditAction := audit.ActionCategoryErased
	if action == ActionAnonymized {
		auditAction = audit.ActionCategoryAnonymized
	}
	p.emit(ctx, audit.Event{
		Actor:     audit.ActorWorker,
		Action:    auditAction,
		UserID:    job.UserID,
		Category:  category,
		RequestID: audit.RequestRef(job.RequestID),
		Reason:    fmt.Sprintf("%d records", affected),
	})
}

func (p *Processor) emit(ctx context.Context, event audit.Event) {
	if p.auditor == nil {
		return
	}
	if err := p.auditor.Emit(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to emit deletion audit event",
			"error", err,
			"user_id", event.UserID,
			"category", event.Category,
		)
	}
}
