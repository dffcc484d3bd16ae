// Package access assembles everything held about a user into an export.
package access

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"dsrengine/internal/audit"
	"dsrengine/internal/categoryrun"
	"dsrengine/internal/export"
	"dsrengine/internal/registry"
	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
)

const (
	DefaultParallelism = 4
	DefaultHandleTTL   = 72 * time.Hour
)

// Job identifies the ACCESS request being processed. Empty Categories means
// every category in the snapshot.
type Job struct {
	RequestID  id.RequestID
	UserID     id.UserID
	Categories []string
}

// Payload is the JSON document published behind the download handle.
type Payload struct {
	RequestID   id.RequestID   `json:"request_id"`
	UserID      id.UserID      `json:"user_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Categories  map[string]any `json:"categories"`
}

type Processor struct {
	runner      *categoryrun.Runner
	exports     export.Store
	auditor     *audit.Publisher
	logger      *slog.Logger
	clock       func() time.Time
	ttl         time.Duration
	parallelism int
}

type Option func(*Processor)

func WithHandleTTL(ttl time.Duration) Option {
	return func(p *Processor) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithParallelism bounds how many categories are collected at once.
func WithParallelism(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(p *Processor) {
		p.clock = clock
	}
}

func New(runner *categoryrun.Runner, exports export.Store, auditor *audit.Publisher, opts ...Option) *Processor {
	p := &Processor{
		runner:      runner,
		exports:     exports,
		auditor:     auditor,
		logger:      slog.Default(),
		clock:       time.Now,
		ttl:         DefaultHandleTTL,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process collects every requested category concurrently and publishes the
// assembled payload. The first category failure cancels the remaining
// collections and is returned as a *categoryrun.CategoryError.
func (p *Processor) Process(ctx context.Context, snap *registry.Snapshot, job Job) (export.Handle, error) {
	categories, err := snap.Resolve(job.Categories)
	if err != nil {
		return export.Handle{}, err
	}

	handlers := make([]registry.Handler, len(categories))
	for i, category := range categories {
		if handlers[i], err = snap.Handler(category.ID); err != nil {
			return export.Handle{}, err
		}
	}

	// One slot per category; each goroutine writes only its own index.
	collected := make([]any, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, category := range categories {
		handler := handlers[i]
		g.Go(func() error {
			return p.runner.Run(gctx, job.UserID, category.ID, categoryrun.OpCollect, func(ctx context.Context) error {
				data, err := handler.Collect(ctx, job.UserID)
				if err != nil {
					return err
				}
				collected[i] = data
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return export.Handle{}, err
	}

	payload := Payload{
		RequestID:   job.RequestID,
		UserID:      job.UserID,
		GeneratedAt: p.clock().UTC(),
		Categories:  make(map[string]any, len(categories)),
	}
	for i, category := range categories {
		payload.Categories[category.ID] = collected[i]
		p.emitAudit(ctx, audit.Event{
			Actor:     audit.ActorWorker,
			Action:    audit.ActionCategoryCollected,
			UserID:    job.UserID,
			Category:  category.ID,
			RequestID: audit.RequestRef(job.RequestID),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return export.Handle{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode export payload")
	}
	handle, err := p.exports.Publish(ctx, job.UserID, job.RequestID, body, p.ttl)
	if err != nil {
		return export.Handle{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish export")
	}
	p.logger.InfoContext(ctx, "access export published",
		"request_id", job.RequestID,
		"user_id", job.UserID,
		"categories", len(categories),
		"size_bytes", handle.SizeBytes,
	)
	return handle, nil
}

func (p *Processor) emitAudit(ctx context.Context, event audit.Event) {
	if p.auditor == nil {
		return
	}
	if err := p.auditor.Emit(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to emit access audit event",
			"error", err,
			"user_id", event.UserID,
			"category", event.Category,
		)
	}
}
