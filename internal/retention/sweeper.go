// Package retention expires records that have outlived their category's
// retention period.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dsrengine/internal/audit"
	"dsrengine/internal/deletion"
	"dsrengine/internal/platform/metrics"
	"dsrengine/internal/platform/tracer"
	"dsrengine/internal/registry"
)

// CategoryResult records what one sweep did to a single category.
type CategoryResult struct {
	Category string
	Action   deletion.Action
	Affected int
}

// Result contains the results of a sweep run.
type Result struct {
	Categories    []CategoryResult
	ExportsPurged int
	Duration      time.Duration
}

// Affected is the total number of records changed across categories.
func (r Result) Affected() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Affected
	}
	return total
}

type SnapshotSource interface {
	Current() *registry.Snapshot
}

// ExportPurger deletes export payloads whose download handle has expired.
type ExportPurger interface {
	Purge(ctx context.Context) (int, error)
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Sweeper) {
		s.auditor = auditor
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Sweeper) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithExports makes every sweep also purge expired export payloads.
func WithExports(exports ExportPurger) Option {
	return func(s *Sweeper) {
		s.exports = exports
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		s.clock = clock
	}
}

// Sweeper applies retention to every category with a finite retention
// period. It never takes request locks.
type Sweeper struct {
	registry SnapshotSource
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
	auditor  *audit.Publisher
	tracer   tracer.Tracer
	exports  ExportPurger
	clock    func() time.Time
}

func New(registry SnapshotSource, opts ...Option) *Sweeper {
	s := &Sweeper{
		registry: registry,
		logger:   slog.Default(),
		interval: time.Hour,
		tracer:   tracer.NewNoop(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a sweep every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("retention_sweep_failed",
					"error", err,
					"records_affected", res.Affected(),
					"duration_ms", res.Duration.Milliseconds(),
				)
				s.metrics.IncRetentionSweep("error")
				continue
			}
			s.logger.Info("retention_sweep_completed",
				"categories", len(res.Categories),
				"records_affected", res.Affected(),
				"exports_purged", res.ExportsPurged,
				"duration_ms", res.Duration.Milliseconds(),
			)
			s.metrics.IncRetentionSweep("success")

		case <-ctx.Done():
			s.logger.Info("retention sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep against one registry snapshot. A failing
// category does not stop the others; all failures are joined into the
// returned error and the result still lists the categories that succeeded.
func (s *Sweeper) RunOnce(ctx context.Context) (res Result, err error) {
	start := s.clock()
	ctx, span := s.tracer.Start(ctx, tracer.SpanRetentionSweep)
	defer func() {
		span.SetAttributes(tracer.Int(tracer.AttrAffected, res.Affected()))
		span.End(err)
	}()

	now := start.UTC()
	var errs []error
	snap := s.registry.Current()
	for _, category := range snap.ListAll() {
		if !category.FiniteRetention() {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		cr, swept, err := s.sweepCategory(ctx, snap, category, now.Add(-category.Retention))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !swept {
			continue
		}
		res.Categories = append(res.Categories, cr)
		if cr.Affected > 0 {
			s.metrics.AddRetentionAffected(cr.Category, string(cr.Action), cr.Affected)
			s.emitAudit(ctx, cr, category.Retention)
		}
	}
	if s.exports != nil && ctx.Err() == nil {
		purged, err := s.exports.Purge(ctx)
		res.ExportsPurged = purged
		if err != nil {
			errs = append(errs, fmt.Errorf("purge expired exports: %w", err))
		}
		if purged > 0 {
			s.metrics.AddRetentionAffected("exports", string(deletion.ActionDeleted), purged)
			s.emitEvent(ctx, audit.Event{
				Actor:  audit.ActorSweeper,
				Action: audit.ActionExportsPurged,
				Reason: fmt.Sprintf("%d expired exports", purged),
			})
		}
	}
	res.Duration = time.Since(start)
	return res, errors.Join(errs...)
}

// sweepCategory reports swept=false when the category's handler has no
// retention capability.
func (s *Sweeper) sweepCategory(ctx context.Context, snap *registry.Snapshot, category registry.Category, cutoff time.Time) (CategoryResult, bool, error) {
	handler, err := snap.Handler(category.ID)
	if err != nil {
		return CategoryResult{}, false, err
	}
	rh, ok := handler.(registry.RetentionHandler)
	if !ok {
		s.logger.Debug("category has no retention handler", "category", category.ID)
		return CategoryResult{}, false, nil
	}

	cr := CategoryResult{Category: category.ID, Action: deletion.ActionFor(category)}
	switch cr.Action {
	case deletion.ActionDeleted:
		cr.Affected, err = rh.EraseBefore(ctx, cutoff)
	case deletion.ActionAnonymized:
		cr.Affected, err = rh.AnonymizeBefore(ctx, cutoff)
	}
	if err != nil {
		return cr, false, fmt.Errorf("retention %s: %w", category.ID, err)
	}
	return cr, true, nil
}

func (s *Sweeper) emitAudit(ctx context.Context, cr CategoryResult, retention time.Duration) {
	action := audit.ActionRetentionErased
	if cr.Action == deletion.ActionAnonymized {
		action = audit.ActionRetentionAnonymized
	}
	s.emitEvent(ctx, audit.Event{
		Actor:    audit.ActorSweeper,
		Action:   action,
		Category: cr.Category,
		Reason:   fmt.Sprintf("%d records older than %s", cr.Affected, registry.FormatRetention(retention)),
	})
}

func (s *Sweeper) emitEvent(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit retention audit event", "error", err, "category", event.Category)
	}
}
