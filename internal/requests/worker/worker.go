// Package worker processes PENDING privacy requests in the background.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dsrengine/internal/access"
	"dsrengine/internal/audit"
	"dsrengine/internal/categoryrun"
	"dsrengine/internal/deletion"
	"dsrengine/internal/export"
	"dsrengine/internal/platform/metrics"
	"dsrengine/internal/platform/tracer"
	"dsrengine/internal/registry"
	"dsrengine/internal/requests/models"
	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

//go:generate mockgen -source=worker.go -destination=mocks/mocks.go -package=mocks Store,AccessProcessor,DeletionProcessor

// Store is the subset of the request store the worker needs.
type Store interface {
	ListPending(ctx context.Context, limit int) ([]id.RequestID, error)
	ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*models.Request, error)
	Transition(ctx context.Context, t models.Transition) (*models.Request, error)
}

type AccessProcessor interface {
	Process(ctx context.Context, snap *registry.Snapshot, job access.Job) (export.Handle, error)
}

type DeletionProcessor interface {
	Process(ctx context.Context, snap *registry.Snapshot, job deletion.Job) (deletion.Summary, error)
}

// SnapshotSource yields the registry snapshot each request is processed against.
type SnapshotSource interface {
	Current() *registry.Snapshot
}

// Worker runs a fixed pool of goroutines fed by a buffered queue. A poller
// re-discovers PENDING requests from the store, so requests created before a
// restart, or dropped from a full queue, are still processed. The poller also
// fails PROCESSING requests whose claim outlived the lease, which happens when
// the claiming process died.
type Worker struct {
	store        Store
	registry     SnapshotSource
	access       AccessProcessor
	deletion     DeletionProcessor
	auditor      *audit.Publisher
	metrics      *metrics.Metrics
	tracer       tracer.Tracer
	logger       *slog.Logger
	clock        func() time.Time
	workers      int
	pollInterval time.Duration
	batchSize    int
	claimLease   time.Duration

	queue chan id.RequestID
	// ctx gates claiming; runCtx bounds claimed work and outlives ctx until
	// Stop's deadline.
	ctx       context.Context
	cancel    context.CancelFunc
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

type Option func(*Worker)

// WithWorkers sets the pool size.
func WithWorkers(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithQueueSize sets the buffered queue capacity.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan id.RequestID, n)
		}
	}
}

// WithPollInterval sets the interval between store polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithClaimLease sets how long a request may stay PROCESSING before the
// poller declares its worker lost.
func WithClaimLease(lease time.Duration) Option {
	return func(w *Worker) {
		if lease > 0 {
			w.claimLease = lease
		}
	}
}

func WithAuditor(auditor *audit.Publisher) Option {
	return func(w *Worker) {
		w.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(w *Worker) {
		w.tracer = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		w.clock = clock
	}
}

func New(store Store, registry SnapshotSource, accessProc AccessProcessor, deletionProc DeletionProcessor, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	runCtx, runCancel := context.WithCancel(context.Background())
	w := &Worker{
		store:        store,
		registry:     registry,
		access:       accessProc,
		deletion:     deletionProc,
		tracer:       tracer.NewNoop(),
		logger:       slog.Default(),
		clock:        time.Now,
		workers:      4,
		pollInterval: 5 * time.Second,
		batchSize:    100,
		claimLease:   time.Hour,
		queue:        make(chan id.RequestID, 256),
		ctx:          ctx,
		cancel:       cancel,
		runCtx:       runCtx,
		runCancel:    runCancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules a request without blocking. When the queue is full the
// id is dropped and the poller picks the request up later.
func (w *Worker) Enqueue(requestID id.RequestID) {
	select {
	case w.queue <- requestID:
		w.metrics.SetQueueDepth(len(w.queue))
	default:
		w.logger.Warn("request queue full, deferring to poller", "request_id", requestID)
	}
}

// QueueDepth reports how many request ids wait for a consumer.
func (w *Worker) QueueDepth() int {
	return len(w.queue)
}

// Start launches the pool and the poller. It polls once immediately.
func (w *Worker) Start() {
	for range w.workers {
		w.wg.Add(1)
		go w.consume()
	}
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) consume() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case requestID := <-w.queue:
			w.metrics.SetQueueDepth(len(w.queue))
			if w.ctx.Err() != nil {
				return
			}
			if err := w.Process(w.runCtx, requestID); err != nil {
				w.logger.Error("failed to process privacy request",
					"request_id", requestID,
					"error", err,
				)
			}
		}
	}
}

// run is the polling loop.
func (w *Worker) run() {
	defer w.wg.Done()

	w.poll()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Worker) poll() {
	if _, err := w.ExpireStale(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("failed to expire stale privacy requests", "error", err)
	}

	ids, err := w.store.ListPending(w.ctx, w.batchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("failed to poll pending requests", "error", err)
		}
		return
	}
	for _, requestID := range ids {
		w.Enqueue(requestID)
	}
}

// ExpireStale moves PROCESSING requests claimed longer than the lease ago to
// FAILED, freeing the user's slot for that kind. It returns how many it failed.
func (w *Worker) ExpireStale(ctx context.Context) (int, error) {
	stale, err := w.store.ListStale(ctx, w.clock().Add(-w.claimLease), w.batchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, req := range stale {
		err := w.finish(ctx, req, models.Transition{
			ID:            req.ID,
			From:          models.StateProcessing,
			To:            models.StateFailed,
			FailureReason: errWorkerLost,
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, sentinel.ErrConflict):
			// finished in the meantime
		default:
			return expired, err
		}
	}
	return expired, nil
}

// Process claims and runs one request. Losing the claim (another worker got
// it, or it was cancelled) is not an error.
func (w *Worker) Process(ctx context.Context, requestID id.RequestID) (err error) {
	req, err := w.store.Transition(ctx, models.Transition{
		ID:   requestID,
		From: models.StatePending,
		To:   models.StateProcessing,
		At:   w.clock(),
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	}

	ctx, span := w.tracer.Start(ctx, tracer.SpanProcessRequest,
		tracer.String(tracer.AttrRequestID, req.ID.String()),
		tracer.String(tracer.AttrKind, req.Kind.String()),
	)
	defer func() { span.End(err) }()

	w.logger.InfoContext(ctx, "processing privacy request",
		"request_id", req.ID,
		"user_id", req.UserID,
		"kind", req.Kind,
	)

	snap := w.registry.Current()
	done := models.Transition{ID: req.ID, From: models.StateProcessing, To: models.StateCompleted}
	var procErr error
	switch req.Kind {
	case models.KindAccess:
		var handle export.Handle
		handle, procErr = w.access.Process(ctx, snap, access.Job{RequestID: req.ID, UserID: req.UserID, Categories: req.Categories})
		if procErr == nil {
			done.Download = &models.DownloadHandle{
				Token:     handle.Token,
				URL:       handle.URL,
				SizeBytes: handle.SizeBytes,
				ExpiresAt: handle.ExpiresAt,
			}
		}
	case models.KindDeletion:
		var summary deletion.Summary
		summary, procErr = w.deletion.Process(ctx, snap, deletion.Job{RequestID: req.ID, UserID: req.UserID, Categories: req.Categories})
		if procErr == nil {
			done.Deletion = toDeletionSummary(summary)
		}
	default:
		procErr = errors.New("unsupported request kind " + req.Kind.String())
	}
	if procErr != nil {
		done.To = models.StateFailed
		done.FailureReason = procErr.Error()
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Aborted from outside; no category is at fault.
			done.FailureReason = errInterrupted + ": " + ctxErr.Error()
		} else if ce, ok := categoryrun.AsCategoryError(procErr); ok {
			done.FailedCategory = ce.Category
		}
	}
	return w.finish(ctx, req, done)
}

// finish persists the terminal state. It uses a context detached from
// cancellation so a shutdown mid-request still records the outcome.
func (w *Worker) finish(ctx context.Context, req *models.Request, done models.Transition) error {
	done.At = w.clock()
	final, err := w.store.Transition(context.WithoutCancel(ctx), done)
	if err != nil {
		return err
	}

	action := audit.ActionRequestCompleted
	outcome := audit.OutcomeSuccess
	if final.State == models.StateFailed {
		action = audit.ActionRequestFailed
		outcome = audit.OutcomeFailure
		w.logger.WarnContext(ctx, "privacy request failed",
			"request_id", final.ID,
			"user_id", final.UserID,
			"category", final.FailedCategory,
			"reason", final.FailureReason,
		)
	} else {
		w.logger.InfoContext(ctx, "privacy request completed",
			"request_id", final.ID,
			"user_id", final.UserID,
			"kind", final.Kind,
		)
	}
	if w.auditor != nil {
		if err := w.auditor.Emit(ctx, audit.Event{
			Actor:     audit.ActorWorker,
			Action:    action,
			UserID:    final.UserID,
			Category:  final.FailedCategory,
			RequestID: audit.RequestRef(final.ID),
			Outcome:   outcome,
			Reason:    final.FailureReason,
		}); err != nil {
			w.logger.ErrorContext(ctx, "failed to emit request audit event", "error", err, "request_id", final.ID)
		}
	}
	w.metrics.ObserveRequestFinished(final.Kind.String(), final.State.String(), final.UpdatedAt.Sub(req.CreatedAt))
	return nil
}

// Stop gracefully stops the worker. Nothing new is claimed; in-flight
// requests run to completion unless ctx expires first, in which case they
// are aborted and recorded as interrupted.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.runCancel()
		return nil
	case <-ctx.Done():
		w.runCancel()
		return ctx.Err()
	}
}

const (
	errWorkerLost  = "worker lost: claim lease expired before completion"
	errInterrupted = "processing interrupted"
)

func toDeletionSummary(s deletion.Summary) *models.DeletionSummary {
	out := &models.DeletionSummary{
		Actions:       make(map[string]string, len(s.Actions)),
		Counts:        make(map[string]int, len(s.Counts)),
		ExportsPurged: s.ExportsPurged,
	}
	for category, action := range s.Actions {
		out.Actions[category] = string(action)
	}
	for category, n := range s.Counts {
		out.Counts[category] = n
	}
	return out
}
