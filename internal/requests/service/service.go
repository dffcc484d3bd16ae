package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dsrengine/internal/audit"
	"dsrengine/internal/export"
	"dsrengine/internal/identity"
	"dsrengine/internal/platform/metrics"
	"dsrengine/internal/registry"
	"dsrengine/internal/requests/models"
	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/platform/sentinel"
	platformsync "dsrengine/pkg/platform/sync"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Notifier

// Store defines the persistence interface for privacy requests.
// Error Contract:
// - Get and FindActive return sentinel.ErrNotFound when nothing matches
// - Create returns sentinel.ErrConflict when a non-terminal request of the
//   same (user, kind) already exists
// - Transition returns sentinel.ErrConflict when the stored state is not
//   t.From, and sentinel.ErrInvalidState for disallowed transitions
type Store interface {
	Create(ctx context.Context, r *models.Request) error
	Get(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	FindActive(ctx context.Context, userID id.UserID, kind models.Kind) (*models.Request, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Request, error)
	ListPending(ctx context.Context, limit int) ([]id.RequestID, error)
	Transition(ctx context.Context, t models.Transition) (*models.Request, error)
}

// Notifier is told about newly created requests. The worker implements it.
type Notifier interface {
	Enqueue(requestID id.RequestID)
}

// SnapshotSource yields the registry snapshot categories are validated against.
type SnapshotSource interface {
	Current() *registry.Snapshot
}

const DefaultIdentityFreshness = 15 * time.Minute

// Service is the request orchestrator: it admits, deduplicates, cancels and
// reports on data-subject requests. Processing happens in the worker.
type Service struct {
	store     Store
	verifier  identity.Verifier
	registry  SnapshotSource
	exports   export.Store
	auditor   *audit.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     func() time.Time
	freshness time.Duration
	locks     *platformsync.ShardedMutex
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithIdentityFreshness sets how old a verification may be when a request is created.
func WithIdentityFreshness(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithNotifier wires the worker queue. Without it, requests are only found by polling.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithExports enables resolving download tokens.
func WithExports(exports export.Store) Option {
	return func(s *Service) {
		s.exports = exports
	}
}

func New(store Store, verifier identity.Verifier, registry SnapshotSource, auditor *audit.Publisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		verifier:  verifier,
		registry:  registry,
		auditor:   auditor,
		logger:    slog.Default(),
		clock:     time.Now,
		freshness: DefaultIdentityFreshness,
		locks:     platformsync.NewShardedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest admits a request after identity and category checks. While
// the user has a non-terminal request of the same kind, that request is
// returned with Created=false instead of creating another.
func (s *Service) CreateRequest(ctx context.Context, userID id.UserID, kind models.Kind, categories []string) (*models.CreateResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "kind must be ACCESS or DELETION")
	}
	if err := s.verifyIdentity(ctx, userID); err != nil {
		return nil, err
	}
	categories = models.NormalizeCategories(categories)
	if _, err := s.registry.Current().Resolve(categories); err != nil {
		return nil, err
	}

	key := platformsync.Key(userID.String(), kind.String())
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	existing, err := s.findActive(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.deduplicated(ctx, existing), nil
	}

	req, err := models.NewRequest(id.NewRequestID(), userID, kind, categories, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, req); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
		}
		// Another instance won the race; the unique index picked its request.
		existing, err := s.findActive(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, dErrors.New(dErrors.CodeConflict, "concurrent request creation")
		}
		return s.deduplicated(ctx, existing), nil
	}

	s.emitAudit(ctx, audit.Event{
		Actor:     userID.String(),
		Action:    audit.ActionRequestCreated,
		UserID:    userID,
		RequestID: audit.RequestRef(req.ID),
		Reason:    kind.String(),
	})
	s.metrics.IncRequestCreated(kind.String())
	s.logger.InfoContext(ctx, "privacy request created",
		"request_id", req.ID,
		"user_id", userID,
		"kind", kind,
		"categories", len(req.Categories),
	)
	if s.notifier != nil {
		s.notifier.Enqueue(req.ID)
	}
	return &models.CreateResult{Request: req, Created: true}, nil
}

func (s *Service) GetStatus(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	return req, nil
}

// Cancel moves a PENDING request to CANCELLED. Any other state, including a
// request already cancelled, is an invalid transition.
func (s *Service) Cancel(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	req, err := s.store.Transition(ctx, models.Transition{
		ID:   requestID,
		From: models.StatePending,
		To:   models.StateCancelled,
		At:   s.clock(),
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		case errors.Is(err, sentinel.ErrConflict):
			current, getErr := s.GetStatus(ctx, requestID)
			if getErr != nil {
				return nil, getErr
			}
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "request is "+current.State.String()+", only PENDING requests can be cancelled")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel request")
		}
	}

	s.emitAudit(ctx, audit.Event{
		Actor:     req.UserID.String(),
		Action:    audit.ActionRequestCancelled,
		UserID:    req.UserID,
		RequestID: audit.RequestRef(req.ID),
	})
	s.metrics.ObserveRequestFinished(req.Kind.String(), req.State.String(), req.UpdatedAt.Sub(req.CreatedAt))
	s.logger.InfoContext(ctx, "privacy request cancelled",
		"request_id", req.ID,
		"user_id", req.UserID,
	)
	return req, nil
}

// Export returns the download handle of a completed ACCESS request.
func (s *Service) Export(ctx context.Context, requestID id.RequestID) (*models.DownloadHandle, error) {
	req, err := s.GetStatus(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch req.Kind {
	case models.KindAccess:
	case models.KindDeletion:
		return nil, dErrors.New(dErrors.CodeBadRequest, "deletion requests have no export")
	}
	if req.State != models.StateCompleted {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "export is available once the request is COMPLETED, it is "+req.State.String())
	}
	if req.Download == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "completed access request has no download handle")
	}
	if !s.clock().Before(req.Download.ExpiresAt) {
		return nil, dErrors.New(dErrors.CodeExpired, "download handle expired")
	}
	return req.Download, nil
}

// ResolveDownload turns a download token into the export bytes or a direct URL.
func (s *Service) ResolveDownload(ctx context.Context, token string) (export.Download, error) {
	if s.exports == nil {
		return export.Download{}, dErrors.New(dErrors.CodeNotFound, "export not found")
	}
	dl, err := s.exports.Resolve(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return export.Download{}, dErrors.New(dErrors.CodeNotFound, "export not found")
		case errors.Is(err, sentinel.ErrExpired):
			return export.Download{}, dErrors.New(dErrors.CodeExpired, "download handle expired")
		default:
			return export.Download{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve export")
		}
	}
	return dl, nil
}

// ListForUser returns the user's requests, newest first.
func (s *Service) ListForUser(ctx context.Context, userID id.UserID) ([]*models.Request, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	reqs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return reqs, nil
}

func (s *Service) verifyIdentity(ctx context.Context, userID id.UserID) error {
	ident, err := s.verifier.Verify(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		case errors.Is(err, sentinel.ErrUnavailable):
			return dErrors.Wrap(err, dErrors.CodeTransientFailure, "identity service unavailable")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify identity")
		}
	}
	if !ident.Verified {
		return dErrors.New(dErrors.CodeIdentityUnverified, "identity not verified")
	}
	if !ident.FreshAt(s.clock(), s.freshness) {
		return dErrors.New(dErrors.CodeIdentityUnverified, "identity verification is older than "+s.freshness.String())
	}
	return nil
}

func (s *Service) findActive(ctx context.Context, userID id.UserID, kind models.Kind) (*models.Request, error) {
	existing, err := s.store.FindActive(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up active request")
	}
	return existing, nil
}

func (s *Service) deduplicated(ctx context.Context, existing *models.Request) *models.CreateResult {
	s.emitAudit(ctx, audit.Event{
		Actor:     existing.UserID.String(),
		Action:    audit.ActionRequestDeduplicated,
		UserID:    existing.UserID,
		RequestID: audit.RequestRef(existing.ID),
		Reason:    existing.Kind.String(),
	})
	s.metrics.IncRequestDeduplicated(existing.Kind.String())
	s.logger.InfoContext(ctx, "privacy request deduplicated",
		"request_id", existing.ID,
		"user_id", existing.UserID,
		"kind", existing.Kind,
	)
	return &models.CreateResult{Request: existing, Created: false}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit request audit event",
			"error", err,
			"user_id", event.UserID,
			"action", event.Action,
		)
	}
}
