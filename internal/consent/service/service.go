package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"dsrengine/internal/audit"
	"dsrengine/internal/consent/models"
	"dsrengine/internal/platform/metrics"
	"dsrengine/internal/registry"
	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// Store defines the persistence interface for the consent ledger.
// Error Contract:
// - Latest and Preferences return sentinel.ErrNotFound when nothing exists
// - Append returns sentinel.ErrConflict when the version is already taken
type Store interface {
	Latest(ctx context.Context, scope models.Scope) (*models.Record, error)
	Append(ctx context.Context, record models.Record) error
	ListPage(ctx context.Context, scope models.Scope, afterVersion int64, limit int) ([]models.Record, error)
	SetPreference(ctx context.Context, userID id.UserID, purpose string, granted bool, at time.Time) error
	Preferences(ctx context.Context, userID id.UserID) (*models.Preferences, error)
}

// SnapshotSource yields the registry snapshot purposes are checked against.
type SnapshotSource interface {
	Current() *registry.Snapshot
}

type Option func(*Service)

const defaultHistoryPageSize = 100

// Service records and answers per-purpose consent decisions.
type Service struct {
	store    Store
	tx       TxRunner
	registry SnapshotSource
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    func() time.Time
	pageSize int
}

func New(store Store, registry SnapshotSource, auditor *audit.Publisher, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		registry: registry,
		auditor:  auditor,
		logger:   slog.Default(),
		clock:    time.Now,
		pageSize: defaultHistoryPageSize,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.tx == nil {
		svc.tx = NewShardedTx(store)
	}
	if svc.pageSize <= 0 {
		svc.pageSize = defaultHistoryPageSize
	}
	return svc
}

// WithMetrics sets the metrics instance for the service
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

// WithTx replaces the in-memory sharded lock, e.g. with a Postgres
// advisory-lock transaction.
func WithTx(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func WithHistoryPageSize(n int) Option {
	return func(s *Service) {
		s.pageSize = n
	}
}

// RecordConsent appends a new version when granted differs from the current
// value. Re-recording the current value appends nothing and reports
// Changed=false with the existing version; it is still audited.
func (s *Service) RecordConsent(ctx context.Context, userID id.UserID, purpose string, granted bool) (*models.RecordResult, error) {
	scope, err := s.scope(userID, purpose)
	if err != nil {
		return nil, err
	}

	var result models.RecordResult
	err = s.tx.RunInTx(ctx, scope, func(ctx context.Context, store Store) error {
		latest, err := store.Latest(ctx, scope)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
		}
		if latest != nil && latest.Granted == granted {
			result = models.RecordResult{Changed: false, Version: latest.Version, Record: *latest}
			return nil
		}

		next := int64(1)
		if latest != nil {
			next = latest.Version + 1
		}
		record, err := models.NewRecord(userID, purpose, granted, next, s.clock())
		if err != nil {
			return err
		}
		if err := store.Append(ctx, *record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent consent update")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append consent")
		}
		if err := store.SetPreference(ctx, userID, purpose, granted, record.Timestamp); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update preferences")
		}
		result = models.RecordResult{Changed: true, Version: record.Version, Record: *record}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := audit.ActionConsentRecorded
	if !result.Changed {
		action = audit.ActionConsentUnchanged
	}
	s.emitAudit(ctx, audit.Event{
		Actor:   userID.String(),
		Action:  action,
		UserID:  userID,
		Purpose: purpose,
		Reason:  grantedReason(granted),
	})
	s.metrics.IncConsentRecorded(purpose, result.Changed)
	s.logger.InfoContext(ctx, "consent recorded",
		"user_id", userID,
		"purpose", purpose,
		"version", result.Version,
		"changed", result.Changed,
	)
	return &result, nil
}

// CurrentConsent reports the latest decision. Absence of a record is never
// treated as consent.
func (s *Service) CurrentConsent(ctx context.Context, userID id.UserID, purpose string) (bool, error) {
	scope, err := s.scope(userID, purpose)
	if err != nil {
		return false, err
	}
	latest, err := s.store.Latest(ctx, scope)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	return latest.Granted, nil
}

// History lazily pages through every version ascending. Each range over the
// returned sequence starts again from version 1.
func (s *Service) History(ctx context.Context, userID id.UserID, purpose string) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		scope, err := s.scope(userID, purpose)
		if err != nil {
			yield(models.Record{}, err)
			return
		}
		var after int64
		for {
			page, err := s.store.ListPage(ctx, scope, after, s.pageSize)
			if err != nil {
				yield(models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent history"))
				return
			}
			for _, record := range page {
				if !yield(record, nil) {
					return
				}
				after = record.Version
			}
			if len(page) < s.pageSize {
				return
			}
		}
	}
}

// Preferences returns the derived purpose view. Users with no decisions get
// an empty map.
func (s *Service) Preferences(ctx context.Context, userID id.UserID) (*models.Preferences, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	prefs, err := s.store.Preferences(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Preferences{UserID: userID, Purposes: map[string]bool{}}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read preferences")
	}
	return prefs, nil
}

func (s *Service) scope(userID id.UserID, purpose string) (models.Scope, error) {
	if userID.IsNil() {
		return models.Scope{}, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	if _, ok := s.registry.Current().Purpose(purpose); !ok {
		return models.Scope{}, dErrors.New(dErrors.CodeValidation, "undeclared purpose: "+purpose)
	}
	return models.Scope{UserID: userID, Purpose: purpose}, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit consent audit event",
			"error", err,
			"user_id", event.UserID,
			"purpose", event.Purpose,
		)
	}
}

func grantedReason(granted bool) string {
	if granted {
		return "granted"
	}
	return "revoked"
}
