package app

import (
	"context"
	"database/sql"
	"time"

	"dsrengine/internal/consent/models"
	consentservice "dsrengine/internal/consent/service"
	consentstore "dsrengine/internal/consent/store"
	dErrors "dsrengine/pkg/domain-errors"
)

const defaultConsentTxTimeout = 5 * time.Second

// consentPostgresTx serializes consent writes per (user, purpose) with a
// transaction-scoped advisory lock, so it holds across server replicas.
type consentPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newConsentPostgresTx(db *sql.DB) *consentPostgresTx {
	return &consentPostgresTx{db: db}
}

func (t *consentPostgresTx) RunInTx(ctx context.Context, scope models.Scope, fn func(ctx context.Context, store consentservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultConsentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin consent transaction")
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	store := consentstore.NewPostgresTx(tx)
	if err := store.LockScope(ctx, scope); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "lock consent scope")
	}
	if err := fn(ctx, store); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit consent transaction")
	}
	return nil
}
