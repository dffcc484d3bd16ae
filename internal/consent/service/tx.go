package service

import (
	"context"
	"time"

	"dsrengine/internal/consent/models"
	dErrors "dsrengine/pkg/domain-errors"
	platformsync "dsrengine/pkg/platform/sync"
)

// TxRunner provides the transactional boundary for consent writes. All work
// for one scope runs serialized with every other write to the same scope.
// Implementations may wrap a database transaction or, in-memory, a sharded lock.
type TxRunner interface {
	RunInTx(ctx context.Context, scope models.Scope, fn func(ctx context.Context, store Store) error) error
}

// defaultConsentTxTimeout is the maximum duration for a consent transaction.
const defaultConsentTxTimeout = 5 * time.Second

type shardedConsentTx struct {
	mu      *platformsync.ShardedMutex
	store   Store
	timeout time.Duration
}

// NewShardedTx serializes writes per (user, purpose) with an in-process lock.
func NewShardedTx(store Store) TxRunner {
	return &shardedConsentTx{mu: platformsync.NewShardedMutex(), store: store}
}

func (t *shardedConsentTx) RunInTx(ctx context.Context, scope models.Scope, fn func(ctx context.Context, store Store) error) error {
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

	key := scope.Key()
	t.mu.Lock(key)
	defer t.mu.Unlock(key)

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.store)
}
