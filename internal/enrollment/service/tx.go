package service

import (
	"context"

	id "civicpulse/pkg/domain"
	"civicpulse/pkg/platform/tx"
)

// EnrollmentTx scopes a store mutation to a per-user critical section.
// In memory this is a key-sharded lock; in Postgres a transaction holding a
// per-user advisory lock.
type EnrollmentTx interface {
	RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error
}

type shardedEnrollmentTx struct {
	locker *tx.ShardedLocker
}

// NewShardedTx returns the in-memory EnrollmentTx.
func NewShardedTx(locker *tx.ShardedLocker) EnrollmentTx {
	return &shardedEnrollmentTx{locker: locker}
}

func (t *shardedEnrollmentTx) RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error {
	return t.locker.Run(ctx, userID.String(), fn)
}
