package service

import (
	"context"

	id "civicpulse/pkg/domain"
	"civicpulse/pkg/platform/tx"
)

// RatingTx serializes submissions for one user.
type RatingTx interface {
	RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error
}

type shardedRatingTx struct {
	locker *tx.ShardedLocker
}

// NewShardedTx returns the in-memory RatingTx.
func NewShardedTx(locker *tx.ShardedLocker) RatingTx {
	return &shardedRatingTx{locker: locker}
}

func (t *shardedRatingTx) RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error {
	return t.locker.Run(ctx, userID.String(), fn)
}
