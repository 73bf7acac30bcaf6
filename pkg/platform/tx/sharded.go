package tx

import (
	"context"
	"time"

	dErrors "civicpulse/pkg/domain-errors"
)

// numShards spreads keys over independent critical sections. Operations on
// keys that hash to different shards never wait on each other.
const numShards = 128

// DefaultTimeout bounds how long a caller may wait for and hold a shard.
const DefaultTimeout = 5 * time.Second

// ShardedLocker provides key-scoped mutual exclusion for in-memory stores.
// Instead of a single global lock, work is distributed across shards based on
// a hash of the key. Shards are one-slot channels so that waiting for a shard
// honours context cancellation.
type ShardedLocker struct {
	shards  [numShards]chan struct{}
	timeout time.Duration
}

// NewShardedLocker creates a locker. A zero timeout selects DefaultTimeout.
func NewShardedLocker(timeout time.Duration) *ShardedLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	l := &ShardedLocker{timeout: timeout}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

// Run executes fn while holding the shard for key. A context that is already
// done, or that expires while waiting, surfaces as CodeStorageUnavailable.
func (l *ShardedLocker) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	shard := l.shards[shardFor(key)]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeStorageUnavailable, "transaction aborted: lock wait exceeded")
	}
	defer func() { <-shard }()

	return fn(ctx)
}

func shardFor(key string) int {
	return int(hashString(key) % numShards)
}

// hashString uses FNV-1a for better distribution than simple multiply-add.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
