package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civicpulse/pkg/domain"
	audit "civicpulse/pkg/platform/audit"
	"civicpulse/pkg/platform/audit/store/memory"
	"civicpulse/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.UserID("citizen-1")
	event := audit.Event{
		UserID: userID,
		Action: string(audit.EventEnrollmentRegistered),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventEnrollmentRegistered), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_EnrichesFromRequestContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = requestcontext.WithClientIP(ctx, "10.1.2.3")

	require.NoError(t, pub.Emit(ctx, audit.Event{UserID: "citizen-1", Action: string(audit.EventRatingSubmitted)}))

	events, err := store.ListByUser(ctx, "citizen-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, "10.1.2.3", events[0].ClientIP)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	userID := id.UserID("citizen-1")
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			UserID: userID,
			Action: string(audit.EventEnrollmentRevoked),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{UserID: "citizen-1", Action: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

// blockingStore holds every Append until released so the buffer fills up.
type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (s *blockingStore) Append(context.Context, audit.Event) error {
	<-s.release
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func TestPublisher_AsyncDropsWhenFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_dropped_total"})
	pub := NewPublisher(store, WithAsyncBuffer(1), WithDropCounter(dropped))

	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{UserID: "citizen-1", Action: "x"}))
	}

	// One event may be in the worker, one in the buffer; the rest are dropped.
	assert.GreaterOrEqual(t, testutil.ToFloat64(dropped), float64(3))

	close(store.release)
	pub.Close()
}

func TestPublisher_ListUnsupported(t *testing.T) {
	pub := NewPublisher(&blockingStore{release: make(chan struct{})})
	_, err := pub.List(context.Background(), "citizen-1")
	assert.ErrorIs(t, err, ErrListUnsupported)
}
