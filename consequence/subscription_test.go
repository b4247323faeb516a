package consequence_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/generic/store"
)

// recorder collects every snapshot a subscription delivers.
type recorder struct {
	mu        sync.Mutex
	snapshots [][]generic.Transaction
}

func (r *recorder) fn(txs []generic.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, txs)
}

func (r *recorder) last() []generic.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func TestSubscription_InitialSnapshotBeforeReturn(t *testing.T) {
	// GIVEN: A profile with one penalty already in the log
	// WHEN: Subscribing
	// THEN: The snapshot arrives before Subscribe returns

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Append(ctx, apply("trust", 30, consequence.Friday, at(friday14(), 9))))

	rec := &recorder{}
	sub, err := consequence.Subscribe(ctx, mem, "kid-1", rec.fn)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, 1, rec.count())
	assert.Len(t, rec.last(), 1)
	assert.Equal(t, 1, sub.Deliveries())
}

func TestSubscription_FullSnapshotAfterEachAppend(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	rec := &recorder{}
	sub, err := consequence.Subscribe(ctx, mem, "kid-1", rec.fn)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, mem.Append(ctx, apply("rules", 15, consequence.Monday, at(friday14(), 9))))
	require.NoError(t, mem.Append(ctx, reverse("rules", 15, at(friday14(), 10))))

	assert.Equal(t, 3, rec.count())
	assert.Len(t, rec.last(), 2, "each delivery replaces, never appends a delta")
}

func TestSubscription_IgnoresOtherProfiles(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	rec := &recorder{}
	sub, err := consequence.Subscribe(ctx, mem, "kid-1", rec.fn)
	require.NoError(t, err)
	defer sub.Close()

	other := apply("trust", 30, consequence.Friday, at(friday14(), 9))
	other.ProfileID = "kid-2"
	require.NoError(t, mem.Append(ctx, other))

	assert.Equal(t, 1, rec.count(), "no delivery for another profile's change")
}

func TestSubscription_NoDeliveryAfterClose(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	rec := &recorder{}
	sub, err := consequence.Subscribe(ctx, mem, "kid-1", rec.fn)
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	require.NoError(t, mem.Append(ctx, apply("trust", 30, consequence.Friday, at(friday14(), 9))))

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 0, mem.Subscribers())
}

func TestSubscription_ClosedStore(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.Close())

	_, err := consequence.Subscribe(context.Background(), mem, "kid-1", func([]generic.Transaction) {})
	assert.ErrorIs(t, err, generic.ErrStoreClosed)
}
