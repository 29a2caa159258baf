package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espalier-ai/espalier/pkg/domain"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFromClient(client, opts...), mr
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tracker := domain.NewTracker("alice", nil)
	tracker.Apply(
		domain.NewLoopActivated("book_restaurant"),
		domain.NewSlotSet("cuisine", "italian"),
	)
	require.NoError(t, store.Save(ctx, "alice", tracker))

	loaded, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.SenderID)
	assert.True(t, loaded.ActiveLoopIs("book_restaurant"))
	value, _ := loaded.Slot("cuisine")
	assert.Equal(t, "italian", value)
	assert.Len(t, loaded.Events, 2, "the event log survives persistence")
}

func TestStoreMissingSession(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", domain.NewTracker("alice", nil)))
	require.NoError(t, store.Delete(ctx, "alice"))
	_, err := store.Load(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStoreTTL(t *testing.T) {
	store, mr := newTestStore(t, WithTTL(time.Minute), WithPrefix("conv:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", domain.NewTracker("alice", nil)))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
