package snapstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/goalrun/internal/blackboard"
)

// setupTestStore creates a store connected to a miniredis instance
func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := New(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestNew(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		store, _ := setupTestStore(t)
		assert.NotNil(t, store)
		assert.NoError(t, store.Ping(context.Background()))
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := New(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestSaveAndLatest(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	bb := blackboard.New()
	bb.Set("topic", "quarterly report")
	require.NoError(t, bb.SetProtected("config", "prod"))

	rec := Record{
		RunID:    "run-1",
		Agent:    "researcher",
		Status:   "WAITING",
		TakenAt:  time.Now().UTC().Truncate(time.Second),
		Snapshot: bb.Snapshot(),
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "WAITING", got.Status)
	assert.Equal(t, "quarterly report", got.Snapshot.Bindings["topic"])
	assert.Equal(t, "prod", got.Snapshot.Protected["config"])
}

func TestSaveOverwrites(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first := Record{RunID: "run-1", Status: "RUNNING", Snapshot: blackboard.New().Snapshot()}
	require.NoError(t, store.Save(ctx, first))

	second := first
	second.Status = "COMPLETED"
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", got.Status)

	ids, err := store.RunIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}

func TestLatestNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Latest(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestSaveRejectsEmptyRunID(t *testing.T) {
	store, _ := setupTestStore(t)
	err := store.Save(context.Background(), Record{})
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	rec := Record{RunID: "run-1", Status: "KILLED", Snapshot: blackboard.New().Snapshot()}
	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Delete(ctx, "run-1"))

	_, err := store.Latest(ctx, "run-1")
	assert.True(t, IsNotFound(err))
	ids, err := store.RunIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSavePublishesEvent(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { sub.Close() })
	ps := sub.Subscribe(ctx, store.EventsChannel())
	t.Cleanup(func() { ps.Close() })
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	rec := Record{RunID: "run-1", Status: "RUNNING", Snapshot: blackboard.New().Snapshot()}
	require.NoError(t, store.Save(ctx, rec))

	select {
	case msg := <-ps.Channel():
		assert.Contains(t, msg.Payload, `"run_id":"run-1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot event received")
	}
}
