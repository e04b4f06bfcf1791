package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/wizards/pkg/adapters/redis"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSnapshotStoreContract(t, redis.NewFromClient(client))
}

func TestRedisPreferences_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunPreferenceStoreContract(t, redis.NewPreferenceStore(client, ""))
}

func TestRedisPreferences_Corrupt(t *testing.T) {
	mr, client := newClient(t)
	mr.HSet("wizards:prefs", domain.KeySkipStartingMessage, "maybe")

	prefs := redis.NewPreferenceStore(client, "")
	_, err := prefs.GetBool(context.Background(), domain.KeySkipStartingMessage, false)
	assert.Error(t, err)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	id := "drawer-ttl"
	state := domain.Initial(domain.Query{Metric: "up"}, true)

	require.NoError(t, store.Save(ctx, id, &state))

	ids, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, ids, id)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The index is pruned by wall clock, not by miniredis time.
	time.Sleep(2100 * time.Millisecond)

	ids, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()
	state := domain.Initial(domain.Query{}, true)

	require.NoError(t, store.Save(ctx, "my-drawer", &state))

	assert.True(t, mr.Exists("custom:app:my-drawer"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	ids, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, ids, "my-drawer")
}

func TestRedisLocker(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "d1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("wizards:lock:d1"))

	// A second holder times out while the lock is held.
	short, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "d1", 10*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("wizards:lock:d1"))

	unlock2, err := locker.Lock(ctx, "d1", 10*time.Second)
	require.NoError(t, err)

	// A stale unlock must not release someone else's lock.
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("wizards:lock:d1"))
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_Expires(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	_, err := locker.Lock(ctx, "d2", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(ctx, "d2", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}
