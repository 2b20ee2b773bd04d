package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test", 24*time.Hour, time.Hour), rdb
}

func storedSession(id string, created time.Time) *Session {
	return &Session{
		ID:           id,
		TokenHash:    HashToken("token-" + id),
		UserID:       "u-1",
		IP:           "198.51.100.7",
		Country:      "US",
		City:         "Austin",
		DeviceType:   "desktop",
		Browser:      "Firefox",
		OS:           "Linux",
		Status:       StatusActive,
		RiskScore:    10,
		CreatedAt:    created,
		LastActivity: created,
		ExpiresAt:    created.Add(time.Hour),
	}
}

func TestCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, storedSession("s1", now)))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "Austin", got.City)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, 10, got.RiskScore)
	assert.Equal(t, now.UnixNano(), got.CreatedAt.UnixNano())
	assert.Empty(t, got.Token)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActiveOrdersOldestFirstAndFilters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, store.Create(ctx, storedSession("s3", base.Add(2*time.Second))))
	require.NoError(t, store.Create(ctx, storedSession("s1", base)))
	require.NoError(t, store.Create(ctx, storedSession("s2", base.Add(time.Second))))

	expired := storedSession("old", base.Add(-3*time.Hour))
	require.NoError(t, store.Create(ctx, expired))

	active, err := store.ListActive(ctx, "u-1", base.Add(3*time.Second))
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "s1", active[0].ID)
	assert.Equal(t, "s2", active[1].ID)
	assert.Equal(t, "s3", active[2].ID)
}

func TestEndIsForwardOnlyAndIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, storedSession("s1", now)))

	changed, err := store.End(ctx, "s1", StatusRevoked, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.End(ctx, "s1", StatusRevoked, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = store.End(ctx, "s1", StatusExpired, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, now.UnixMilli(), got.EndedAt.UnixMilli())

	active, err := store.ListActive(ctx, "u-1", now)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = store.End(ctx, "missing", StatusRevoked, now)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.End(ctx, "s1", StatusActive, now)
	assert.Error(t, err)
}

func TestListActivePrunesStaleIndex(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, storedSession("s1", now)))
	require.NoError(t, rdb.Del(ctx, "test:s:s1").Err())

	active, err := store.ListActive(ctx, "u-1", now)
	require.NoError(t, err)
	assert.Empty(t, active)

	n, err := rdb.ZCard(ctx, "test:u:u-1").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTouch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, storedSession("s1", now)))
	later := now.Add(10 * time.Minute)
	require.NoError(t, store.Touch(ctx, "s1", later))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, later.UnixMilli(), got.LastActivity.UnixMilli())

	assert.ErrorIs(t, store.Touch(ctx, "missing", later), ErrNotFound)
}

func TestCreateCappedEndsOldestBeyondLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		evicted, err := store.CreateCapped(ctx, storedSession(id, base.Add(time.Duration(i)*time.Second)), 3, base)
		require.NoError(t, err)
		assert.Empty(t, evicted)
	}

	evicted, err := store.CreateCapped(ctx, storedSession("d", base.Add(3*time.Second)), 3, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, evicted)

	gone, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, gone.Status)
	require.NotNil(t, gone.EndedAt)
	assert.Equal(t, base.UnixMilli(), gone.EndedAt.UnixMilli())

	added, err := store.Get(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, added.Status)

	active, err := store.ListActive(ctx, "u-1", base)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "b", active[0].ID)
	assert.Equal(t, "d", active[2].ID)
}

func TestCreateCappedIgnoresEndedSessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, store.Create(ctx, storedSession("a", base)))
	_, err := store.End(ctx, "a", StatusExpired, base)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, storedSession("b", base.Add(time.Second))))

	evicted, err := store.CreateCapped(ctx, storedSession("c", base.Add(2*time.Second)), 2, base)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}

func TestCreateCappedHoldsUnderConcurrentLogins(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.CreateCapped(ctx, storedSession(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Millisecond)), 3, base)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	active, err := store.ListActive(ctx, "u-1", base)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}
