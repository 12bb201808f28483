package lookupguard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newGuard(t *testing.T, store Store, clock *manualClock) *Guard {
	t.Helper()
	g, err := New(Params{
		Store: store,
		Config: config.LookupGuardConfig{
			Window:        time.Minute,
			DistinctLimit: 10,
			BlockDuration: 5 * time.Minute,
		},
		Now: clock.Now,
	})
	require.NoError(t, err)
	return g
}

func number(i int) string {
	return fmt.Sprintf("10000000000%02d", i)
}

func TestEleventhDistinctNumberBlocks(t *testing.T) {
	clock := &manualClock{now: baseTime}
	g := newGuard(t, NewMemoryStore(), clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := g.Allow(ctx, "1.2.3.4", number(i))
		require.NoError(t, err)
		require.True(t, d.Allowed, "lookup %d", i)
		clock.Advance(time.Second)
	}

	d, err := g.Allow(ctx, "1.2.3.4", number(10))
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 5*time.Minute, d.RetryAfter)
	require.Equal(t, 300, d.RetryAfterSeconds())

	clock.Advance(90 * time.Second)
	d, err = g.Allow(ctx, "1.2.3.4", number(0))
	require.NoError(t, err)
	require.False(t, d.Allowed, "even known numbers are refused while blocked")
	require.Equal(t, 210, d.RetryAfterSeconds())

	other, err := g.Allow(ctx, "5.6.7.8", number(0))
	require.NoError(t, err)
	require.True(t, other.Allowed, "blocks are per source")

	clock.Advance(211 * time.Second)
	d, err = g.Allow(ctx, "1.2.3.4", number(11))
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestRepeatedNumberDoesNotCount(t *testing.T) {
	clock := &manualClock{now: baseTime}
	g := newGuard(t, NewMemoryStore(), clock)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		d, err := g.Allow(ctx, "1.2.3.4", number(1))
		require.NoError(t, err)
		require.True(t, d.Allowed)
		clock.Advance(2 * time.Second)
	}
	for i := 2; i <= 10; i++ {
		d, err := g.Allow(ctx, "1.2.3.4", number(i))
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
}

func TestWindowSlides(t *testing.T) {
	clock := &manualClock{now: baseTime}
	g := newGuard(t, NewMemoryStore(), clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := g.Allow(ctx, "1.2.3.4", number(i))
		require.NoError(t, err)
	}
	clock.Advance(61 * time.Second)

	for i := 10; i < 20; i++ {
		d, err := g.Allow(ctx, "1.2.3.4", number(i))
		require.NoError(t, err)
		require.True(t, d.Allowed, "old numbers fell out of the window")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", Record{Seen: map[string]time.Time{"1": baseTime}}, baseTime, time.Minute))
	require.NoError(t, store.Put(ctx, "b", Record{Seen: map[string]time.Time{"1": baseTime}}, baseTime, time.Hour))

	removed, err := store.Sweep(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, store.Len())

	rec, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Nil(t, rec)
}

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func TestGuardSweepUsesInjectedClock(t *testing.T) {
	store := NewMemoryStore()
	clock := &manualClock{now: baseTime}
	g := newGuard(t, store, clock)
	ctx := context.Background()

	d, err := g.Allow(ctx, "1.2.3.4", number(1))
	require.NoError(t, err)
	require.True(t, d.Allowed)

	removed, err := g.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, removed, "record is still inside its window")
	require.Equal(t, 1, store.Len())

	clock.Advance(time.Minute)
	removed, err = g.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Zero(t, store.Len())
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) LookupGuardKey(source string) string {
	return "giftvouchers:lookup_guard:" + source
}

func TestRedisStoreRoundTripAndBlock(t *testing.T) {
	kv := newFakeKV()
	store := &RedisStore{kv: kv}
	clock := &manualClock{now: baseTime}
	g := newGuard(t, store, clock)
	ctx := context.Background()

	missing, err := store.Get(ctx, "9.9.9.9")
	require.NoError(t, err)
	require.Nil(t, missing)

	for i := 0; i < 10; i++ {
		d, err := g.Allow(ctx, "9.9.9.9", number(i))
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	require.Equal(t, time.Minute, kv.ttls["giftvouchers:lookup_guard:9.9.9.9"])

	d, err := g.Allow(ctx, "9.9.9.9", number(10))
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 5*time.Minute, kv.ttls["giftvouchers:lookup_guard:9.9.9.9"])

	rec, err := store.Get(ctx, "9.9.9.9")
	require.NoError(t, err)
	require.True(t, rec.BlockedUntil.Equal(baseTime.Add(5*time.Minute)))

	removed, err := g.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}
