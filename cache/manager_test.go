package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, contract.KeyValueStore, contract.KeyValueStore) {
	t.Helper()
	hot := kvstore.NewMemoryStore()
	warm := kvstore.NewMemoryStore()
	m := NewManager(hot, warm, opts...)
	t.Cleanup(func() {
		_ = m.Close()
		_ = hot.Close()
		_ = warm.Close()
	})
	return m, hot, warm
}

func defaultOpts() GetOptions {
	return GetOptions{HotTTL: time.Minute, WarmTTL: 10 * time.Minute}
}

func fetchConst(calls *atomic.Int64, v any) FetchFunc {
	return func(_ context.Context) (any, error) {
		calls.Add(1)
		return v, nil
	}
}

func TestGetMissPopulatesBothTiers(t *testing.T) {
	ctx := context.Background()
	m, hot, warm := newTestManager(t)

	var calls atomic.Int64
	value, err := m.Get(ctx, "users:1", fetchConst(&calls, map[string]int{"id": 1}), defaultOpts())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(value))
	assert.Equal(t, int64(1), calls.Load())

	hotValue, ok, err := hot.Get(ctx, "users:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":1}`, string(hotValue))

	warmValue, ok, err := warm.Get(ctx, "users:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":1}`, string(warmValue))
}

func TestGetHotHitSkipsFetch(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	var calls atomic.Int64
	fetch := fetchConst(&calls, "v")

	_, err := m.Get(ctx, "k", fetch, defaultOpts())
	require.NoError(t, err)
	_, err = m.Get(ctx, "k", fetch, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load(), "hot hit must not refetch")
}

func TestGetWarmHitPromotesToHot(t *testing.T) {
	ctx := context.Background()
	m, hot, warm := newTestManager(t)

	require.NoError(t, warm.Set(ctx, "k", []byte(`"warm"`), time.Minute))

	var calls atomic.Int64
	value, err := m.Get(ctx, "k", fetchConst(&calls, "fresh"), defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, `"warm"`, string(value))
	assert.Equal(t, int64(0), calls.Load(), "warm hit must not refetch")

	hotValue, ok, err := hot.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "warm hit should be promoted into the hot tier")
	assert.Equal(t, `"warm"`, string(hotValue))
}

func TestGetFetchErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	boom := errors.New("origin down")
	_, err := m.Get(ctx, "k", func(_ context.Context) (any, error) {
		return nil, boom
	}, defaultOpts())
	assert.ErrorIs(t, err, boom)
}

func TestGetRawBytesStoredVerbatim(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	var calls atomic.Int64
	value, err := m.Get(ctx, "k", fetchConst(&calls, json.RawMessage(`{"a":1}`)), defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(value))
}

func TestTypedGetDecodes(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	type row struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	got, err := Get(ctx, m, "rows:7", func(_ context.Context) (row, error) {
		return row{ID: 7, Name: "seven"}, nil
	}, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, row{ID: 7, Name: "seven"}, got)

	// Second read decodes the cached payload identically.
	again, err := Get(ctx, m, "rows:7", func(_ context.Context) (row, error) {
		return row{}, errors.New("must not be called")
	}, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	m, hot, warm := newTestManager(t)

	for _, key := range []string{"users:1", "users:2", "orders:1"} {
		require.NoError(t, hot.Set(ctx, key, []byte("h"), time.Minute))
		require.NoError(t, warm.Set(ctx, key, []byte("w"), time.Minute))
	}

	require.NoError(t, m.Invalidate(ctx, "users:*", InvalidateOptions{}))

	for _, store := range []contract.KeyValueStore{hot, warm} {
		keys, err := store.Keys(ctx, "*")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"orders:1"}, keys)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Invalidate(ctx, "nothing:*", InvalidateOptions{}))
	require.NoError(t, m.Invalidate(ctx, "nothing:*", InvalidateOptions{}))
}

func TestInvalidateCascade(t *testing.T) {
	ctx := context.Background()
	graph, err := NewGraph([]Edge{
		{Source: "users:*", Dependents: []string{"users:list", "reports:*"}},
		{Source: "reports:*", Dependents: []string{"dashboard:summary"}},
	})
	require.NoError(t, err)
	m, hot, _ := newTestManager(t, WithCascadeGraph(graph))

	seed := []string{"users:42", "users:list", "reports:daily", "dashboard:summary", "orders:1"}
	for _, key := range seed {
		require.NoError(t, hot.Set(ctx, key, []byte("v"), time.Minute))
	}

	require.NoError(t, m.Invalidate(ctx, "users:42", InvalidateOptions{Cascade: true}))

	keys, err := hot.Keys(ctx, "*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orders:1"}, keys, "cascade should follow the chain transitively")
}

func TestInvalidateWithoutCascadeLeavesDependents(t *testing.T) {
	ctx := context.Background()
	graph, err := NewGraph([]Edge{
		{Source: "users:*", Dependents: []string{"users:list"}},
	})
	require.NoError(t, err)
	m, hot, _ := newTestManager(t, WithCascadeGraph(graph))

	require.NoError(t, hot.Set(ctx, "users:42", []byte("v"), time.Minute))
	require.NoError(t, hot.Set(ctx, "users:list", []byte("v"), time.Minute))

	require.NoError(t, m.Invalidate(ctx, "users:42", InvalidateOptions{}))

	keys, err := hot.Keys(ctx, "*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users:list"}, keys)
}

func TestWarmPopulatesWarmTier(t *testing.T) {
	ctx := context.Background()
	m, hot, warm := newTestManager(t, WithWarmConcurrency(2))

	var calls atomic.Int64
	entries := []WarmEntry{
		{Key: "popular:1", Fetch: fetchConst(&calls, "one"), TTL: time.Minute},
		{Key: "popular:2", Fetch: fetchConst(&calls, "two"), TTL: time.Minute},
		{Key: "popular:3", Fetch: func(_ context.Context) (any, error) {
			return nil, errors.New("flaky origin")
		}, TTL: time.Minute},
	}

	m.Warm(ctx, entries)

	assert.Equal(t, int64(2), calls.Load())
	for _, key := range []string{"popular:1", "popular:2"} {
		_, ok, err := warm.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		_, ok, err = hot.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "warming only fills the warm tier")
	}

	// The failed entry is skipped, not fatal.
	_, ok, err := warm.Get(ctx, "popular:3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshAheadUpdatesValue(t *testing.T) {
	ctx := context.Background()
	// Freshness above the hot TTL so any hot hit triggers refresh-ahead.
	m, hot, _ := newTestManager(t, WithFreshness(time.Hour))

	require.NoError(t, hot.Set(ctx, "k", []byte(`"stale"`), time.Minute))

	var calls atomic.Int64
	value, err := m.Get(ctx, "k", fetchConst(&calls, "fresh"), defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, `"stale"`, string(value), "the caller still gets the current value")

	require.NoError(t, m.Close())
	assert.Equal(t, int64(1), calls.Load())

	refreshed, ok, err := hot.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"fresh"`, string(refreshed))
}

func TestRefreshAheadCoalesces(t *testing.T) {
	ctx := context.Background()
	m, hot, _ := newTestManager(t, WithFreshness(time.Hour))

	require.NoError(t, hot.Set(ctx, "k", []byte(`"stale"`), time.Minute))

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(_ context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "fresh", nil
	}

	// Two hot hits while the first refresh is still in flight.
	_, err := m.Get(ctx, "k", fetch, defaultOpts())
	require.NoError(t, err)
	_, err = m.Get(ctx, "k", fetch, defaultOpts())
	require.NoError(t, err)

	close(release)
	require.NoError(t, m.Close())
	assert.Equal(t, int64(1), calls.Load(), "overlapping refresh triggers must coalesce")
}

func TestCloseStopsNewRefreshes(t *testing.T) {
	ctx := context.Background()
	m, hot, _ := newTestManager(t, WithFreshness(time.Hour))

	require.NoError(t, hot.Set(ctx, "k", []byte(`"stale"`), time.Minute))
	require.NoError(t, m.Close())

	var calls atomic.Int64
	_, err := m.Get(ctx, "k", fetchConst(&calls, "fresh"), defaultOpts())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), calls.Load())
}
