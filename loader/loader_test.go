package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoBatch resolves every key to its own bytes and counts invocations.
func echoBatch(calls *atomic.Int64, seen *[][]string, mu *sync.Mutex) BatchFunc {
	return func(_ context.Context, keys []string) []Result {
		calls.Add(1)
		if seen != nil {
			mu.Lock()
			*seen = append(*seen, append([]string(nil), keys...))
			mu.Unlock()
		}
		results := make([]Result, len(keys))
		for i, k := range keys {
			results[i] = Result{Value: []byte(k)}
		}
		return results
	}
}

func TestLoadSingleKey(t *testing.T) {
	var calls atomic.Int64
	l := New(echoBatch(&calls, nil, nil), Options{})

	value, err := l.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), value)
	assert.Equal(t, int64(1), calls.Load())
}

func TestConcurrentLoadsShareOneBatch(t *testing.T) {
	var calls atomic.Int64
	var seen [][]string
	var mu sync.Mutex
	l := New(echoBatch(&calls, &seen, &mu), Options{Wait: 20 * time.Millisecond})

	const n = 8
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := l.Load(context.Background(), fmt.Sprintf("k%d", i))
			assert.NoError(t, err)
			assert.Equal(t, []byte(fmt.Sprintf("k%d", i)), value)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "all loads in the window should coalesce")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Len(t, seen[0], n)
}

func TestLoadManyPreservesOrder(t *testing.T) {
	var calls atomic.Int64
	l := New(echoBatch(&calls, nil, nil), Options{})

	results, err := l.LoadMany(context.Background(), []string{"c", "a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []byte("c"), results[0].Value)
	assert.Equal(t, []byte("a"), results[1].Value)
	assert.Equal(t, []byte("b"), results[2].Value)
}

func TestPerKeyErrorsAreIsolated(t *testing.T) {
	boom := errors.New("row corrupted")
	fn := func(_ context.Context, keys []string) []Result {
		results := make([]Result, len(keys))
		for i, k := range keys {
			switch k {
			case "bad":
				results[i] = Result{Err: boom}
			case "missing":
				results[i] = Result{Err: ErrNotFound}
			default:
				results[i] = Result{Value: []byte(k)}
			}
		}
		return results
	}
	l := New(fn, Options{})

	results, err := l.LoadMany(context.Background(), []string{"good", "bad", "missing"})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, []byte("good"), results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.ErrorIs(t, results[2].Err, ErrNotFound)
}

func TestMemoization(t *testing.T) {
	var calls atomic.Int64
	var seen [][]string
	var mu sync.Mutex
	l := New(echoBatch(&calls, &seen, &mu), Options{})

	first, err := l.Load(context.Background(), "k")
	require.NoError(t, err)
	second, err := l.Load(context.Background(), "k")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load(), "repeated load must not refetch")

	// A duplicate inside one LoadMany call is also deduplicated.
	results, err := l.LoadMany(context.Background(), []string{"k", "k", "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), results[0].Value)
	assert.Equal(t, []byte("k"), results[1].Value)
	assert.Equal(t, []byte("x"), results[2].Value)
	assert.Equal(t, int64(2), calls.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, []string{"x"}, seen[1], "memoized keys never reach the batch function")
}

func TestMaxBatchFiresEarly(t *testing.T) {
	var calls atomic.Int64
	var seen [][]string
	var mu sync.Mutex
	l := New(echoBatch(&calls, &seen, &mu), Options{Wait: time.Hour, MaxBatch: 2})

	results, err := l.LoadMany(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	// With Wait effectively infinite, only the cap can fire batches.
	assert.Equal(t, int64(2), calls.Load())
	mu.Lock()
	defer mu.Unlock()
	for _, batch := range seen {
		assert.LessOrEqual(t, len(batch), 2)
	}
}

func TestBatchSizeMismatchFailsAllThunks(t *testing.T) {
	fn := func(_ context.Context, keys []string) []Result {
		return make([]Result, len(keys)-1)
	}
	l := New(fn, Options{})

	_, err := l.Load(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 0 results for 1 keys")
}

func TestLoadContextCancellation(t *testing.T) {
	block := make(chan struct{})
	fn := func(_ context.Context, keys []string) []Result {
		<-block
		results := make([]Result, len(keys))
		return results
	}
	l := New(fn, Options{})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
