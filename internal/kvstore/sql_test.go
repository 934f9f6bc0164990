package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/querypulse/querypulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLStore(schema.SQLiteBackend, "test_cache", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "k1", []byte(`{"id":1}`), time.Minute))

	value, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"id":1}`), value)

	_, ok, err = s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, s.Set(ctx, "k", []byte("new"), time.Minute))

	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), value)
}

func TestSQLStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, ok, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "expired row should read as absent")
}

func TestSQLStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	rem, found, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Greater(t, rem, 50*time.Second)

	_, found, err = s.TTL(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLStoreDeleteBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, s.Set(ctx, "c", []byte("3"), time.Minute))

	require.NoError(t, s.Delete(ctx, "a", "c", "never-existed"))

	keys, err := s.Keys(ctx, "*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b"}, keys)
}

func TestSQLStoreKeysPattern(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "users:1", []byte("a"), time.Minute))
	require.NoError(t, s.Set(ctx, "users:2", []byte("b"), time.Minute))
	require.NoError(t, s.Set(ctx, "orders:1", []byte("c"), time.Minute))

	keys, err := s.Keys(ctx, "users:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users:1", "users:2"}, keys)
}

func TestSQLStoreKeysEscapesLikeMetachars(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "a_b", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "axb", []byte("2"), time.Minute))

	// The underscore is literal in our glob dialect, not a LIKE wildcard.
	keys, err := s.Keys(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b"}, keys)
}

func TestSQLStoreStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "a", []byte("12345"), time.Minute))

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalEntries)
	assert.False(t, status.LastEntryTime.IsZero())
}

func TestSQLStoreClear(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Clear(ctx))

	keys, err := s.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNewStoreBackends(t *testing.T) {
	memory, err := NewStore(schema.MemoryBackend, "t", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, memory)
	_ = memory.Close()

	none, err := NewStore(schema.NoneBackend, "t", "")
	require.NoError(t, err)
	_, ok, err := none.Get(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewStore("redis", "t", "")
	assert.Error(t, err)
}

func TestNewSQLStoreRejectsBadTableName(t *testing.T) {
	_, err := NewSQLStore(schema.SQLiteBackend, "bad; DROP TABLE x", "")
	assert.Error(t, err)
}
