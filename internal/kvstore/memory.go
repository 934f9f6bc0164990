package kvstore

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// defaultSweepInterval controls how often the janitor removes expired entries.
const defaultSweepInterval = time.Minute

type memEntry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process tier store. Reads and writes are per-key
// atomic; expired entries are dropped lazily on access and swept
// periodically by a janitor goroutine.
type MemoryStore struct {
	entries *xsync.MapOf[string, memEntry]
	done    chan struct{}
}

var _ contract.KeyValueStore = &MemoryStore{} // Compile-time check

// NewMemoryStore creates a memory store and starts its janitor.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: xsync.NewMapOf[string, memEntry](),
		done:    make(chan struct{}),
	}
	go s.janitor(defaultSweepInterval)
	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.entries.Range(func(key string, e memEntry) bool {
				if e.expired(now) {
					s.entries.Delete(key)
				}
				return true
			})
		}
	}
}

// Get retrieves a value by key, treating expired entries as absent.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		s.entries.Delete(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a value with the given TTL. A non-positive TTL stores without expiry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	e := memEntry{value: value, storedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries.Store(key, e)
	return nil
}

// Delete removes the given keys.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.entries.Delete(key)
	}
	return nil
}

// Keys returns all unexpired keys matching a glob-style pattern.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()
	var keys []string
	s.entries.Range(func(key string, e memEntry) bool {
		if !e.expired(now) && contract.MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
		return true
	})
	return keys, nil
}

// TTL returns the remaining lifetime of a key.
func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	e, ok := s.entries.Load(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, false, nil
	}
	rem := time.Until(e.expiresAt)
	if rem <= 0 {
		s.entries.Delete(key)
		return 0, false, nil
	}
	return rem, true, nil
}

// Status returns status information about the store.
func (s *MemoryStore) Status(_ context.Context) (schema.CacheStatus, error) {
	status := schema.CacheStatus{
		Backend:   string(schema.MemoryBackend),
		Connected: true,
	}

	now := time.Now()
	var size int64
	s.entries.Range(func(_ string, e memEntry) bool {
		if e.expired(now) {
			return true
		}
		status.TotalEntries++
		size += int64(len(e.value))
		if status.LastEntryTime.IsZero() || e.storedAt.After(status.LastEntryTime) {
			status.LastEntryTime = e.storedAt
		}
		if status.OldestEntryTime.IsZero() || e.storedAt.Before(status.OldestEntryTime) {
			status.OldestEntryTime = e.storedAt
		}
		return true
	})
	status.TableSizeBytes = size
	return status, nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}
