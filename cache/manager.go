// Package cache implements the multi-layer (hot/warm) cache manager with
// TTL-based expiry, warm-to-hot promotion, refresh-ahead, and cascading
// pattern invalidation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/querypulse/querypulse/internal/contract"
	"golang.org/x/sync/singleflight"
)

// FetchFunc produces a fresh value from the source of truth. The value must
// be JSON-serializable; []byte and json.RawMessage are stored verbatim.
type FetchFunc func(ctx context.Context) (any, error)

// GetOptions carries the per-call TTLs for the two tiers.
type GetOptions struct {
	HotTTL  time.Duration
	WarmTTL time.Duration
}

// InvalidateOptions controls invalidation behavior.
type InvalidateOptions struct {
	// Cascade also invalidates dependent patterns per the registered graph.
	Cascade bool
}

// WarmEntry is one key to proactively populate in the warm tier.
type WarmEntry struct {
	Key   string
	Fetch FetchFunc
	TTL   time.Duration
}

// Manager owns the cache entry lifecycle across both tiers: creation on
// miss, promotion on warm hits, refresh-ahead near expiry, and invalidation.
type Manager struct {
	hot  contract.KeyValueStore
	warm contract.KeyValueStore

	graph        *Graph
	freshness    time.Duration
	fetchTimeout time.Duration

	// refreshGroup guarantees at most one in-flight refresh per key;
	// refreshSem bounds total refresh concurrency so refresh storms cannot
	// exhaust the upstream pool.
	refreshGroup singleflight.Group
	refreshSem   chan struct{}
	refreshWG    sync.WaitGroup

	warmSem chan struct{}

	mu     sync.Mutex
	closed bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithFreshness sets the remaining-TTL threshold below which a hot-tier hit
// triggers a background refresh.
func WithFreshness(d time.Duration) Option {
	return func(m *Manager) { m.freshness = d }
}

// WithFetchTimeout bounds every fetch issued on behalf of a miss or refresh.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Manager) { m.fetchTimeout = d }
}

// WithRefreshConcurrency caps the number of concurrent background refreshes.
func WithRefreshConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.refreshSem = make(chan struct{}, n)
		}
	}
}

// WithWarmConcurrency caps the number of concurrent warming fetches.
func WithWarmConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.warmSem = make(chan struct{}, n)
		}
	}
}

// WithCascadeGraph registers the validated cascade dependency graph.
func WithCascadeGraph(g *Graph) Option {
	return func(m *Manager) { m.graph = g }
}

// NewManager creates a cache manager over a hot and a warm tier store.
func NewManager(hot, warm contract.KeyValueStore, opts ...Option) *Manager {
	m := &Manager{
		hot:          hot,
		warm:         warm,
		freshness:    30 * time.Second,
		fetchTimeout: 5 * time.Second,
		refreshSem:   make(chan struct{}, 4),
		warmSem:      make(chan struct{}, 4),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached value for key, fetching and populating both tiers
// on a miss. Tier store failures on the read path are transparent: the
// caller gets a fetched value, never a store error. A fetch failure on the
// miss path is surfaced as-is.
func (m *Manager) Get(ctx context.Context, key string, fetch FetchFunc, opts GetOptions) (json.RawMessage, error) {
	// 1. Hot tier.
	value, ok, err := m.hot.Get(ctx, key)
	if err != nil {
		contract.LogWarn("hot tier read failed, bypassing", err)
	} else if ok {
		if rem, found, terr := m.hot.TTL(ctx, key); terr == nil && found && rem < m.freshness {
			m.refreshAhead(key, fetch, opts)
		}
		return value, nil
	}

	// 2. Warm tier: promote on hit.
	value, ok, err = m.warm.Get(ctx, key)
	if err != nil {
		contract.LogWarn("warm tier read failed, bypassing", err)
	} else if ok {
		if serr := m.hot.Set(ctx, key, value, opts.HotTTL); serr != nil {
			contract.LogWarn("hot tier promotion failed", serr)
		}
		return value, nil
	}

	// 3. Miss: fetch is fail-loud, tier writes are fail-open.
	data, err := m.fetchValue(ctx, fetch)
	if err != nil {
		return nil, err
	}
	m.storeBoth(ctx, key, data, opts)
	return data, nil
}

// Get is the typed read-through helper: it unmarshals the stored payload
// into T. The fetch function's value is marshaled once, so the result is
// identical whether served from the hot tier, warm tier, or a fresh fetch.
func Get[T any](ctx context.Context, m *Manager, key string, fetch func(ctx context.Context) (T, error), opts GetOptions) (T, error) {
	var zero T
	raw, err := m.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("cache decode %q: %w", key, err)
	}
	return out, nil
}

// refreshAhead starts a background refresh for key unless one is already in
// flight. Overlapping triggers coalesce onto the existing refresh; failures
// only log, leaving the current (stale but usable) value in place.
func (m *Manager) refreshAhead(key string, fetch FetchFunc, opts GetOptions) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.refreshWG.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.refreshWG.Done()
		_, _, _ = m.refreshGroup.Do(key, func() (any, error) {
			select {
			case m.refreshSem <- struct{}{}:
				defer func() { <-m.refreshSem }()
			default:
				// Refresh ceiling reached; the stale value stays serveable.
				return nil, nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
			defer cancel()

			data, err := m.fetchValue(ctx, fetch)
			if err != nil {
				contract.LogWarn("refresh-ahead fetch failed for "+key, err)
				return nil, nil
			}
			m.storeBoth(ctx, key, data, opts)
			return nil, nil
		})
	}()
}

// Invalidate deletes every key matching pattern from both tiers with one
// batched delete per tier. With Cascade set, dependent patterns from the
// registered graph are invalidated recursively, each edge at most once.
// Invalidation is idempotent: an empty match set is a no-op.
func (m *Manager) Invalidate(ctx context.Context, pattern string, opts InvalidateOptions) error {
	var visited []bool
	if m.graph != nil {
		visited = make([]bool, m.graph.Len())
	}
	return m.invalidate(ctx, pattern, opts.Cascade, visited)
}

func (m *Manager) invalidate(ctx context.Context, pattern string, cascade bool, visited []bool) error {
	for _, store := range []contract.KeyValueStore{m.hot, m.warm} {
		keys, err := store.Keys(ctx, pattern)
		if err != nil {
			return fmt.Errorf("invalidate %q: %w", pattern, err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := store.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("invalidate %q: %w", pattern, err)
		}
	}

	if !cascade || m.graph == nil {
		return nil
	}
	for _, dep := range m.graph.Dependents(pattern, visited) {
		if err := m.invalidate(ctx, dep, true, visited); err != nil {
			return err
		}
	}
	return nil
}

// Warm proactively populates the warm tier for a set of popular keys.
// Fetch and store failures are logged, never propagated; concurrency is
// bounded so warming cannot crowd out request-serving traffic.
func (m *Manager) Warm(ctx context.Context, entries []WarmEntry) {
	var wg sync.WaitGroup
	for _, e := range entries {
		select {
		case m.warmSem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(e WarmEntry) {
			defer wg.Done()
			defer func() { <-m.warmSem }()

			data, err := m.fetchValue(ctx, e.Fetch)
			if err != nil {
				contract.LogWarn("cache warming fetch failed for "+e.Key, err)
				return
			}
			if err := m.warm.Set(ctx, e.Key, data, e.TTL); err != nil {
				contract.LogWarn("cache warming store failed for "+e.Key, err)
			}
		}(e)
	}
	wg.Wait()
}

// fetchValue runs the fetch under the configured timeout and serializes the
// result for tier storage.
func (m *Manager) fetchValue(ctx context.Context, fetch FetchFunc) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	v, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache fetch: %w", err)
	}

	switch data := v.(type) {
	case json.RawMessage:
		return data, nil
	case []byte:
		return data, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cache encode: %w", err)
		}
		return encoded, nil
	}
}

func (m *Manager) storeBoth(ctx context.Context, key string, data []byte, opts GetOptions) {
	if err := m.hot.Set(ctx, key, data, opts.HotTTL); err != nil {
		contract.LogWarn("hot tier write failed for "+key, err)
	}
	if err := m.warm.Set(ctx, key, data, opts.WarmTTL); err != nil {
		contract.LogWarn("warm tier write failed for "+key, err)
	}
}

// Close waits for in-flight background refreshes to drain. The tier stores
// are owned by the caller and closed separately.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.refreshWG.Wait()
	return nil
}
