// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/querypulse/querypulse/schema"
)

// KeyValueStore defines the operations the cache tiers need from a key-value
// backend. This allows the cache layer to be tested against an in-memory
// store and deployed against a shared SQL store.
type KeyValueStore interface {
	// Get returns the stored value for key. The second result is false when
	// the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL. A non-positive TTL
	// stores the value without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys in one batched operation. Deleting keys
	// that are already absent is a no-op.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns all stored, unexpired keys matching a glob-style pattern
	// ('*' matches any run of characters).
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL returns the remaining lifetime of key. The second result is false
	// when the key is absent, expired, or stored without expiry.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	// Status returns status information about the store.
	Status(ctx context.Context) (schema.CacheStatus, error)

	// Close closes the underlying backend.
	Close() error
}

// StatsSource defines the statistics the index advisor needs from the
// relational engine. This allows the advisor to be tested without a live
// database.
type StatsSource interface {
	// ColumnStats returns column-level statistics for a table. An empty
	// slice (not an error) means the catalog has no statistics yet.
	ColumnStats(ctx context.Context, table string) ([]schema.ColumnStat, error)

	// SlowQueries returns a sample of recent slow executions referencing the
	// table. Implementations return ErrSlowSampleUnavailable when the
	// engine's statement statistics are not collected.
	SlowQueries(ctx context.Context, table string, limit int) ([]schema.SlowQuery, error)
}

// MetricsStore defines the interface for the persistent per-query metrics
// store. This allows mocking the store for testing.
type MetricsStore interface {
	// Record upserts the running metrics for one normalized query.
	Record(ctx context.Context, m schema.QueryMetrics) error

	// Get returns the stored metrics for a query hash.
	Get(ctx context.Context, queryHash string) (schema.QueryMetrics, bool, error)

	// List returns stored metrics ordered by total time descending.
	List(ctx context.Context, limit int) ([]schema.QueryMetrics, error)

	// Status returns status information about the metrics store.
	Status(ctx context.Context) (schema.MetricsStatus, error)

	// Close closes the underlying connection.
	Close() error
}
