// Package kvstore provides the key-value tier stores behind the cache manager.
package kvstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// validTableName restricts table names to safe identifier characters since
// table names cannot be bound as statement parameters.
var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewStore initializes a tier store for the given backend.
func NewStore(backend schema.CacheBackend, tableName, connStr string) (contract.KeyValueStore, error) {
	switch backend {
	case schema.MemoryBackend:
		return NewMemoryStore(), nil
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return NewSQLStore(backend, tableName, connStr)
	case schema.NoneBackend:
		return &nopStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s. Must be memory, sqlite, mysql, postgresql, or none", backend)
	}
}

func validateTableName(name string) error {
	if !validTableName.MatchString(name) {
		return fmt.Errorf("invalid table name: %q", name)
	}
	return nil
}

// nopStore is a disabled store: every read misses and every write succeeds.
type nopStore struct{}

func (n *nopStore) Get(_ context.Context, _ string) ([]byte, bool, error) { return nil, false, nil }

func (n *nopStore) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }

func (n *nopStore) Delete(_ context.Context, _ ...string) error { return nil }

func (n *nopStore) Keys(_ context.Context, _ string) ([]string, error) { return nil, nil }

func (n *nopStore) TTL(_ context.Context, _ string) (time.Duration, bool, error) {
	return 0, false, nil
}

func (n *nopStore) Status(_ context.Context) (schema.CacheStatus, error) {
	return schema.CacheStatus{Backend: string(schema.NoneBackend)}, nil
}

func (n *nopStore) Close() error { return nil }

var _ contract.KeyValueStore = &nopStore{} // Compile-time check
