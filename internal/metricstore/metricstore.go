// Package metricstore persists per-query running metrics in a relational
// backend so they survive process restarts. The in-memory registry stays the
// source of truth during a run; this store mirrors it durably.
package metricstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

const metricsTable = "querypulse_query_metrics"

// Store implements contract.MetricsStore over SQLite, MySQL or PostgreSQL.
type Store struct {
	db      *sql.DB
	backend schema.CacheBackend
}

var _ contract.MetricsStore = (*Store)(nil)

// New opens the backend, verifies connectivity and ensures the schema is at
// the latest migration version.
func New(backend schema.CacheBackend, connStr string) (*Store, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetMetricsDBFilePath()
		}
		db, err = sql.Open("sqlite3", dbPath)
		if err != nil {
			return nil, fmt.Errorf("open SQLite metrics database at %q: %w", dbPath, err)
		}
		// Avoids "database is locked" errors under concurrent writers.
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		db, err = sql.Open("mysql", connStr)
		if err != nil {
			return nil, fmt.Errorf("open MySQL metrics database: %w", err)
		}

	case schema.PostgreSQLBackend:
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("open PostgreSQL metrics database: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported metrics backend: %s", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s metrics database: %w", backend, err)
	}

	if err := migrateDB(db, backend, -1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate metrics schema: %w", err)
	}

	return &Store{db: db, backend: backend}, nil
}

// Record upserts the full running snapshot for one query. Counters in the
// snapshot are already cumulative, so the row is replaced, not incremented.
func (s *Store) Record(ctx context.Context, m schema.QueryMetrics) error {
	now := time.Now().UnixMilli()
	args := []any{
		m.QueryHash, m.Query, m.Executions, m.TotalTimeMs, m.AvgTimeMs,
		m.SlowExecutions, m.CacheHitRatio, m.EstimationAccuracy, now,
	}

	var query string
	switch s.backend {
	case schema.MySQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (query_hash, query_text, executions, total_time_ms, avg_time_ms,
			                slow_executions, cache_hit_ratio, estimation_accuracy, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE
				query_text = new.query_text,
				executions = new.executions,
				total_time_ms = new.total_time_ms,
				avg_time_ms = new.avg_time_ms,
				slow_executions = new.slow_executions,
				cache_hit_ratio = new.cache_hit_ratio,
				estimation_accuracy = new.estimation_accuracy,
				updated_at = new.updated_at`, metricsTable)
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (query_hash, query_text, executions, total_time_ms, avg_time_ms,
			                slow_executions, cache_hit_ratio, estimation_accuracy, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (query_hash) DO UPDATE SET
				query_text = EXCLUDED.query_text,
				executions = EXCLUDED.executions,
				total_time_ms = EXCLUDED.total_time_ms,
				avg_time_ms = EXCLUDED.avg_time_ms,
				slow_executions = EXCLUDED.slow_executions,
				cache_hit_ratio = EXCLUDED.cache_hit_ratio,
				estimation_accuracy = EXCLUDED.estimation_accuracy,
				updated_at = EXCLUDED.updated_at`, metricsTable)
	default: // SQLite
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (query_hash, query_text, executions, total_time_ms, avg_time_ms,
			                           slow_executions, cache_hit_ratio, estimation_accuracy, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, metricsTable)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record metrics for %s: %w", m.QueryHash, err)
	}
	return nil
}

// Get returns the persisted snapshot for one query hash.
func (s *Store) Get(ctx context.Context, queryHash string) (schema.QueryMetrics, bool, error) {
	query := fmt.Sprintf(`
		SELECT query_hash, query_text, executions, total_time_ms, avg_time_ms,
		       slow_executions, cache_hit_ratio, estimation_accuracy
		FROM %s WHERE query_hash = %s`, metricsTable, s.placeholder(1))

	var m schema.QueryMetrics
	err := s.db.QueryRowContext(ctx, query, queryHash).Scan(
		&m.QueryHash, &m.Query, &m.Executions, &m.TotalTimeMs, &m.AvgTimeMs,
		&m.SlowExecutions, &m.CacheHitRatio, &m.EstimationAccuracy,
	)
	if err == sql.ErrNoRows {
		return schema.QueryMetrics{}, false, nil
	}
	if err != nil {
		return schema.QueryMetrics{}, false, fmt.Errorf("get metrics for %s: %w", queryHash, err)
	}
	return m, true, nil
}

// List returns up to limit snapshots ordered by cumulative time descending.
func (s *Store) List(ctx context.Context, limit int) ([]schema.QueryMetrics, error) {
	if limit <= 0 || limit > contract.MaxMetricsLimit {
		limit = contract.DefaultMetricsLimit
	}

	query := fmt.Sprintf(`
		SELECT query_hash, query_text, executions, total_time_ms, avg_time_ms,
		       slow_executions, cache_hit_ratio, estimation_accuracy
		FROM %s
		ORDER BY total_time_ms DESC, query_hash ASC
		LIMIT %s`, metricsTable, s.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.QueryMetrics
	for rows.Next() {
		var m schema.QueryMetrics
		if err := rows.Scan(
			&m.QueryHash, &m.Query, &m.Executions, &m.TotalTimeMs, &m.AvgTimeMs,
			&m.SlowExecutions, &m.CacheHitRatio, &m.EstimationAccuracy,
		); err != nil {
			return nil, fmt.Errorf("scan metrics row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics rows: %w", err)
	}
	return out, nil
}

// Status returns status information about the metrics store.
func (s *Store) Status(ctx context.Context) (schema.MetricsStatus, error) {
	status := schema.MetricsStatus{
		Backend:   string(s.backend),
		Connected: s.db != nil,
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*), COALESCE(MAX(updated_at), 0) FROM %s", metricsTable)
	var lastUpdated int64
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&status.TotalQueries, &lastUpdated); err != nil {
		return status, fmt.Errorf("query metrics status: %w", err)
	}
	if lastUpdated > 0 {
		status.LastUpdatedAt = time.UnixMilli(lastUpdated)
	}
	return status, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// placeholder returns the parameter marker for position n in the backend's
// dialect.
func (s *Store) placeholder(n int) string {
	if s.backend == schema.PostgreSQLBackend {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
