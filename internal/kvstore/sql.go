package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// SQLStore is a shared, durable tier store over a relational backend.
// Expiry is tracked in an epoch-millisecond column; expired rows are treated
// as absent on read and reaped opportunistically.
type SQLStore struct {
	db         *sql.DB
	tableName  string
	backend    schema.CacheBackend
	driverName string
	connStr    string
}

var _ contract.KeyValueStore = &SQLStore{} // Compile-time check

// NewSQLStore opens the backend, verifies the connection, and ensures the
// cache table exists.
func NewSQLStore(backend schema.CacheBackend, tableName, connStr string) (*SQLStore, error) {
	// Validate table name to prevent SQL injection
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}

	var db *sql.DB
	var err error
	var driverName string

	switch backend {
	case schema.SQLiteBackend:
		driverName = "sqlite3"
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetCacheDBFilePath()
		}
		db, err = sql.Open(driverName, dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite cache at %q: %w. Ensure the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		driverName = "mysql"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL cache: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		driverName = "pgx"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL cache: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("unsupported SQL cache backend: %s", backend)
	}

	// Ping to verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}

	s := &SQLStore{
		db:         db,
		tableName:  tableName,
		backend:    backend,
		driverName: driverName,
		connStr:    connStr,
	}

	// Create the table schema
	if _, err := db.Exec(s.createTableQuery()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return s, nil
}

// createTableQuery returns the CREATE TABLE query for the backend.
func (s *SQLStore) createTableQuery() string {
	quoted := s.quotedTableName()
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key VARCHAR(255) PRIMARY KEY,
				cache_value BLOB NOT NULL,
				stored_at BIGINT NOT NULL,
				expires_at BIGINT NOT NULL
			);
		`, quoted)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BYTEA NOT NULL,
				stored_at BIGINT NOT NULL,
				expires_at BIGINT NOT NULL
			);
		`, quoted)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BLOB NOT NULL,
				stored_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL
			);
		`, quoted)
	}
}

func (s *SQLStore) quotedTableName() string {
	switch s.backend {
	case schema.MySQLBackend:
		return "`" + s.tableName + "`"
	case schema.PostgreSQLBackend:
		return `"` + s.tableName + `"`
	default:
		return `"` + s.tableName + `"`
	}
}

// placeholder returns the parameter placeholder for position n (1-based).
func (s *SQLStore) placeholder(n int) string {
	if s.backend == schema.PostgreSQLBackend {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Get retrieves a value by key, treating expired rows as absent.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT cache_value, expires_at FROM %s WHERE cache_key = %s`,
		s.quotedTableName(), s.placeholder(1))

	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}

	if expiresAt > 0 && expiresAt <= time.Now().UnixMilli() {
		// Reap the expired row; a failed reap is harmless and retried later.
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return value, true, nil
}

// Set inserts or replaces a key/value pair with the given TTL.
func (s *SQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now().UnixMilli()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now + ttl.Milliseconds()
	}

	_, err := s.db.ExecContext(ctx, s.upsertQuery(), key, value, now, expiresAt)
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// upsertQuery returns the UPSERT query for the backend.
func (s *SQLStore) upsertQuery() string {
	quoted := s.quotedTableName()
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, stored_at, expires_at) VALUES (?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE cache_value = new.cache_value, stored_at = new.stored_at, expires_at = new.expires_at`, quoted)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, stored_at, expires_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (cache_key) DO UPDATE SET cache_value = EXCLUDED.cache_value, stored_at = EXCLUDED.stored_at, expires_at = EXCLUDED.expires_at`, quoted)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (cache_key, cache_value, stored_at, expires_at) VALUES (?, ?, ?, ?)`, quoted)
	}
}

// Delete removes the given keys with a single batched statement.
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		placeholders[i] = s.placeholder(i + 1)
		args[i] = key
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key IN (%s)`,
		s.quotedTableName(), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Keys returns all unexpired keys matching a glob-style pattern, translated
// to a LIKE expression ('*' becomes '%', literal wildcards are escaped).
func (s *SQLStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT cache_key FROM %s WHERE cache_key LIKE %s ESCAPE '!' AND (expires_at = 0 OR expires_at > %s)`,
		s.quotedTableName(), s.placeholder(1), s.placeholder(2))

	rows, err := s.db.QueryContext(ctx, query, globToLike(pattern), time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("cache keys %q: %w", pattern, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("cache keys scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// globToLike converts a glob-style pattern to a LIKE pattern. '!' is used as
// the LIKE escape character because backslash is itself an escape in MySQL
// string literals.
func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '%', '_', '!':
			b.WriteByte('!')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TTL returns the remaining lifetime of a key.
func (s *SQLStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	query := fmt.Sprintf(`SELECT expires_at FROM %s WHERE cache_key = %s`,
		s.quotedTableName(), s.placeholder(1))

	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache ttl %q: %w", key, err)
	}
	if expiresAt == 0 {
		return 0, false, nil
	}

	rem := time.Duration(expiresAt-time.Now().UnixMilli()) * time.Millisecond
	if rem <= 0 {
		return 0, false, nil
	}
	return rem, true, nil
}

// Status returns status information about the cache store.
func (s *SQLStore) Status(ctx context.Context) (schema.CacheStatus, error) {
	status := schema.CacheStatus{
		Backend:   string(s.backend),
		Connected: s.db != nil,
	}

	quoted := s.quotedTableName()

	// Get total entries
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoted)
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&status.TotalEntries); err != nil {
		return status, fmt.Errorf("failed to get total entries: %w", err)
	}

	if status.TotalEntries == 0 {
		return status, nil
	}

	// Get last entry time
	lastQuery := fmt.Sprintf("SELECT MAX(stored_at) FROM %s", quoted)
	var lastTs int64
	if err := s.db.QueryRowContext(ctx, lastQuery).Scan(&lastTs); err != nil {
		return status, fmt.Errorf("failed to get last entry time: %w", err)
	}
	status.LastEntryTime = time.UnixMilli(lastTs)

	// Get oldest entry time
	oldestQuery := fmt.Sprintf("SELECT MIN(stored_at) FROM %s", quoted)
	var oldestTs int64
	if err := s.db.QueryRowContext(ctx, oldestQuery).Scan(&oldestTs); err != nil {
		return status, fmt.Errorf("failed to get oldest entry time: %w", err)
	}
	status.OldestEntryTime = time.UnixMilli(oldestTs)

	// Estimate table size (approximate)
	switch s.backend {
	case schema.SQLiteBackend:
		sizeQuery := "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
		if err := s.db.QueryRowContext(ctx, sizeQuery).Scan(&status.TableSizeBytes); err != nil {
			// If pragma fails, skip size
			status.TableSizeBytes = 0
		}
	case schema.MySQLBackend:
		// Fallback rough estimate if information_schema query fails
		status.TableSizeBytes = int64(status.TotalEntries) * 1000

		cfg, err := mysql.ParseDSN(s.connStr)
		if err != nil || cfg.DBName == "" {
			break
		}
		sizeQuery := "SELECT data_length + index_length FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
		if err := s.db.QueryRowContext(ctx, sizeQuery, cfg.DBName, s.tableName).Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000
		}
	case schema.PostgreSQLBackend:
		sizeQuery := "SELECT pg_total_relation_size($1)"
		if err := s.db.QueryRowContext(ctx, sizeQuery, s.tableName).Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000 // Fallback rough estimate
		}
	}

	return status, nil
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Clear removes every row from the cache table.
func (s *SQLStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", s.quotedTableName())
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}
