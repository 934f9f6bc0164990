package advisor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// undefinedTableCode is the engine's error code for a missing relation,
// which is how an absent statistics extension presents itself.
const undefinedTableCode = "42P01"

// PostgresStats reads column statistics from the statistics catalog and the
// slow-execution sample from the statements extension, when installed.
type PostgresStats struct {
	db *sql.DB
}

var _ contract.StatsSource = (*PostgresStats)(nil)

// NewPostgresStats creates a statistics source over a database handle.
func NewPostgresStats(db *sql.DB) *PostgresStats {
	return &PostgresStats{db: db}
}

// ColumnStats returns per-column distinct counts and correlations for table.
// A schema qualifier in table is honored; otherwise "public" is assumed.
func (p *PostgresStats) ColumnStats(ctx context.Context, table string) ([]schema.ColumnStat, error) {
	schemaName, tableName := splitQualified(table)

	rows, err := p.db.QueryContext(ctx, `
		SELECT attname, n_distinct, COALESCE(correlation, 0)
		FROM pg_stats
		WHERE schemaname = $1 AND tablename = $2
		ORDER BY attname`, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query pg_stats: %w", err)
	}
	defer rows.Close()

	var stats []schema.ColumnStat
	for rows.Next() {
		var s schema.ColumnStat
		if err := rows.Scan(&s.Column, &s.NDistinct, &s.Correlation); err != nil {
			return nil, fmt.Errorf("scan pg_stats row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pg_stats: %w", err)
	}
	return stats, nil
}

// SlowQueries returns up to limit recent statements referencing table,
// slowest first. When the statements extension is not installed the result
// is ErrSlowSampleUnavailable, which callers treat as an empty sample.
func (p *PostgresStats) SlowQueries(ctx context.Context, table string, limit int) ([]schema.SlowQuery, error) {
	_, tableName := splitQualified(table)

	rows, err := p.db.QueryContext(ctx, `
		SELECT query, calls, mean_exec_time
		FROM pg_stat_statements
		WHERE query ILIKE '%' || $1 || '%'
		ORDER BY mean_exec_time DESC
		LIMIT $2`, tableName, limit)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTableCode {
			return nil, ErrSlowSampleUnavailable
		}
		return nil, fmt.Errorf("query pg_stat_statements: %w", err)
	}
	defer rows.Close()

	var sample []schema.SlowQuery
	for rows.Next() {
		var sq schema.SlowQuery
		if err := rows.Scan(&sq.Query, &sq.Calls, &sq.MeanTimeMs); err != nil {
			return nil, fmt.Errorf("scan pg_stat_statements row: %w", err)
		}
		sample = append(sample, sq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pg_stat_statements: %w", err)
	}
	return sample, nil
}

func splitQualified(table string) (schemaName, tableName string) {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "public", table
}
