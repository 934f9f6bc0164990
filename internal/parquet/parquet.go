// Package parquet provides data structures and functions for exporting
// querypulse metrics and suggestions to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/querypulse/querypulse/schema"
)

// MetricsRow maps one per-query metrics snapshot to a Parquet record.
type MetricsRow struct {
	// QueryHash is the content hash of the normalized query text
	QueryHash string `parquet:"query_hash,snappy"`

	// Query is the normalized query text sample
	Query string `parquet:"query,snappy"`

	// Executions is the number of analyzed executions
	Executions int64 `parquet:"executions,snappy"`

	// TotalTimeMs is the cumulative wall-clock time across executions
	TotalTimeMs float64 `parquet:"total_time_ms,snappy"`

	// AvgTimeMs is the mean wall-clock time per execution
	AvgTimeMs float64 `parquet:"avg_time_ms,snappy"`

	// SlowExecutions is the number of executions above the slow threshold
	SlowExecutions int64 `parquet:"slow_executions,snappy"`

	// CacheHitRatio is the latest observed buffer hit ratio
	CacheHitRatio float64 `parquet:"cache_hit_ratio,snappy"`

	// EstimationAccuracy is the latest observed plan accuracy
	EstimationAccuracy float64 `parquet:"estimation_accuracy,snappy"`
}

// SuggestionRow maps one index suggestion to a Parquet record.
type SuggestionRow struct {
	// Kind is the suggested index style
	Kind string `parquet:"kind,snappy"`

	// Table is the target table
	Table string `parquet:"table,snappy"`

	// Columns is the pipe-joined column list
	Columns string `parquet:"columns,snappy"`

	// Reason explains why the index was suggested
	Reason string `parquet:"reason,snappy"`

	// DDL is the advisory index definition
	DDL string `parquet:"ddl,snappy"`
}

// FromMetrics converts metrics snapshots into Parquet rows.
func FromMetrics(metrics []schema.QueryMetrics) []MetricsRow {
	rows := make([]MetricsRow, len(metrics))
	for i, m := range metrics {
		rows[i] = MetricsRow{
			QueryHash:          m.QueryHash,
			Query:              m.Query,
			Executions:         m.Executions,
			TotalTimeMs:        m.TotalTimeMs,
			AvgTimeMs:          m.AvgTimeMs,
			SlowExecutions:     m.SlowExecutions,
			CacheHitRatio:      m.CacheHitRatio,
			EstimationAccuracy: m.EstimationAccuracy,
		}
	}
	return rows
}

// WriteMetricsParquet writes metrics rows to a Parquet file.
func WriteMetricsParquet(data []MetricsRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSuggestionsParquet writes suggestion rows to a Parquet file.
func WriteSuggestionsParquet(data []SuggestionRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes records to outputPath with schema inferred from struct
// tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
