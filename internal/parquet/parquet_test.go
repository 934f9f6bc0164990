package parquet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/querypulse/querypulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRowSchema(t *testing.T) {
	s := parquet.SchemaOf(MetricsRow{})

	var names []string
	for _, field := range s.Fields() {
		names = append(names, field.Name())
	}
	assert.Equal(t, []string{
		"query_hash", "query", "executions", "total_time_ms",
		"avg_time_ms", "slow_executions", "cache_hit_ratio",
		"estimation_accuracy",
	}, names)
}

func TestSuggestionRowSchema(t *testing.T) {
	s := parquet.SchemaOf(SuggestionRow{})

	var names []string
	for _, field := range s.Fields() {
		names = append(names, field.Name())
	}
	assert.Equal(t, []string{"kind", "table", "columns", "reason", "ddl"}, names)
}

func TestFromMetrics(t *testing.T) {
	rows := FromMetrics([]schema.QueryMetrics{{
		QueryHash:          "abc123",
		Query:              "SELECT 1",
		Executions:         3,
		TotalTimeMs:        45.0,
		AvgTimeMs:          15.0,
		SlowExecutions:     1,
		CacheHitRatio:      0.85,
		EstimationAccuracy: -1,
	}})

	require.Len(t, rows, 1)
	assert.Equal(t, "abc123", rows[0].QueryHash)
	assert.Equal(t, int64(3), rows[0].Executions)
	assert.InDelta(t, 0.85, rows[0].CacheHitRatio, 0.0001)
	assert.Equal(t, float64(-1), rows[0].EstimationAccuracy)
}

func TestWriteMetricsParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.parquet")

	in := []MetricsRow{
		{QueryHash: "h1", Query: "SELECT 1", Executions: 2, TotalTimeMs: 20, AvgTimeMs: 10},
		{QueryHash: "h2", Query: "SELECT 2", Executions: 1, TotalTimeMs: 5, AvgTimeMs: 5},
	}
	require.NoError(t, WriteMetricsParquet(in, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)

	reader := parquet.NewGenericReader[MetricsRow](f)
	defer reader.Close()
	require.Equal(t, int64(2), reader.NumRows())

	out := make([]MetricsRow, 2)
	n, _ := reader.Read(out)
	require.Equal(t, 2, n)
	assert.Equal(t, in, out)
	assert.Positive(t, info.Size())
}

func TestWriteSuggestionsParquetCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.parquet")

	rows := []SuggestionRow{{
		Kind:    "btree",
		Table:   "users",
		Columns: "email",
		Reason:  "high cardinality",
		DDL:     "CREATE INDEX idx_users_email ON users (email);",
	}}
	require.NoError(t, WriteSuggestionsParquet(rows, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteParquetBadPath(t *testing.T) {
	err := WriteSuggestionsParquet(nil, filepath.Join(t.TempDir(), "missing", "x.parquet"))
	assert.Error(t, err)
}
