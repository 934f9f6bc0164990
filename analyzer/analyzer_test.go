package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{
			name:  "plain select",
			query: "SELECT * FROM users",
		},
		{
			name:  "lowercase select",
			query: "select 1",
		},
		{
			name:  "values statement",
			query: "VALUES (1), (2)",
		},
		{
			name:  "table statement",
			query: "TABLE users",
		},
		{
			name:  "read-only cte",
			query: "WITH recent AS (SELECT * FROM orders) SELECT count(*) FROM recent",
		},
		{
			name:  "leading line comment",
			query: "-- top customers\nSELECT * FROM customers",
		},
		{
			name:  "leading block comment",
			query: "/* audit */ SELECT 1",
		},
		{
			name:  "leading whitespace",
			query: "   \n\tSELECT 1",
		},
		{
			name:    "insert",
			query:   "INSERT INTO users VALUES (1)",
			wantErr: true,
		},
		{
			name:    "update",
			query:   "UPDATE users SET name = 'x'",
			wantErr: true,
		},
		{
			name:    "delete",
			query:   "DELETE FROM users",
			wantErr: true,
		},
		{
			name:    "ddl",
			query:   "DROP TABLE users",
			wantErr: true,
		},
		{
			name:    "cte smuggling a delete",
			query:   "WITH gone AS (DELETE FROM users RETURNING id) SELECT * FROM gone",
			wantErr: true,
		},
		{
			name:    "cte smuggling an update",
			query:   "WITH w AS (UPDATE users SET x = 1 RETURNING id) SELECT 1",
			wantErr: true,
		},
		{
			name:    "empty statement",
			query:   "",
			wantErr: true,
		},
		{
			name:    "only comments",
			query:   "/* nothing here */",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ensureReadOnly(tt.query)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotReadOnly)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnalysisErrorUnwrap(t *testing.T) {
	inner := ErrNotReadOnly
	err := &AnalysisError{Query: "SELECT 1", Err: inner}
	assert.ErrorIs(t, err, ErrNotReadOnly)
	assert.Contains(t, err.Error(), "SELECT 1")
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "SELECT 1", truncateQuery("SELECT   1", 80))
	long := "SELECT aaaaaaaaaa FROM bbbbbbbbbb WHERE cccccccccc"
	got := truncateQuery(long, 20)
	assert.Len(t, got, 23)
	assert.Contains(t, got, "...")
}

func TestNewAppliesThresholdsToRegistry(t *testing.T) {
	a := New(nil, WithThresholds(Thresholds{SlowQueryMs: 5}))

	a.Registry().Observe("SELECT 1", 10, -1, -1)
	m, ok := a.Registry().Get("SELECT 1")
	assert.True(t, ok)
	assert.Equal(t, int64(1), m.SlowExecutions, "the slow threshold from options must reach the registry")
}
