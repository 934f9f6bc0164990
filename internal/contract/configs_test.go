package contract

import (
	"testing"
	"time"

	"github.com/querypulse/querypulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns a raw input that passes validation, for tests to mutate.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		CacheBackend: string(schema.MemoryBackend),
		Output:       string(schema.TextOut),
		Precision:    DefaultPrecision,
		Limit:        DefaultMetricsLimit,
	}
}

func TestProcessConfigDefaults(t *testing.T) {
	cfg, err := ProcessConfig(validInput())
	require.NoError(t, err)

	assert.Equal(t, DefaultHotTTL, cfg.HotTTL)
	assert.Equal(t, DefaultWarmTTL, cfg.WarmTTL)
	assert.Equal(t, DefaultFreshness, cfg.Freshness)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, DefaultStatementTimeout, cfg.StatementTimeout)
	assert.Equal(t, DefaultSlowQueryMs, cfg.SlowQueryMs)
	assert.Equal(t, DefaultSeqScanRows, cfg.SeqScanRows)
	assert.Equal(t, DefaultNestedLoopRows, cfg.NestedLoopRows)
	assert.Equal(t, DefaultRefreshWorkers, cfg.RefreshWorkers)
	assert.Equal(t, DefaultWarmWorkers, cfg.WarmWorkers)
	assert.Equal(t, schema.NoneBackend, cfg.MetricsBackend)
	assert.Equal(t, schema.TextOut, cfg.Output)
	assert.True(t, cfg.UseColors)
}

func TestProcessConfigDurations(t *testing.T) {
	input := validInput()
	input.HotTTL = "2m"
	input.WarmTTL = "20m"
	input.Freshness = "45s"

	cfg, err := ProcessConfig(input)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.HotTTL)
	assert.Equal(t, 20*time.Minute, cfg.WarmTTL)
	assert.Equal(t, 45*time.Second, cfg.Freshness)
}

func TestProcessConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigRawInput)
	}{
		{
			name:   "invalid cache backend",
			mutate: func(in *ConfigRawInput) { in.CacheBackend = "redis" },
		},
		{
			name:   "invalid metrics backend",
			mutate: func(in *ConfigRawInput) { in.MetricsBackend = "etcd" },
		},
		{
			name:   "memory metrics backend is not durable",
			mutate: func(in *ConfigRawInput) { in.MetricsBackend = string(schema.MemoryBackend) },
		},
		{
			name:   "mysql cache backend without connection string",
			mutate: func(in *ConfigRawInput) { in.CacheBackend = string(schema.MySQLBackend) },
		},
		{
			name: "malformed mysql connection string",
			mutate: func(in *ConfigRawInput) {
				in.CacheBackend = string(schema.MySQLBackend)
				in.CacheDBConnect = "not-a-dsn"
			},
		},
		{
			name: "postgresql cache backend without connection string",
			mutate: func(in *ConfigRawInput) {
				in.CacheBackend = string(schema.PostgreSQLBackend)
			},
		},
		{
			name:   "unparseable hot ttl",
			mutate: func(in *ConfigRawInput) { in.HotTTL = "soon" },
		},
		{
			name: "hot ttl exceeding warm ttl",
			mutate: func(in *ConfigRawInput) {
				in.HotTTL = "30m"
				in.WarmTTL = "5m"
			},
		},
		{
			name:   "negative hot ttl",
			mutate: func(in *ConfigRawInput) { in.HotTTL = "-1m" },
		},
		{
			name:   "limit over maximum",
			mutate: func(in *ConfigRawInput) { in.Limit = MaxMetricsLimit + 1 },
		},
		{
			name:   "precision out of range",
			mutate: func(in *ConfigRawInput) { in.Precision = 11 },
		},
		{
			name:   "invalid output mode",
			mutate: func(in *ConfigRawInput) { in.Output = "xml" },
		},
		{
			name:   "invalid color setting",
			mutate: func(in *ConfigRawInput) { in.Color = "sometimes" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			_, err := ProcessConfig(input)
			assert.Error(t, err)
		})
	}
}

func TestProcessConfigMetricsBackend(t *testing.T) {
	input := validInput()
	input.MetricsBackend = string(schema.SQLiteBackend)

	cfg, err := ProcessConfig(input)
	require.NoError(t, err)
	assert.Equal(t, schema.SQLiteBackend, cfg.MetricsBackend)
}

func TestProcessConfigCascadeEdges(t *testing.T) {
	input := validInput()
	input.CascadeEdges = []string{"users:*=>users:list", "orders:*=>reports:*"}

	cfg, err := ProcessConfig(input)
	require.NoError(t, err)
	assert.Equal(t, input.CascadeEdges, cfg.CascadeEdges)
}

func TestProcessConfigColor(t *testing.T) {
	input := validInput()
	input.Color = "no"

	cfg, err := ProcessConfig(input)
	require.NoError(t, err)
	assert.False(t, cfg.UseColors)
}
