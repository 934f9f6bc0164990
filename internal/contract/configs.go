package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/querypulse/querypulse/schema"
)

// Default values for configuration.
const (
	DefaultPrecision        = 2
	DefaultHotTTL           = time.Minute
	DefaultWarmTTL          = 10 * time.Minute
	DefaultFreshness        = 30 * time.Second
	DefaultFetchTimeout     = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultSlowQueryMs      = 100.0
	DefaultSeqScanRows      = int64(1000)
	DefaultNestedLoopRows   = int64(100)
	DefaultCardinality      = 100.0
	DefaultCorrelation      = 0.5
	DefaultSampleLimit      = 50
	DefaultRefreshWorkers   = 4
	DefaultWarmWorkers      = 4
	DefaultMetricsLimit     = 25
	MaxMetricsLimit         = 1000
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration for querypulse.
// This struct remains the "final, validated" config.
type Config struct {
	DatabaseURL string // Postgres connection string for analyzer/advisor/pool

	CacheBackend   schema.CacheBackend
	CacheDBConnect string // Please use env var as this is plaintext
	HotTTL         time.Duration
	WarmTTL        time.Duration
	Freshness      time.Duration // Remaining-TTL threshold that triggers refresh-ahead
	FetchTimeout   time.Duration
	RefreshWorkers int // Ceiling on concurrent background refreshes
	WarmWorkers    int // Ceiling on concurrent warming fetches

	// CascadeEdges declares invalidation dependencies as "source=>dep1,dep2"
	// entries. The edge set is validated as a DAG at service construction.
	CascadeEdges []string

	MetricsBackend   schema.CacheBackend
	MetricsDBConnect string // Please use env var as this is plaintext

	StatementTimeout time.Duration // Analyzer statement timeout, same discipline as ordinary traffic
	SlowQueryMs      float64       // Executions above this count as slow
	SeqScanRows      int64         // Sequential scan inefficiency threshold
	NestedLoopRows   int64         // Nested loop inefficiency threshold

	CardinalityThreshold float64 // Distinct-count boundary between bitmap and btree advice
	CorrelationThreshold float64 // Correlation magnitude needed for bitmap advice
	SampleLimit          int     // Slow-query sample size for the advisor

	Output      schema.OutputMode
	OutputFile  string
	Precision   int
	ResultLimit int
	Width       int // Terminal width override (0 = auto-detect)
	UseColors   bool
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	DatabaseURL string `mapstructure:"database-url"`

	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	HotTTL         string `mapstructure:"hot-ttl"`
	WarmTTL        string `mapstructure:"warm-ttl"`
	Freshness      string `mapstructure:"freshness"`
	FetchTimeout   string `mapstructure:"fetch-timeout"`
	RefreshWorkers int    `mapstructure:"refresh-workers"`
	WarmWorkers    int    `mapstructure:"warm-workers"`

	CascadeEdges []string `mapstructure:"cascade-edges"`

	MetricsBackend   string `mapstructure:"metrics-backend"`
	MetricsDBConnect string `mapstructure:"metrics-db-connect"`

	StatementTimeout string  `mapstructure:"statement-timeout"`
	SlowQueryMs      float64 `mapstructure:"slow-query-ms"`
	SeqScanRows      int64   `mapstructure:"seq-scan-rows"`
	NestedLoopRows   int64   `mapstructure:"nested-loop-rows"`

	CardinalityThreshold float64 `mapstructure:"cardinality-threshold"`
	CorrelationThreshold float64 `mapstructure:"correlation-threshold"`
	SampleLimit          int     `mapstructure:"sample-limit"`

	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Precision  int    `mapstructure:"precision"`
	Limit      int    `mapstructure:"limit"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`
}

// ProcessConfig validates the raw input and produces the final Config.
func ProcessConfig(input *ConfigRawInput) (*Config, error) {
	cfg := &Config{
		DatabaseURL:          input.DatabaseURL,
		CacheDBConnect:       input.CacheDBConnect,
		MetricsDBConnect:     input.MetricsDBConnect,
		SlowQueryMs:          input.SlowQueryMs,
		SeqScanRows:          input.SeqScanRows,
		NestedLoopRows:       input.NestedLoopRows,
		CardinalityThreshold: input.CardinalityThreshold,
		CorrelationThreshold: input.CorrelationThreshold,
		SampleLimit:          input.SampleLimit,
		OutputFile:           input.OutputFile,
		Precision:            input.Precision,
		ResultLimit:          input.Limit,
		Width:                input.Width,
		RefreshWorkers:       input.RefreshWorkers,
		WarmWorkers:          input.WarmWorkers,
		CascadeEdges:         input.CascadeEdges,
	}

	// --- Cache backends ---
	cfg.CacheBackend = schema.CacheBackend(input.CacheBackend)
	if _, ok := schema.ValidCacheBackends[cfg.CacheBackend]; !ok {
		return nil, fmt.Errorf("invalid cache backend: %s", input.CacheBackend)
	}
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return nil, err
	}

	cfg.MetricsBackend = schema.NoneBackend
	if input.MetricsBackend != "" {
		cfg.MetricsBackend = schema.CacheBackend(input.MetricsBackend)
	}
	if _, ok := schema.ValidCacheBackends[cfg.MetricsBackend]; !ok {
		return nil, fmt.Errorf("invalid metrics backend: %s", input.MetricsBackend)
	}
	if cfg.MetricsBackend == schema.MemoryBackend {
		return nil, fmt.Errorf("metrics backend must be durable: use sqlite, mysql, postgresql, or none")
	}
	if err := ValidateDatabaseConnectionString(cfg.MetricsBackend, cfg.MetricsDBConnect); err != nil {
		return nil, err
	}

	// --- Durations ---
	var err error
	if cfg.HotTTL, err = parseDurationDefault(input.HotTTL, DefaultHotTTL); err != nil {
		return nil, fmt.Errorf("invalid hot-ttl: %w", err)
	}
	if cfg.WarmTTL, err = parseDurationDefault(input.WarmTTL, DefaultWarmTTL); err != nil {
		return nil, fmt.Errorf("invalid warm-ttl: %w", err)
	}
	if cfg.Freshness, err = parseDurationDefault(input.Freshness, DefaultFreshness); err != nil {
		return nil, fmt.Errorf("invalid freshness: %w", err)
	}
	if cfg.FetchTimeout, err = parseDurationDefault(input.FetchTimeout, DefaultFetchTimeout); err != nil {
		return nil, fmt.Errorf("invalid fetch-timeout: %w", err)
	}
	if cfg.StatementTimeout, err = parseDurationDefault(input.StatementTimeout, DefaultStatementTimeout); err != nil {
		return nil, fmt.Errorf("invalid statement-timeout: %w", err)
	}
	if cfg.HotTTL <= 0 || cfg.WarmTTL <= 0 {
		return nil, fmt.Errorf("hot-ttl and warm-ttl must be positive")
	}
	if cfg.HotTTL > cfg.WarmTTL {
		return nil, fmt.Errorf("hot-ttl (%s) must not exceed warm-ttl (%s)", cfg.HotTTL, cfg.WarmTTL)
	}

	// --- Numeric bounds ---
	if cfg.RefreshWorkers <= 0 {
		cfg.RefreshWorkers = DefaultRefreshWorkers
	}
	if cfg.WarmWorkers <= 0 {
		cfg.WarmWorkers = DefaultWarmWorkers
	}
	if cfg.SlowQueryMs <= 0 {
		cfg.SlowQueryMs = DefaultSlowQueryMs
	}
	if cfg.SeqScanRows <= 0 {
		cfg.SeqScanRows = DefaultSeqScanRows
	}
	if cfg.NestedLoopRows <= 0 {
		cfg.NestedLoopRows = DefaultNestedLoopRows
	}
	if cfg.CardinalityThreshold <= 0 {
		cfg.CardinalityThreshold = DefaultCardinality
	}
	if cfg.CorrelationThreshold <= 0 || cfg.CorrelationThreshold > 1 {
		cfg.CorrelationThreshold = DefaultCorrelation
	}
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = DefaultSampleLimit
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = DefaultMetricsLimit
	}
	if cfg.ResultLimit > MaxMetricsLimit {
		return nil, fmt.Errorf("limit %d exceeds maximum of %d", cfg.ResultLimit, MaxMetricsLimit)
	}
	if cfg.Precision < 0 || cfg.Precision > 10 {
		return nil, fmt.Errorf("precision must be between 0 and 10, got %d", cfg.Precision)
	}

	// --- Output ---
	cfg.Output = schema.OutputMode(input.Output)
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return nil, fmt.Errorf("invalid output mode: %s", input.Output)
	}

	useColors := true
	if input.Color != "" {
		if useColors, err = ParseBoolString(input.Color); err != nil {
			return nil, fmt.Errorf("invalid color setting: %w", err)
		}
	}
	cfg.UseColors = useColors

	return cfg, nil
}

// parseDurationDefault parses a duration string, falling back to def when empty.
func parseDurationDefault(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// ValidateDatabaseConnectionString performs basic validation of a backend
// connection string before any connection attempt is made.
func ValidateDatabaseConnectionString(backend schema.CacheBackend, connStr string) error {
	switch backend {
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("mysql backend requires a connection string (user:password@tcp(host:port)/dbname)")
		}
		if !strings.Contains(connStr, "@") {
			return fmt.Errorf("mysql connection string looks malformed: expected user:password@tcp(host:port)/dbname")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("postgresql backend requires a connection string (host=... user=... dbname=...)")
		}
	case schema.SQLiteBackend, schema.MemoryBackend, schema.NoneBackend, "":
		// SQLite falls back to a default file path; memory and none need nothing.
	default:
		return fmt.Errorf("unsupported backend: %s", backend)
	}
	return nil
}

// GetCacheDBFilePath returns the path to the SQLite DB file for warm-tier storage.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".querypulse_cache.db"
	}
	return filepath.Join(homeDir, ".querypulse_cache.db")
}

// GetMetricsDBFilePath returns the path to the SQLite DB file for metrics storage.
func GetMetricsDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".querypulse_metrics.db"
	}
	return filepath.Join(homeDir, ".querypulse_metrics.db")
}
