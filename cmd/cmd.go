// Package cmd defines the command-line interface for querypulse.
package cmd

import (
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(adviseCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)

	// Add the metrics subcommands to the parent metrics command
	metricsCmd.AddCommand(metricsStatusCmd)
	metricsCmd.AddCommand(metricsListCmd)
	metricsCmd.AddCommand(metricsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string for analyze/advise/pool (prefer QUERYPULSE_DATABASE_URL)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Warm tier backend: memory or sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql warm tier (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("hot-ttl", "", "Hot tier entry lifetime (e.g., 1m)")
	rootCmd.PersistentFlags().String("warm-ttl", "", "Warm tier entry lifetime (e.g., 10m)")
	rootCmd.PersistentFlags().String("freshness", "", "Remaining-TTL threshold that triggers refresh-ahead (e.g., 30s)")
	rootCmd.PersistentFlags().String("fetch-timeout", "", "Timeout for a single origin fetch (e.g., 5s)")
	rootCmd.PersistentFlags().Int("refresh-workers", contract.DefaultRefreshWorkers, "Ceiling on concurrent background refreshes")
	rootCmd.PersistentFlags().Int("warm-workers", contract.DefaultWarmWorkers, "Ceiling on concurrent warming fetches")
	rootCmd.PersistentFlags().StringSlice("cascade-edges", nil, "Invalidation dependencies as source=>dep1,dep2 entries (repeatable)")
	rootCmd.PersistentFlags().String("metrics-backend", "", "Durable metrics backend: sqlite or mysql or postgresql (empty disables tracking)")
	rootCmd.PersistentFlags().String("metrics-db-connect", "", "Database connection string for metrics tracking")
	rootCmd.PersistentFlags().String("statement-timeout", "", "Analyzer statement timeout (e.g., 30s)")
	rootCmd.PersistentFlags().Float64("slow-query-ms", contract.DefaultSlowQueryMs, "Executions above this duration count as slow")
	rootCmd.PersistentFlags().Int64("seq-scan-rows", contract.DefaultSeqScanRows, "Sequential scans over this many rows are flagged")
	rootCmd.PersistentFlags().Int64("nested-loop-rows", contract.DefaultNestedLoopRows, "Nested loops over this many rows are flagged")
	rootCmd.PersistentFlags().Float64("cardinality-threshold", contract.DefaultCardinality, "Distinct-count boundary between bitmap and btree advice")
	rootCmd.PersistentFlags().Float64("correlation-threshold", contract.DefaultCorrelation, "Correlation magnitude needed for bitmap advice")
	rootCmd.PersistentFlags().Int("sample-limit", contract.DefaultSampleLimit, "Slow-query sample size for the advisor")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultMetricsLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of cacheInvalidateCmd to Viper
	cacheInvalidateCmd.Flags().Bool("cascade", false, "Also invalidate registered dependent patterns")
	if err := viper.BindPFlags(cacheInvalidateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding cache invalidate flags", err)
	}

	// Bind all flags of metricsMigrateCmd to Viper
	metricsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(metricsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding metrics migrate flags", err)
	}
}
