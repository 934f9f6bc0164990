package cmd

import (
	"fmt"

	"github.com/querypulse/querypulse/core"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/internal/metricstore"
	"github.com/querypulse/querypulse/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// metricsMigrateSetup loads minimal configuration needed for migrate operations.
// This is a specialized setup that does NOT build the service or create tables,
// allowing migrations to run on a fresh database.
func metricsMigrateSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get metrics-related config values
	backendStr := viper.GetString("metrics-backend")
	connStr := viper.GetString("metrics-db-connect")

	// Handle empty backend as NoneBackend
	var backend schema.CacheBackend
	if backendStr == "" {
		backend = schema.NoneBackend
	} else {
		backend = schema.CacheBackend(backendStr)
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetMetricsDBFilePath()
	}

	cfg.MetricsBackend = backend
	cfg.MetricsDBConnect = connStr

	return nil
}

// metricsMigrateSetupWrapper wraps metricsMigrateSetup to provide PreRunE for migrate command.
func metricsMigrateSetupWrapper(_ *cobra.Command, _ []string) error {
	return metricsMigrateSetup()
}

// metricsCmd focused on durable per-query metrics.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Manage durable per-query execution metrics",
	Long: `Manage the durable store of per-query execution metrics.

When a durable metrics backend is configured, every analyzed query updates a
persistent row keyed by its normalized query hash:
- Execution count and total/average duration
- Slow execution count against the configured threshold
- Last observed cache hit ratio and planner estimation accuracy

Supported backends: SQLite (default), MySQL, PostgreSQL

Subcommands:
  status  - Show tracking statistics and connection details
  list    - Show tracked queries, most expensive first
  migrate - Run database schema migrations

Examples:
  # Check tracking status
  querypulse metrics status

  # Show the 10 most expensive queries
  querypulse metrics list --limit 10`,
}

// metricsStatusCmd shows metrics store status.
var metricsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display metrics tracking statistics and connection details",
	Long: `Show detailed information about the durable metrics store.

Displays:
- Backend type and connection status
- Number of tracked queries
- Last update timestamp

Use this to:
- Verify metrics tracking is enabled and working
- Monitor data accumulation over time
- Check database connection health

Examples:
  # Check metrics tracking status
  querypulse metrics status`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteMetricsStatus(rootCtx, svc, cfg); err != nil {
			contract.LogFatal("Failed to get metrics status", err)
		}
	},
}

// metricsListCmd lists tracked queries.
var metricsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show tracked queries ordered by total execution time",
	Long: `List tracked queries from the durable metrics store, most expensive first.

Each row shows execution count, total and average duration, slow execution
count, cache hit ratio, and planner estimation accuracy. Ratios that were
never observed print as n/a.

Use --output parquet with --output-file to export the full dataset for
DuckDB, pandas, or BI tools.

Examples:
  # Show the top offenders
  querypulse metrics list --limit 10

  # Export for offline analysis
  querypulse metrics list --output parquet --output-file metrics.parquet`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteMetricsList(rootCtx, svc, cfg); err != nil {
			contract.LogFatal("Failed to list metrics", err)
		}
	},
}

// metricsMigrateCmd runs database migrations for the metrics store.
var metricsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the metrics store.

Migrations allow:
- Upgrading to new schema versions when QueryPulse is updated
- Safely modifying database structure without data loss
- Rolling back schema changes if needed

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  querypulse metrics migrate

  # Migrate to specific version
  querypulse metrics migrate --target-version 1

  # Rollback to initial state
  querypulse metrics migrate --target-version 0`,
	PreRunE: metricsMigrateSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := metricstore.Migrate(cfg.MetricsBackend, cfg.MetricsDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		fmt.Println("Migrations completed successfully.")
	},
}
