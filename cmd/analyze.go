package cmd

import (
	"github.com/querypulse/querypulse/core"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/spf13/cobra"
)

// analyzeCmd runs one query through plan instrumentation.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Execute a read-only query with plan instrumentation and report findings.",
	Long: `Run a single read-only SQL statement under full plan instrumentation and
derive actionable findings from how it actually executed.

Reports:
- The executed plan tree with estimated vs. actual row counts
- Buffer cache hit ratio for the statement
- Planner estimation accuracy (worst node wins)
- Ranked recommendations: missing indexes, join strategy, stale statistics

Only SELECT/WITH/VALUES/TABLE statements are accepted; anything that could
write is rejected before reaching the database.

Examples:
  # Analyze a suspect query
  querypulse analyze "SELECT * FROM orders WHERE customer_id = 42"

  # Persist per-query metrics while analyzing
  querypulse analyze --metrics-backend sqlite "SELECT ..."

  # Machine-readable output
  querypulse analyze --output json "SELECT ..."`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteAnalyze(rootCtx, svc, cfg, args[0]); err != nil {
			contract.LogFatal("Cannot analyze query", err)
		}
	},
}
