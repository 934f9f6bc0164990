package cmd

import (
	"github.com/querypulse/querypulse/core"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/spf13/cobra"
)

// adviseCmd derives index suggestions for a table.
var adviseCmd = &cobra.Command{
	Use:   "advise <table>",
	Short: "Suggest indexes for a table from column statistics and slow queries.",
	Long: `Inspect column-level statistics and a sample of recent slow executions to
propose candidate indexes for one table.

Suggestion kinds:
- btree     - high-cardinality columns seen in slow-query predicates
- bitmap    - low-cardinality, well-correlated columns (BRIN DDL)
- composite - column combinations that recur across slow queries
- covering  - narrow projections repeated often enough to satisfy from the index

All DDL is advisory. Nothing is ever created; review each statement before
applying it.

When the engine's statement statistics are not collected, advice degrades
gracefully to column statistics alone.

Examples:
  # Advise on a hot table
  querypulse advise orders

  # Schema-qualified tables work too
  querypulse advise sales.orders

  # Widen the slow-query sample
  querypulse advise orders --sample-limit 200`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteAdvise(rootCtx, svc, cfg, args[0]); err != nil {
			contract.LogFatal("Cannot advise on table", err)
		}
	},
}
