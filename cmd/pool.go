package cmd

import (
	"github.com/querypulse/querypulse/core"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/spf13/cobra"
)

// poolCmd snapshots pool counters and proposes sizing.
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Snapshot connection pool usage and propose min/max sizing.",
	Long: `Sample the connection pool's counters and derive a sizing recommendation.

Reads total connections, idle connections, and requests that had to wait for
a connection since the last sample, then proposes:
- shrink - when utilization is persistently low
- grow   - when requests are queueing for connections

Growth wins when both signals fire; starving requests costs more than idle
connections. Suggested bounds are clamped to sane limits.

Examples:
  # One-shot sizing check
  querypulse pool

  # Feed a dashboard
  querypulse pool --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecutePool(rootCtx, svc, cfg); err != nil {
			contract.LogFatal("Cannot plan pool sizing", err)
		}
	},
}
