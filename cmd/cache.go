package cmd

import (
	"fmt"

	"github.com/querypulse/querypulse/core"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheCmd focused on cache tier management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the hot and warm cache tiers",
	Long: `Manage the two-tier result cache.

The hot tier lives in process memory with a short TTL; the warm tier lives in
the configured backend (SQLite by default) with a longer TTL. Reads check hot
first, then warm, then fall through to the origin. Warm hits are promoted
back into the hot tier.

Supported warm backends: SQLite (default), MySQL, PostgreSQL, memory, or none

Subcommands:
  status     - Show entry counts and freshness per tier
  clear      - Remove every cached entry from both tiers
  invalidate - Remove entries matching a pattern, optionally cascading

Examples:
  # Check tier health
  querypulse cache status

  # Drop stale user listings and everything derived from them
  querypulse cache invalidate "users:*" --cascade`,
}

// cacheStatusCmd shows per-tier status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display entry counts and freshness for both cache tiers",
	Long: `Show detailed information about the hot and warm cache tiers.

Displays per tier:
- Backend type and connection status
- Total number of live entries
- Newest and oldest entry timestamps
- Backing table size where the backend reports one

Use this to:
- Verify the warm backend is reachable
- Monitor cache growth over time
- Debug unexpected misses

Examples:
  # Check cache status
  querypulse cache status`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCacheStatus(rootCtx, svc, cfg); err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
	},
}

// cacheClearCmd clears both tiers.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached entries from both tiers",
	Long: `Delete every entry from the hot and warm tiers.

Use this when:
- Upstream data changed outside the cascade graph
- Cached values may be stale or corrupted
- Testing cold-start behavior

Clearing never cascades; there is nothing left to cascade to.

Examples:
  # Clear everything
  querypulse cache clear

  # Clear a MySQL-backed warm tier (set connection string via env variable)
  QUERYPULSE_CACHE_BACKEND=mysql QUERYPULSE_CACHE_DB_CONNECT="..." querypulse cache clear`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCacheClear(rootCtx, svc, cfg); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheInvalidateCmd invalidates entries by pattern.
var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <pattern>",
	Short: "Remove cached entries matching a glob pattern",
	Long: `Delete entries whose keys match a glob-style pattern ('*' matches any run
of characters) from both tiers.

With --cascade, registered dependent patterns are invalidated too, following
the configured dependency graph. Each pattern is visited at most once, so
shared dependencies are not deleted twice.

Invalidating keys that are already absent is a no-op, so this is safe to run
from hooks that may fire more than once.

Examples:
  # Drop one key
  querypulse cache invalidate "users:42"

  # Drop a family of keys and their dependents
  querypulse cache invalidate "users:*" --cascade`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		cascade := viper.GetBool("cascade")
		if err := core.ExecuteCacheInvalidate(rootCtx, svc, cfg, args[0], cascade); err != nil {
			contract.LogFatal("Failed to invalidate cache entries", err)
		}
		fmt.Println("Cache entries invalidated successfully.")
	},
}
