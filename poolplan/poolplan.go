// Package poolplan proposes connection pool sizes from observed pool
// counters. Plan is a pure function; the planner never resizes a live pool.
package poolplan

import (
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/querypulse/querypulse/schema"
)

// Pool size bounds. Every recommendation lands inside [MinPoolSize, MaxPoolSize].
const (
	MinPoolSize = 5
	MaxPoolSize = 100
)

// lowUtilization is the idle-fraction threshold below which the pool is
// considered oversized.
const lowUtilization = 0.2

// Plan derives a sizing recommendation from one counter snapshot. Shrink and
// grow conditions are evaluated independently and can both appear in Actions;
// when they conflict, the grow target wins because waiting acquires are
// user-visible latency while an oversized pool is not.
func Plan(m schema.PoolMetrics) schema.PoolRecommendation {
	utilization := 0.0
	if m.TotalCount > 0 {
		utilization = float64(m.IdleCount) / float64(m.TotalCount)
	}

	rec := schema.PoolRecommendation{
		SuggestedMax: clamp(m.TotalCount),
		Utilization:  utilization,
	}

	if m.TotalCount > 0 && utilization < lowUtilization {
		target := clamp(int(math.Ceil(float64(m.TotalCount) * 0.6)))
		rec.Actions = append(rec.Actions, schema.ShrinkPool)
		rec.SuggestedMax = target
		rec.Rationale = fmt.Sprintf("utilization %.2f is below %.2f; pool is oversized", utilization, lowUtilization)
	}

	if m.WaitingCount > 0 {
		target := clamp(m.TotalCount + m.WaitingCount*2)
		rec.Actions = append(rec.Actions, schema.GrowPool)
		rec.SuggestedMax = target
		if rec.Rationale != "" {
			rec.Rationale += "; "
		}
		rec.Rationale += fmt.Sprintf("%d acquires waited for a connection; growing takes precedence", m.WaitingCount)
	}

	if rec.Rationale == "" {
		rec.Rationale = fmt.Sprintf("utilization %.2f with no waiting acquires; current sizing holds", utilization)
	}

	rec.SuggestedMin = max(MinPoolSize, rec.SuggestedMax/4)
	return rec
}

func clamp(n int) int {
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}

// Collector snapshots pool counters from a live pgx pool. The waiting count
// is the number of empty-pool acquires since the previous snapshot, so the
// first snapshot reports pressure accumulated over the pool's lifetime.
type Collector struct {
	pool             *pgxpool.Pool
	lastEmptyAcquire int64
}

// NewCollector creates a Collector over a pool.
func NewCollector(pool *pgxpool.Pool) *Collector {
	return &Collector{pool: pool}
}

// Snapshot reads the current counters.
func (c *Collector) Snapshot() schema.PoolMetrics {
	stat := c.pool.Stat()

	empty := stat.EmptyAcquireCount()
	waiting := empty - c.lastEmptyAcquire
	c.lastEmptyAcquire = empty
	if waiting < 0 {
		waiting = 0
	}

	return schema.PoolMetrics{
		TotalCount:   int(stat.TotalConns()),
		IdleCount:    int(stat.IdleConns()),
		WaitingCount: int(waiting),
	}
}
