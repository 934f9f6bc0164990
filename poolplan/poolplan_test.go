package poolplan

import (
	"testing"

	"github.com/querypulse/querypulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanShrinkOnLowUtilization(t *testing.T) {
	rec := Plan(schema.PoolMetrics{TotalCount: 20, IdleCount: 1, WaitingCount: 0})

	require.Equal(t, []schema.PoolAction{schema.ShrinkPool}, rec.Actions)
	assert.Equal(t, 12, rec.SuggestedMax) // ceil(20 * 0.6)
	assert.Equal(t, 5, rec.SuggestedMin)
	assert.InDelta(t, 0.05, rec.Utilization, 0.0001)
	assert.Contains(t, rec.Rationale, "oversized")
}

func TestPlanGrowOnWaitingAcquires(t *testing.T) {
	rec := Plan(schema.PoolMetrics{TotalCount: 20, IdleCount: 10, WaitingCount: 5})

	require.Equal(t, []schema.PoolAction{schema.GrowPool}, rec.Actions)
	assert.Equal(t, 30, rec.SuggestedMax) // 20 + 5*2
	assert.Equal(t, 7, rec.SuggestedMin)
	assert.Contains(t, rec.Rationale, "5 acquires waited")
}

func TestPlanGrowWinsOverShrink(t *testing.T) {
	// Low utilization and waiting acquires at once: both actions are
	// reported, but the grow target is the one suggested.
	rec := Plan(schema.PoolMetrics{TotalCount: 20, IdleCount: 1, WaitingCount: 3})

	require.Equal(t, []schema.PoolAction{schema.ShrinkPool, schema.GrowPool}, rec.Actions)
	assert.Equal(t, 26, rec.SuggestedMax)
	assert.Contains(t, rec.Rationale, "oversized")
	assert.Contains(t, rec.Rationale, "growing takes precedence")
}

func TestPlanHealthyPoolHolds(t *testing.T) {
	rec := Plan(schema.PoolMetrics{TotalCount: 20, IdleCount: 10, WaitingCount: 0})

	assert.Empty(t, rec.Actions)
	assert.Equal(t, 20, rec.SuggestedMax)
	assert.Equal(t, 5, rec.SuggestedMin)
	assert.Contains(t, rec.Rationale, "current sizing holds")
}

func TestPlanEmptyPool(t *testing.T) {
	// A pool with zero connections has no utilization signal; nothing to
	// shrink.
	rec := Plan(schema.PoolMetrics{})

	assert.Empty(t, rec.Actions)
	assert.Equal(t, MinPoolSize, rec.SuggestedMax)
	assert.Equal(t, MinPoolSize, rec.SuggestedMin)
	assert.Zero(t, rec.Utilization)
}

func TestPlanGrowClampsToMax(t *testing.T) {
	rec := Plan(schema.PoolMetrics{TotalCount: 90, IdleCount: 40, WaitingCount: 50})

	assert.Equal(t, MaxPoolSize, rec.SuggestedMax)
	assert.Equal(t, 25, rec.SuggestedMin)
}

func TestPlanShrinkClampsToMin(t *testing.T) {
	rec := Plan(schema.PoolMetrics{TotalCount: 6, IdleCount: 1, WaitingCount: 0})

	// ceil(6 * 0.6) = 4, below the floor.
	require.Equal(t, []schema.PoolAction{schema.ShrinkPool}, rec.Actions)
	assert.Equal(t, MinPoolSize, rec.SuggestedMax)
	assert.Equal(t, MinPoolSize, rec.SuggestedMin)
}

func TestPlanUtilizationAtThresholdDoesNotShrink(t *testing.T) {
	rec := Plan(schema.PoolMetrics{TotalCount: 20, IdleCount: 4, WaitingCount: 0})

	assert.Empty(t, rec.Actions)
	assert.InDelta(t, 0.2, rec.Utilization, 0.0001)
}
