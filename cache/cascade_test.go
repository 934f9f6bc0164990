package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphAcceptsDAG(t *testing.T) {
	g, err := NewGraph([]Edge{
		{Source: "users:*", Dependents: []string{"users:list", "reports:*"}},
		{Source: "reports:*", Dependents: []string{"dashboard:summary"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
}

func TestNewGraphRejectsDirectCycle(t *testing.T) {
	_, err := NewGraph([]Edge{
		{Source: "a:*", Dependents: []string{"b:*"}},
		{Source: "b:*", Dependents: []string{"a:*"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cascade cycle")
}

func TestNewGraphRejectsSelfCycle(t *testing.T) {
	_, err := NewGraph([]Edge{
		{Source: "a:*", Dependents: []string{"a:1"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cascade cycle")
}

func TestNewGraphRejectsLongCycle(t *testing.T) {
	_, err := NewGraph([]Edge{
		{Source: "a:*", Dependents: []string{"b:*"}},
		{Source: "b:*", Dependents: []string{"c:*"}},
		{Source: "c:*", Dependents: []string{"a:*"}},
	})
	assert.Error(t, err)
}

func TestNewGraphSharedDependentIsNotACycle(t *testing.T) {
	// Diamond shape: two edges feed the same dependent pattern.
	_, err := NewGraph([]Edge{
		{Source: "users:*", Dependents: []string{"summary:*"}},
		{Source: "orders:*", Dependents: []string{"summary:*"}},
	})
	assert.NoError(t, err)
}

func TestDependents(t *testing.T) {
	g, err := NewGraph([]Edge{
		{Source: "users:*", Dependents: []string{"users:list"}},
		{Source: "orders:*", Dependents: []string{"reports:daily"}},
	})
	require.NoError(t, err)

	visited := make([]bool, g.Len())
	deps := g.Dependents("users:42", visited)
	assert.Equal(t, []string{"users:list"}, deps)
	assert.Equal(t, []bool{true, false}, visited)
}

func TestDependentsVisitsEdgeAtMostOnce(t *testing.T) {
	g, err := NewGraph([]Edge{
		{Source: "users:*", Dependents: []string{"users:list"}},
	})
	require.NoError(t, err)

	visited := make([]bool, g.Len())
	first := g.Dependents("users:1", visited)
	assert.Equal(t, []string{"users:list"}, first)

	// A second trigger within the same invalidation pass is a no-op.
	second := g.Dependents("users:2", visited)
	assert.Empty(t, second)
}

func TestDependentsMatchesBothDirections(t *testing.T) {
	g, err := NewGraph([]Edge{
		{Source: "users:42", Dependents: []string{"profile:42"}},
	})
	require.NoError(t, err)

	// A broader invalidation pattern covers the narrower edge source.
	visited := make([]bool, g.Len())
	deps := g.Dependents("users:*", visited)
	assert.Equal(t, []string{"profile:42"}, deps)
}

func TestGraphLenNil(t *testing.T) {
	var g *Graph
	assert.Equal(t, 0, g.Len())
}
