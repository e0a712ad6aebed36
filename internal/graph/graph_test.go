package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddEdgeIdempotent(t *testing.T) {
	g := New(2)

	require.NoError(t, g.AddEdge(1, 2, EdgeCalls, 1.0))
	require.NoError(t, g.AddEdge(1, 2, EdgeCalls, 5.0))

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 1, g.InDegree(2))
}

func TestGraph_DistinctKindsAreSeparateEdges(t *testing.T) {
	g := New(2)
	require.NoError(t, g.AddEdge(1, 2, EdgeCalls, 1.0))
	require.NoError(t, g.AddEdge(1, 2, EdgeImport, 1.0))

	assert.Equal(t, 2, g.EdgeCount())
}

func TestGraph_NeighborsBFS(t *testing.T) {
	g := New(5)
	require.NoError(t, g.AddEdges([]Edge{
		{Source: 1, Target: 2, Kind: EdgeCalls},
		{Source: 2, Target: 3, Kind: EdgeCalls},
		{Source: 3, Target: 4, Kind: EdgeCalls},
	}))

	neighbors := g.Neighbors(1, DirectionDownstream, 2)
	require.Len(t, neighbors, 2)
	assert.Equal(t, int64(2), neighbors[0].SymbolID)
	assert.Equal(t, 1, neighbors[0].Distance)
	assert.Equal(t, int64(3), neighbors[1].SymbolID)
	assert.Equal(t, 2, neighbors[1].Distance)

	// Upstream from 4 should find 3 then 2 (depth 2)
	up := g.Neighbors(4, DirectionUpstream, 2)
	require.Len(t, up, 2)
	assert.Equal(t, int64(3), up[0].SymbolID)
}

func TestGraph_ShortestDistanceCappedAtMaxDepth(t *testing.T) {
	g := New(1)
	require.NoError(t, g.AddEdges([]Edge{
		{Source: 1, Target: 2, Kind: EdgeCalls},
		{Source: 2, Target: 3, Kind: EdgeCalls},
	}))

	d, ok := g.ShortestDistance(1, 2, 1)
	require.True(t, ok)
	assert.Equal(t, 1, d)

	_, ok = g.ShortestDistance(1, 3, 1)
	assert.False(t, ok, "distance 2 should be out of range for maxDepth=1")

	d, ok = g.ShortestDistance(1, 3, 2)
	require.True(t, ok)
	assert.Equal(t, 2, d)
}

func TestGraph_DetectCyclesOnlyExtendsImplements(t *testing.T) {
	g := New(3)
	// Calls cycle: legal, should not trip DetectCycles.
	require.NoError(t, g.AddEdges([]Edge{
		{Source: 1, Target: 2, Kind: EdgeCalls},
		{Source: 2, Target: 1, Kind: EdgeCalls},
	}))
	assert.False(t, g.DetectCycles())

	// Extends cycle: illegal per spec invariant, should be detected.
	require.NoError(t, g.AddEdges([]Edge{
		{Source: 10, Target: 11, Kind: EdgeExtends},
		{Source: 11, Target: 10, Kind: EdgeExtends},
	}))
	assert.True(t, g.DetectCycles())
	assert.NotEmpty(t, g.CycleNodes())
}

func TestGraph_DetectCommunities(t *testing.T) {
	g := New(2)
	// Two dense clusters {1,2,3} and {4,5,6} with a single bridge edge.
	require.NoError(t, g.AddEdges([]Edge{
		{Source: 1, Target: 2, Kind: EdgeCalls, Weight: 1},
		{Source: 2, Target: 3, Kind: EdgeCalls, Weight: 1},
		{Source: 1, Target: 3, Kind: EdgeCalls, Weight: 1},
		{Source: 4, Target: 5, Kind: EdgeCalls, Weight: 1},
		{Source: 5, Target: 6, Kind: EdgeCalls, Weight: 1},
		{Source: 4, Target: 6, Kind: EdgeCalls, Weight: 1},
		{Source: 3, Target: 4, Kind: EdgeCalls, Weight: 0.1},
	}))

	communities := g.DetectCommunities(0.01)
	require.NotEmpty(t, communities)

	seen := make(map[int64]struct{})
	for _, c := range communities {
		for _, m := range c.Members {
			seen[m] = struct{}{}
		}
	}
	for _, n := range []int64{1, 2, 3, 4, 5, 6} {
		_, ok := seen[n]
		assert.True(t, ok, "node %d should be assigned to a community", n)
	}
}

func TestGraph_SaveLoadRoundTrip(t *testing.T) {
	g := New(2)
	require.NoError(t, g.AddEdges([]Edge{
		{Source: 1, Target: 2, Kind: EdgeCalls, Weight: 1},
		{Source: 2, Target: 3, Kind: EdgeImport, Weight: 2},
	}))

	path := filepath.Join(t.TempDir(), "graph.bin")
	require.NoError(t, g.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, g.NodeCount(), reloaded.NodeCount())
	assert.Equal(t, g.EdgeCount(), reloaded.EdgeCount())
	assert.Equal(t, g.InDegree(3), reloaded.InDegree(3))
}

func TestLoad_MissingFileReturnsEmptyGraph(t *testing.T) {
	g, err := Load(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	require.NoError(t, err)
	assert.Equal(t, 0, g.EdgeCount())
}
