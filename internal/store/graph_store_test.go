package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnicontext/omnicontext-core/internal/graph"
)

func TestSQLiteStore_DependencyEdgesRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), ".omnicontext", "metadata.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	edges := []graph.Edge{
		{Source: 1, Target: 2, Kind: graph.EdgeCalls, Weight: 1},
		{Source: 2, Target: 3, Kind: graph.EdgeImport, Weight: 1},
	}
	require.NoError(t, store.SaveDependencyEdges(ctx, edges))

	loaded, err := store.GetAllDependencyEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	// Re-saving the same (source, target, kind) updates weight, not duplicates.
	require.NoError(t, store.SaveDependencyEdges(ctx, []graph.Edge{
		{Source: 1, Target: 2, Kind: graph.EdgeCalls, Weight: 5},
	}))
	loaded, err = store.GetAllDependencyEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	require.NoError(t, store.DeleteDependencyEdgesFrom(ctx, []int64{1}))
	loaded, err = store.GetAllDependencyEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Equal(t, int64(2), loaded[0].Source)
}

func TestSQLiteStore_CommunitiesRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), ".omnicontext", "metadata.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	communities := []graph.Community{
		{ID: 0, Modularity: 0.42, Members: []int64{1, 2, 3}},
		{ID: 1, Modularity: 0.31, Members: []int64{4, 5}},
	}
	require.NoError(t, store.SaveCommunities(ctx, communities))

	loaded, err := store.GetCommunities(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, []int64{1, 2, 3}, loaded[0].Members)
	assert.Equal(t, []int64{4, 5}, loaded[1].Members)

	// Saving again replaces the prior snapshot rather than appending.
	require.NoError(t, store.SaveCommunities(ctx, communities[:1]))
	loaded, err = store.GetCommunities(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}
