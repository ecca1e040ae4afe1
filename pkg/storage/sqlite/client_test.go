package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgraph-go/memgraph/pkg/storage"
	sqliteStore "github.com/memgraph-go/memgraph/pkg/storage/sqlite"
)

func setupSQLiteTest(t *testing.T) storage.Store {
	t.Helper()

	store, err := sqliteStore.NewStore(&sqliteStore.Config{
		DBPath: filepath.Join(t.TempDir(), "test_memgraph.db"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Domains(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateDomain(ctx, &storage.Domain{
		ID: "proj", Name: "Project", Description: "notes", Created: ts, LastAccess: ts,
	}))

	err := store.CreateDomain(ctx, &storage.Domain{ID: "proj", Name: "Again"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	domains, err := store.GetDomains(ctx)
	require.NoError(t, err)
	require.Contains(t, domains, "proj")
	assert.Equal(t, "Project", domains["proj"].Name)
	assert.Equal(t, "notes", domains["proj"].Description)
	assert.True(t, domains["proj"].Created.Equal(ts))
}

func TestSQLiteStore_PersistenceState(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	state, err := store.GetPersistenceState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.CurrentDomain)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SavePersistenceState(ctx, &storage.PersistenceState{
		CurrentDomain: "proj", LastAccess: ts, LastMemoryID: "mem_7",
	}))

	state, err = store.GetPersistenceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "proj", state.CurrentDomain)
	assert.Equal(t, "mem_7", state.LastMemoryID)
	assert.True(t, state.LastAccess.Equal(ts))
}

func TestSQLiteStore_MemoriesRoundTrip(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateDomain(ctx, &storage.Domain{ID: "proj", Name: "Project", Created: ts, LastAccess: ts}))

	nodes := map[string]*storage.MemoryNode{
		"mem_1": {
			ID: "mem_1", Content: "budget review", Timestamp: ts, Path: "/x",
			Tags:       []string{"finance", "q3"},
			DomainRefs: []storage.DomainRef{{TargetDomain: "lib", TargetNodeID: "mem_9", Description: "src", Bidirectional: true}},
		},
		"mem_2": {ID: "mem_2", Content: "holiday planning", Timestamp: ts.Add(time.Minute), Path: "/"},
	}
	edges := []storage.GraphEdge{
		{Source: "mem_2", Target: "mem_1", Type: "relates_to", Strength: 0.7, Timestamp: ts},
	}
	require.NoError(t, store.SaveMemories(ctx, "proj", nodes, edges))

	gotNodes, gotEdges, err := store.GetMemories(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, gotNodes, 2)

	first := gotNodes["mem_1"]
	require.NotNil(t, first)
	assert.Equal(t, "budget review", first.Content)
	assert.Equal(t, "/x", first.Path)
	assert.ElementsMatch(t, []string{"finance", "q3"}, first.Tags)
	require.Len(t, first.DomainRefs, 1)
	assert.Equal(t, "lib", first.DomainRefs[0].TargetDomain)
	assert.True(t, first.DomainRefs[0].Bidirectional)
	assert.True(t, first.Timestamp.Equal(ts))

	require.Len(t, gotEdges, 1)
	assert.Equal(t, "mem_2", gotEdges[0].Source)
	assert.Equal(t, "mem_1", gotEdges[0].Target)
	assert.Equal(t, "relates_to", gotEdges[0].Type)
	assert.InDelta(t, 0.7, gotEdges[0].Strength, 1e-9)

	// A second save replaces the previous snapshot entirely.
	require.NoError(t, store.SaveMemories(ctx, "proj", map[string]*storage.MemoryNode{
		"mem_3": {ID: "mem_3", Content: "only survivor", Timestamp: ts, Path: "/"},
	}, nil))
	gotNodes, gotEdges, err = store.GetMemories(ctx, "proj")
	require.NoError(t, err)
	assert.Len(t, gotNodes, 1)
	assert.Contains(t, gotNodes, "mem_3")
	assert.Empty(t, gotEdges)
}

func TestSQLiteStore_SearchContent(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, store.SaveMemories(ctx, "proj", map[string]*storage.MemoryNode{
		"mem_1": {ID: "mem_1", Content: "budget review for quarter", Timestamp: ts, Path: "/"},
		"mem_2": {ID: "mem_2", Content: "holiday planning", Timestamp: ts, Path: "/", Tags: []string{"budget"}},
	}, nil))
	require.NoError(t, store.SaveMemories(ctx, "other", map[string]*storage.MemoryNode{
		"mem_3": {ID: "mem_3", Content: "unrelated text", Timestamp: ts, Path: "/"},
	}, nil))

	hits, err := store.SearchContent(ctx, "budget", nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2, "content and tag matches via the maintained index")
	for _, hit := range hits {
		assert.Equal(t, "proj", hit.Domain)
		assert.Greater(t, hit.Score, 0.0)
	}

	scoped, err := store.SearchContent(ctx, "budget", &storage.SearchOptions{Domain: "other"})
	require.NoError(t, err)
	assert.Empty(t, scoped)

	fuzzy, err := store.SearchContent(ctx, "budgit reviev", &storage.SearchOptions{Mode: storage.MatchFuzzy})
	require.NoError(t, err)
	require.Len(t, fuzzy, 1)
	assert.Equal(t, "mem_1", fuzzy[0].Node.ID)

	re, err := store.SearchContent(ctx, "bud.et", &storage.SearchOptions{Mode: storage.MatchRegex})
	require.NoError(t, err)
	assert.Len(t, re, 2)

	// Index follows deletes in the same transaction.
	require.NoError(t, store.SaveMemories(ctx, "proj", nil, nil))
	gone, err := store.SearchContent(ctx, "budget", nil)
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestSQLiteStore_FindReferencesTo(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, store.SaveMemories(ctx, "a", map[string]*storage.MemoryNode{
		"mem_1": {ID: "mem_1", Content: "target", Timestamp: ts, Path: "/"},
	}, nil))
	require.NoError(t, store.SaveMemories(ctx, "b", map[string]*storage.MemoryNode{
		"mem_2": {
			ID: "mem_2", Content: "pointer", Timestamp: ts, Path: "/",
			DomainRefs: []storage.DomainRef{
				{TargetDomain: "a", TargetNodeID: "mem_1"},
				{TargetDomain: "a"},
			},
		},
	}, nil))

	refs, err := store.FindReferencesTo(ctx, "a", "mem_1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "b", refs[0].Domain)
	assert.Equal(t, "mem_2", refs[0].NodeID)
}
