package viz_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgraph-go/memgraph/pkg/graph"
	"github.com/memgraph-go/memgraph/pkg/storage"
	"github.com/memgraph-go/memgraph/pkg/traverse"
	"github.com/memgraph-go/memgraph/pkg/viz"
)

func diagramResult(t *testing.T) *traverse.Result {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	g := graph.New("proj")
	require.NoError(t, g.AddNode(&storage.MemoryNode{ID: "mem_1", Content: "A", Timestamp: base}))
	require.NoError(t, g.AddNode(&storage.MemoryNode{ID: "mem_2", Content: "B", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, g.AddEdge(storage.GraphEdge{Source: "mem_2", Target: "mem_1", Type: "relates_to", Strength: 0.7}))

	engine := traverse.New(g, nil)
	result, err := engine.Traverse(context.Background(), &traverse.Options{
		StartNodeID: "mem_2",
		MaxDepth:    1,
	})
	require.NoError(t, err)
	return result
}

func TestRenderTraversal_EdgeLabels(t *testing.T) {
	result := diagramResult(t)

	out, err := viz.RenderTraversal(result, &viz.Options{
		Direction:       viz.LeftRight,
		IncludeStrength: true,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, `mem_2["B"]`)
	assert.Contains(t, out, `mem_1["A"]`)
	assert.Contains(t, out, "mem_2 -->|relates_to (0.70)| mem_1")

	plain, err := viz.RenderTraversal(result, &viz.Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plain, "graph TB\n"))
	assert.Contains(t, plain, "mem_2 -->|relates_to| mem_1")
	assert.NotContains(t, plain, "0.70")
}

func TestRenderTraversal_Deterministic(t *testing.T) {
	result := diagramResult(t)
	opts := &viz.Options{Direction: viz.TopDown, IncludeStrength: true}

	first, err := viz.RenderTraversal(result, opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := viz.RenderTraversal(result, opts)
		require.NoError(t, err)
		assert.Equal(t, first, again, "identical input must yield byte-identical output")
	}
}

func TestRenderTraversal_ParallelEdges(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	g := graph.New("proj")
	require.NoError(t, g.AddNode(&storage.MemoryNode{ID: "mem_1", Content: "A", Timestamp: base}))
	require.NoError(t, g.AddNode(&storage.MemoryNode{ID: "mem_2", Content: "B", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, g.AddEdge(storage.GraphEdge{Source: "mem_2", Target: "mem_1", Type: "relates_to", Strength: 0.7}))
	require.NoError(t, g.AddEdge(storage.GraphEdge{Source: "mem_2", Target: "mem_1", Type: "relates_to", Strength: 0.3}))

	engine := traverse.New(g, nil)
	result, err := engine.Traverse(context.Background(), &traverse.Options{
		StartNodeID: "mem_2",
		MaxDepth:    1,
	})
	require.NoError(t, err)

	out, err := viz.RenderTraversal(result, &viz.Options{IncludeStrength: true})
	require.NoError(t, err)

	assert.Contains(t, out, "mem_2 -->|relates_to (0.70)| mem_1")
	assert.Contains(t, out, "mem_2 -->|relates_to (0.30)| mem_1")

	// One physical edge still renders once even though the traversal
	// holds an outgoing and an incoming copy of it.
	single := diagramResult(t)
	out, err = viz.RenderTraversal(single, &viz.Options{IncludeStrength: true})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "mem_2 -->|relates_to (0.70)| mem_1"))
}

func TestRenderTraversal_InvalidDirection(t *testing.T) {
	result := diagramResult(t)

	_, err := viz.RenderTraversal(result, &viz.Options{Direction: "XX"})
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestRenderGraph_EscapingAndTruncation(t *testing.T) {
	nodes := []*storage.MemoryNode{
		{ID: "n1", Content: `say "hi" to [everyone] | always`, Timestamp: time.Now()},
		{ID: "n2", Content: strings.Repeat("x", 50), Timestamp: time.Now()},
	}

	out, err := viz.RenderGraph(nodes, nil, &viz.Options{
		Content: viz.ContentFormat{MaxLength: 10, TruncationSuffix: "…"},
	})
	require.NoError(t, err)

	assert.NotContains(t, out, `"hi"`, "quotes must be escaped")
	assert.Contains(t, out, "#quot;")
	assert.Contains(t, out, "#91;")
	assert.Contains(t, out, "#124;")
	assert.Contains(t, out, "xxxxxxxxxx…")
	assert.NotContains(t, out, strings.Repeat("x", 11))
}

func TestRenderGraph_EdgeFilter(t *testing.T) {
	ts := time.Now()
	nodes := []*storage.MemoryNode{
		{ID: "n1", Content: "one", Timestamp: ts},
		{ID: "n2", Content: "two", Timestamp: ts},
		{ID: "n3", Content: "three", Timestamp: ts},
	}
	edges := []storage.GraphEdge{
		{Source: "n1", Target: "n2", Type: "relates_to", Strength: 0.3},
		{Source: "n1", Target: "n3", Type: "depends_on", Strength: 0.9},
		{Source: "n2", Target: "absent", Type: "relates_to", Strength: 0.9},
	}

	out, err := viz.RenderGraph(nodes, edges, &viz.Options{MinStrength: 0.5})
	require.NoError(t, err)

	assert.Contains(t, out, "n1 -->|depends_on| n3")
	assert.NotContains(t, out, "n1 -->|relates_to| n2", "below min strength")
	assert.NotContains(t, out, "absent", "edges to missing nodes dropped")
}

func TestRenderTraversal_MultiDomainSubgraphs(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	other := graph.New("lib")
	require.NoError(t, other.AddNode(&storage.MemoryNode{ID: "x", Content: "ref target", Timestamp: base}))

	home := graph.New("main")
	require.NoError(t, home.AddNode(&storage.MemoryNode{
		ID:         "a",
		Content:    "origin",
		Timestamp:  base,
		DomainRefs: []storage.DomainRef{{TargetDomain: "lib", TargetNodeID: "x", Description: "see also"}},
	}))

	loader := func(ctx context.Context, domain string) (*graph.Graph, error) {
		return other, nil
	}
	engine := traverse.New(home, loader)
	result, err := engine.Traverse(context.Background(), &traverse.Options{
		StartNodeID:          "a",
		MaxDepth:             1,
		FollowDomainPointers: true,
	})
	require.NoError(t, err)

	out, err := viz.RenderTraversal(result, &viz.Options{})
	require.NoError(t, err)

	assert.Contains(t, out, "subgraph main")
	assert.Contains(t, out, "subgraph lib")
	assert.Contains(t, out, `main__a["origin"]`)
	assert.Contains(t, out, `lib__x["ref target"]`)
	assert.Contains(t, out, "main__a -.->|see also| lib__x")
}
