package recall_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgraph-go/memgraph/pkg/graph"
	"github.com/memgraph-go/memgraph/pkg/recall"
	"github.com/memgraph-go/memgraph/pkg/storage"
)

// memoryStore is a minimal in-memory Store implementing just enough for
// content recall.
type memoryStore struct {
	storage.Store
	graphs map[string]*graph.Graph
}

func (m *memoryStore) SearchContent(ctx context.Context, query string, opts *storage.SearchOptions) ([]*storage.SearchHit, error) {
	terms := storage.Tokenize(query)
	var hits []*storage.SearchHit
	for domain, g := range m.graphs {
		if opts != nil && opts.Domain != "" && opts.Domain != domain {
			continue
		}
		for _, node := range g.Nodes {
			score := storage.ScoreContent(storage.IndexText(node), terms)
			if score > 0 {
				hits = append(hits, &storage.SearchHit{Domain: domain, Node: node, Score: score})
			}
		}
	}
	max := 0
	if opts != nil {
		max = opts.MaxResults
	}
	return storage.SortHits(hits, max), nil
}

func setupRecallTest(t *testing.T) (*recall.Engine, *graph.Graph) {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	g := graph.New("test")
	nodes := []*storage.MemoryNode{
		{ID: "a", Content: "alpha budget review", Timestamp: base, Path: "/work/finance", Tags: []string{"t1", "t2"}},
		{ID: "b", Content: "beta standup notes", Timestamp: base.Add(time.Minute), Path: "/work", Tags: []string{"t1"}},
		{ID: "c", Content: "gamma holiday plan", Timestamp: base.Add(2 * time.Minute), Path: "/personal", Tags: []string{"t2"}},
		{ID: "d", Content: "delta budget forecast", Timestamp: base.Add(3 * time.Minute), Path: "/work/finance", Tags: nil},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.AddEdge(storage.GraphEdge{Source: "a", Target: "b", Type: "relates_to", Strength: 0.5}))
	require.NoError(t, g.AddEdge(storage.GraphEdge{Source: "a", Target: "c", Type: "relates_to", Strength: 0.95}))
	require.NoError(t, g.AddEdge(storage.GraphEdge{Source: "c", Target: "d", Type: "precedes", Strength: 0.8}))

	store := &memoryStore{graphs: map[string]*graph.Graph{"test": g}}
	return recall.New(g, store), g
}

func TestRecall_Validation(t *testing.T) {
	engine, _ := setupRecallTest(t)
	ctx := context.Background()

	cases := []*recall.Request{
		{Strategy: "bogus"},
		{Strategy: recall.StrategyRelated},
		{Strategy: recall.StrategyPath},
		{Strategy: recall.StrategyTag},
		{Strategy: recall.StrategyContent},
		{Strategy: recall.StrategyCombined},
		{Strategy: recall.StrategyRecent, MinStrength: 1.5},
		{Strategy: recall.StrategyRelated, StartNodeID: "a", RelationshipTypes: []string{"made_up"}},
		{Strategy: recall.StrategyCombined, Strategies: []recall.Request{{Strategy: recall.StrategyCombined}}},
	}
	for _, req := range cases {
		_, err := engine.Recall(ctx, req)
		assert.ErrorIs(t, err, storage.ErrInvalidArgument, "request %+v", req)
	}
}

func TestRecall_Recent(t *testing.T) {
	engine, _ := setupRecallTest(t)

	result, err := engine.Recall(context.Background(), &recall.Request{
		Strategy: recall.StrategyRecent,
		MaxNodes: 1,
	})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "d", result.Nodes[0].ID, "most recently stored node wins")
}

func TestRecall_Related_MinStrength(t *testing.T) {
	engine, _ := setupRecallTest(t)

	result, err := engine.Recall(context.Background(), &recall.Request{
		Strategy:    recall.StrategyRelated,
		StartNodeID: "a",
		MinStrength: 0.9,
	})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "c", result.Nodes[0].ID, "only the strong edge survives")
}

func TestRecall_Related_ExcludesStartAndRespectsDepth(t *testing.T) {
	engine, _ := setupRecallTest(t)
	ctx := context.Background()

	direct, err := engine.Recall(ctx, &recall.Request{
		Strategy:    recall.StrategyRelated,
		StartNodeID: "a",
	})
	require.NoError(t, err)
	ids := nodeIDs(direct.Nodes)
	assert.ElementsMatch(t, []string{"b", "c"}, ids, "direct neighbors only")

	deep, err := engine.Recall(ctx, &recall.Request{
		Strategy:    recall.StrategyRelated,
		StartNodeID: "a",
		MaxDepth:    2,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c", "d"}, nodeIDs(deep.Nodes))

	_, err = engine.Recall(ctx, &recall.Request{
		Strategy:    recall.StrategyRelated,
		StartNodeID: "ghost",
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecall_Path(t *testing.T) {
	engine, _ := setupRecallTest(t)

	result, err := engine.Recall(context.Background(), &recall.Request{
		Strategy: recall.StrategyPath,
		Path:     "/work",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "d"}, nodeIDs(result.Nodes), "prefix matches subtree")

	exact, err := engine.Recall(context.Background(), &recall.Request{
		Strategy: recall.StrategyPath,
		Path:     "/work/finance",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "d"}, nodeIDs(exact.Nodes))
}

func TestRecall_Tag_ANDSemantics(t *testing.T) {
	engine, _ := setupRecallTest(t)

	result, err := engine.Recall(context.Background(), &recall.Request{
		Strategy: recall.StrategyTag,
		Tags:     []string{"t1", "t2"},
	})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "a", result.Nodes[0].ID, "every tag must be present")
}

func TestRecall_Content_WithMatchDetails(t *testing.T) {
	engine, _ := setupRecallTest(t)

	result, err := engine.Recall(context.Background(), &recall.Request{
		Strategy:     recall.StrategyContent,
		Query:        "budget",
		MatchDetails: true,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "d"}, nodeIDs(result.Nodes))

	for _, id := range []string{"a", "d"} {
		assert.Greater(t, result.Scores[id], 0.0)
		require.Contains(t, result.Matches, id)
		require.NotEmpty(t, result.Matches[id].Terms)
		assert.Equal(t, "budget", result.Matches[id].Terms[0].Term)
		assert.NotEmpty(t, result.Matches[id].Terms[0].Positions)
	}
}

func TestRecall_Combined_UnionDeduplicates(t *testing.T) {
	engine, _ := setupRecallTest(t)

	result, err := engine.Recall(context.Background(), &recall.Request{
		Strategy: recall.StrategyCombined,
		Strategies: []recall.Request{
			{Strategy: recall.StrategyPath, Path: "/work/finance", MaxNodes: 1},
			{Strategy: recall.StrategyTag, Tags: []string{"t2"}, MaxNodes: 1},
		},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Nodes), 2)

	seen := map[string]int{}
	for _, node := range result.Nodes {
		seen[node.ID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "node %s duplicated", id)
	}
}

func TestRecall_TimeFilterAndSort(t *testing.T) {
	engine, g := setupRecallTest(t)
	cutoff := g.Nodes["c"].Timestamp

	result, err := engine.Recall(context.Background(), &recall.Request{
		Strategy: recall.StrategyPath,
		Path:     "/work",
		Before:   &cutoff,
		SortBy:   recall.SortDate,
	})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, "b", result.Nodes[0].ID)
	assert.Equal(t, "a", result.Nodes[1].ID)
}

func nodeIDs(nodes []*storage.MemoryNode) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
