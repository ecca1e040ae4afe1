// Package recall provides the strategy-driven flat recall engine.
//
// A recall runs one strategy (or a combination) over the in-memory graph
// of the current domain and the storage backend's full-text index, and
// returns a flat, deduplicated node list. Every strategy is validated
// before any storage call is made.
package recall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/memgraph-go/memgraph/pkg/graph"
	"github.com/memgraph-go/memgraph/pkg/storage"
)

// Strategy names one recall strategy.
type Strategy string

const (
	// StrategyRecent returns the most recent N nodes by timestamp.
	StrategyRecent Strategy = "recent"

	// StrategyRelated expands neighbors from a start node, bounded by
	// relationship types and minimum strength.
	StrategyRelated Strategy = "related"

	// StrategyPath returns nodes whose path matches a prefix.
	StrategyPath Strategy = "path"

	// StrategyTag returns nodes carrying every given tag.
	StrategyTag Strategy = "tag"

	// StrategyContent matches node content via the backend's search.
	StrategyContent Strategy = "content"

	// StrategyCombined unions the results of several sub-strategies.
	StrategyCombined Strategy = "combined"
)

// SortOrder reorders the final result set.
type SortOrder string

const (
	// SortNative keeps the strategy's own order (BFS discovery order,
	// recency order, relevance order).
	SortNative SortOrder = ""

	// SortRelevance orders by content match score, descending.
	SortRelevance SortOrder = "relevance"

	// SortDate orders by node timestamp, descending.
	SortDate SortOrder = "date"

	// SortStrength orders by best adjacent edge strength, descending.
	SortStrength SortOrder = "strength"
)

// Request parameterizes one recall.
//
// Strategy is always required. The other requirements depend on it:
// related needs StartNodeID, path needs Path, tag needs Tags, content
// needs Query, combined needs Strategies. Before/After apply as an
// additional intersection filter on any strategy; MinStrength applies
// only where an edge is involved.
type Request struct {
	// Strategy selects the recall strategy.
	Strategy Strategy

	// MaxNodes caps the result count. Zero means no cap, except for
	// recent, where zero falls back to DefaultRecentLimit.
	MaxNodes int

	// StartNodeID is the origin for related recall.
	StartNodeID string

	// RelationshipTypes bounds edge expansion. Empty means all types.
	RelationshipTypes []string

	// MinStrength bounds edge expansion, in [0,1].
	MinStrength float64

	// MaxDepth extends related recall beyond direct neighbors.
	// Zero means direct neighbors only.
	MaxDepth int

	// Path is the path prefix for path recall.
	Path string

	// Tags is the tag set for tag recall (AND semantics).
	Tags []string

	// Query is the content recall query.
	Query string

	// Mode selects keyword, fuzzy, or regex content matching.
	Mode storage.MatchMode

	// Before and After bound node timestamps (exclusive).
	Before *time.Time
	After  *time.Time

	// SortBy reorders the final set.
	SortBy SortOrder

	// MatchDetails attaches matched terms and positions to content hits.
	MatchDetails bool

	// Strategies are the sub-queries of a combined recall, each with
	// its own cap. Nested combined strategies are rejected.
	Strategies []Request
}

// DefaultRecentLimit is the node cap for recent recall when none is set.
const DefaultRecentLimit = 10

// MatchDetail carries content match information for one node.
type MatchDetail struct {
	// Terms are the matched query terms and their byte positions.
	Terms []storage.TermMatch `json:"terms"`

	// Score is the relevance score.
	Score float64 `json:"score"`
}

// Result is a flat, deduplicated recall result.
type Result struct {
	// Nodes in strategy-native (or sorted) order.
	Nodes []*storage.MemoryNode

	// Scores holds content relevance by node ID for nodes found via
	// content matching.
	Scores map[string]float64

	// Matches holds match details by node ID when requested.
	Matches map[string]*MatchDetail
}

// Engine executes recalls over one domain graph and the backing store.
type Engine struct {
	graph *graph.Graph
	store storage.Store
}

// New creates a recall engine for the given graph and store.
func New(g *graph.Graph, store storage.Store) *Engine {
	return &Engine{graph: g, store: store}
}

// Validate checks the request without touching storage.
// A missing strategy-required parameter yields ErrInvalidArgument.
func Validate(req *Request) error {
	if req == nil {
		return fmt.Errorf("recall: nil request: %w", storage.ErrInvalidArgument)
	}
	if req.MinStrength < 0 || req.MinStrength > 1 {
		return fmt.Errorf("recall: minStrength %v outside [0,1]: %w", req.MinStrength, storage.ErrInvalidArgument)
	}
	for _, t := range req.RelationshipTypes {
		if !graph.KnownType(t) {
			return fmt.Errorf("recall: unknown relationship type %q: %w", t, storage.ErrInvalidArgument)
		}
	}

	switch req.Strategy {
	case StrategyRecent:
		return nil
	case StrategyRelated:
		if req.StartNodeID == "" {
			return fmt.Errorf("recall: related requires startNodeId: %w", storage.ErrInvalidArgument)
		}
	case StrategyPath:
		if req.Path == "" {
			return fmt.Errorf("recall: path requires path: %w", storage.ErrInvalidArgument)
		}
	case StrategyTag:
		if len(req.Tags) == 0 {
			return fmt.Errorf("recall: tag requires tags: %w", storage.ErrInvalidArgument)
		}
	case StrategyContent:
		if req.Query == "" {
			return fmt.Errorf("recall: content requires query: %w", storage.ErrInvalidArgument)
		}
	case StrategyCombined:
		if len(req.Strategies) == 0 {
			return fmt.Errorf("recall: combined requires sub-strategies: %w", storage.ErrInvalidArgument)
		}
		for i := range req.Strategies {
			sub := &req.Strategies[i]
			if sub.Strategy == StrategyCombined {
				return fmt.Errorf("recall: nested combined strategy: %w", storage.ErrInvalidArgument)
			}
			if err := Validate(sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("recall: unknown strategy %q: %w", req.Strategy, storage.ErrInvalidArgument)
	}
	return nil
}

// Recall validates and executes the request.
func (e *Engine) Recall(ctx context.Context, req *Request) (*Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	result, err := e.run(ctx, req)
	if err != nil {
		return nil, err
	}

	result.Nodes = filterByTime(result.Nodes, req.Before, req.After)
	if req.MaxNodes > 0 && len(result.Nodes) > req.MaxNodes {
		result.Nodes = result.Nodes[:req.MaxNodes]
	}
	e.sortResult(result, req.SortBy)
	return result, nil
}

func (e *Engine) run(ctx context.Context, req *Request) (*Result, error) {
	switch req.Strategy {
	case StrategyRecent:
		return e.recallRecent(req), nil
	case StrategyRelated:
		return e.recallRelated(req)
	case StrategyPath:
		return e.recallPath(req), nil
	case StrategyTag:
		return e.recallTag(req), nil
	case StrategyContent:
		return e.recallContent(ctx, req)
	case StrategyCombined:
		return e.recallCombined(ctx, req)
	default:
		return nil, fmt.Errorf("recall: unknown strategy %q: %w", req.Strategy, storage.ErrInvalidArgument)
	}
}

func (e *Engine) recallRecent(req *Request) *Result {
	limit := req.MaxNodes
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	nodes := e.graph.NodesByRecency()
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return newResult(nodes)
}

// recallRelated runs a bounded BFS from the start node. Direct neighbors
// only unless MaxDepth extends it. The start node itself is not part of
// the result.
func (e *Engine) recallRelated(req *Request) (*Result, error) {
	if _, err := e.graph.Get(req.StartNodeID); err != nil {
		return nil, err
	}

	depth := req.MaxDepth
	if depth <= 0 {
		depth = 1
	}

	type item struct {
		id    string
		depth int
	}
	visited := map[string]bool{req.StartNodeID: true}
	queue := []item{{id: req.StartNodeID}}
	var nodes []*storage.MemoryNode

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		for _, nb := range e.graph.Neighbors(cur.id, req.RelationshipTypes, req.MinStrength) {
			if visited[nb.NodeID] {
				continue
			}
			visited[nb.NodeID] = true
			node, err := e.graph.Get(nb.NodeID)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
			queue = append(queue, item{id: nb.NodeID, depth: cur.depth + 1})
		}
	}
	return newResult(nodes), nil
}

func (e *Engine) recallPath(req *Request) *Result {
	var nodes []*storage.MemoryNode
	for _, node := range e.graph.NodesByRecency() {
		if node.Path == req.Path || hasPathPrefix(node.Path, req.Path) {
			nodes = append(nodes, node)
		}
	}
	return newResult(nodes)
}

func (e *Engine) recallTag(req *Request) *Result {
	var nodes []*storage.MemoryNode
	for _, node := range e.graph.NodesByRecency() {
		if hasAllTags(node.Tags, req.Tags) {
			nodes = append(nodes, node)
		}
	}
	return newResult(nodes)
}

func (e *Engine) recallContent(ctx context.Context, req *Request) (*Result, error) {
	hits, err := e.store.SearchContent(ctx, req.Query, &storage.SearchOptions{
		Domain:     e.graph.Domain,
		MaxResults: req.MaxNodes,
		Mode:       req.Mode,
	})
	if err != nil {
		return nil, err
	}

	result := newResult(nil)
	terms := storage.Tokenize(req.Query)
	for _, hit := range hits {
		// Prefer the cached node so edits in the current session win
		// over the persisted row.
		node := hit.Node
		if cached, ok := e.graph.Nodes[node.ID]; ok {
			node = cached
		}
		result.Nodes = append(result.Nodes, node)
		result.Scores[node.ID] = hit.Score
		if req.MatchDetails {
			result.Matches[node.ID] = &MatchDetail{
				Terms: storage.TermPositions(node.Content, terms),
				Score: hit.Score,
			}
		}
	}
	return result, nil
}

// recallCombined runs each sub-strategy independently with its own cap,
// then unions the result sets, deduplicating by node ID.
func (e *Engine) recallCombined(ctx context.Context, req *Request) (*Result, error) {
	union := newResult(nil)
	seen := map[string]bool{}

	for i := range req.Strategies {
		sub := &req.Strategies[i]
		subResult, err := e.run(ctx, sub)
		if err != nil {
			return nil, err
		}
		nodes := filterByTime(subResult.Nodes, sub.Before, sub.After)
		if sub.MaxNodes > 0 && len(nodes) > sub.MaxNodes {
			nodes = nodes[:sub.MaxNodes]
		}
		for _, node := range nodes {
			if !seen[node.ID] {
				seen[node.ID] = true
				union.Nodes = append(union.Nodes, node)
			}
			if score, ok := subResult.Scores[node.ID]; ok && score > union.Scores[node.ID] {
				union.Scores[node.ID] = score
			}
			if detail, ok := subResult.Matches[node.ID]; ok {
				union.Matches[node.ID] = detail
			}
		}
	}
	return union, nil
}

func (e *Engine) sortResult(result *Result, order SortOrder) {
	switch order {
	case SortRelevance:
		sort.SliceStable(result.Nodes, func(i, j int) bool {
			return result.Scores[result.Nodes[i].ID] > result.Scores[result.Nodes[j].ID]
		})
	case SortDate:
		sort.SliceStable(result.Nodes, func(i, j int) bool {
			return result.Nodes[i].Timestamp.After(result.Nodes[j].Timestamp)
		})
	case SortStrength:
		sort.SliceStable(result.Nodes, func(i, j int) bool {
			return e.graph.BestStrength(result.Nodes[i].ID) > e.graph.BestStrength(result.Nodes[j].ID)
		})
	}
}

func newResult(nodes []*storage.MemoryNode) *Result {
	return &Result{
		Nodes:   nodes,
		Scores:  map[string]float64{},
		Matches: map[string]*MatchDetail{},
	}
}

func filterByTime(nodes []*storage.MemoryNode, before, after *time.Time) []*storage.MemoryNode {
	if before == nil && after == nil {
		return nodes
	}
	kept := nodes[:0:0]
	for _, node := range nodes {
		if before != nil && !node.Timestamp.Before(*before) {
			continue
		}
		if after != nil && !node.Timestamp.After(*after) {
			continue
		}
		kept = append(kept, node)
	}
	return kept
}

func hasPathPrefix(path, prefix string) bool {
	if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
		return false
	}
	// "/x" matches "/x/y" but not "/xy".
	return prefix == "/" || path[len(prefix)] == '/'
}

func hasAllTags(tags, wanted []string) bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	for _, w := range wanted {
		if !set[w] {
			return false
		}
	}
	return true
}
