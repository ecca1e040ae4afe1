package graph

import (
	"fmt"
	"sort"

	"github.com/memgraph-go/memgraph/pkg/storage"
)

// Graph is the in-memory node/edge set of one domain.
//
// Nodes and edges live in flat maps and slices keyed by stable string
// IDs; nothing holds a direct cross-reference, so cycles are harmless
// and lookups always resolve by ID. A Graph is not safe for concurrent
// mutation; the owning session serializes writers.
type Graph struct {
	// Domain is the owning domain ID.
	Domain string

	// Nodes maps node ID to node.
	Nodes map[string]*storage.MemoryNode

	// Edges is the edge set; endpoints always exist in Nodes.
	Edges []storage.GraphEdge
}

// Neighbor is one step of expansion from a node.
type Neighbor struct {
	// NodeID is the neighboring node.
	NodeID string

	// Edge is the connecting edge.
	Edge storage.GraphEdge

	// Outgoing is true when the edge leaves the expanded node.
	Outgoing bool
}

// New returns an empty graph for the domain.
func New(domain string) *Graph {
	return &Graph{
		Domain: domain,
		Nodes:  map[string]*storage.MemoryNode{},
	}
}

// FromSnapshot builds a graph from a storage snapshot.
func FromSnapshot(domain string, nodes map[string]*storage.MemoryNode, edges []storage.GraphEdge) *Graph {
	if nodes == nil {
		nodes = map[string]*storage.MemoryNode{}
	}
	return &Graph{Domain: domain, Nodes: nodes, Edges: edges}
}

// Snapshot returns the node map and edge slice for flushing to storage.
func (g *Graph) Snapshot() (map[string]*storage.MemoryNode, []storage.GraphEdge) {
	return g.Nodes, g.Edges
}

// Clone returns a deep-enough copy for copy-on-write mutation: the maps
// and slices are fresh, node structs are copied, content strings shared.
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		Domain: g.Domain,
		Nodes:  make(map[string]*storage.MemoryNode, len(g.Nodes)),
		Edges:  make([]storage.GraphEdge, len(g.Edges)),
	}
	for id, node := range g.Nodes {
		copied := *node
		copied.Tags = append([]string(nil), node.Tags...)
		copied.DomainRefs = append([]storage.DomainRef(nil), node.DomainRefs...)
		clone.Nodes[id] = &copied
	}
	copy(clone.Edges, g.Edges)
	return clone
}

// Get returns the node, or ErrNotFound.
func (g *Graph) Get(id string) (*storage.MemoryNode, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", id, storage.ErrNotFound)
	}
	return node, nil
}

// AddNode inserts a node. Returns ErrConflict when the ID is taken.
func (g *Graph) AddNode(node *storage.MemoryNode) error {
	if node.ID == "" {
		return fmt.Errorf("AddNode: empty id: %w", storage.ErrInvalidArgument)
	}
	if _, ok := g.Nodes[node.ID]; ok {
		return fmt.Errorf("AddNode: %q: %w", node.ID, storage.ErrConflict)
	}
	if node.Path == "" {
		node.Path = "/"
	}
	g.Nodes[node.ID] = node
	return nil
}

// AddEdge inserts an edge after validating it: both endpoints must exist
// in this domain, the type must be in the vocabulary, and the strength
// must lie in [0,1].
func (g *Graph) AddEdge(edge storage.GraphEdge) error {
	if !KnownType(edge.Type) {
		return fmt.Errorf("AddEdge: unknown type %q: %w", edge.Type, storage.ErrInvalidArgument)
	}
	if edge.Strength < 0 || edge.Strength > 1 {
		return fmt.Errorf("AddEdge: strength %v outside [0,1]: %w", edge.Strength, storage.ErrInvalidArgument)
	}
	if _, ok := g.Nodes[edge.Source]; !ok {
		return fmt.Errorf("AddEdge: source %q: %w", edge.Source, storage.ErrIntegrityViolation)
	}
	if _, ok := g.Nodes[edge.Target]; !ok {
		return fmt.Errorf("AddEdge: target %q: %w", edge.Target, storage.ErrIntegrityViolation)
	}
	g.Edges = append(g.Edges, edge)
	return nil
}

// RemoveNode deletes the node and cascade-deletes every edge touching it
// as either endpoint. Returns the number of removed edges.
func (g *Graph) RemoveNode(id string) (int, error) {
	if _, ok := g.Nodes[id]; !ok {
		return 0, fmt.Errorf("RemoveNode: %q: %w", id, storage.ErrNotFound)
	}
	delete(g.Nodes, id)

	kept := g.Edges[:0]
	removed := 0
	for _, edge := range g.Edges {
		if edge.Source == id || edge.Target == id {
			removed++
			continue
		}
		kept = append(kept, edge)
	}
	g.Edges = kept
	return removed, nil
}

// Neighbors expands one node along edges in both directions, filtered by
// relationship types (empty set means all) and minimum strength.
// Results are ordered deterministically by edge position.
func (g *Graph) Neighbors(id string, types []string, minStrength float64) []Neighbor {
	typeSet := toSet(types)

	var neighbors []Neighbor
	for _, edge := range g.Edges {
		if len(typeSet) > 0 && !typeSet[edge.Type] {
			continue
		}
		if edge.Strength < minStrength {
			continue
		}
		switch id {
		case edge.Source:
			neighbors = append(neighbors, Neighbor{NodeID: edge.Target, Edge: edge, Outgoing: true})
		case edge.Target:
			neighbors = append(neighbors, Neighbor{NodeID: edge.Source, Edge: edge, Outgoing: false})
		}
	}
	return neighbors
}

// EdgesOf splits the edges touching a node into incoming and outgoing,
// filtered like Neighbors.
func (g *Graph) EdgesOf(id string, types []string, minStrength float64) (incoming, outgoing []storage.GraphEdge) {
	typeSet := toSet(types)

	for _, edge := range g.Edges {
		if len(typeSet) > 0 && !typeSet[edge.Type] {
			continue
		}
		if edge.Strength < minStrength {
			continue
		}
		if edge.Target == id {
			incoming = append(incoming, edge)
		}
		if edge.Source == id {
			outgoing = append(outgoing, edge)
		}
	}
	return incoming, outgoing
}

// MostRecent returns the most recently touched node, or nil for an empty
// graph. Ties break by node ID for determinism.
func (g *Graph) MostRecent() *storage.MemoryNode {
	var best *storage.MemoryNode
	for _, node := range g.Nodes {
		if best == nil ||
			node.Timestamp.After(best.Timestamp) ||
			(node.Timestamp.Equal(best.Timestamp) && node.ID < best.ID) {
			best = node
		}
	}
	return best
}

// NodesByRecency returns all nodes sorted by timestamp descending,
// ties broken by ID.
func (g *Graph) NodesByRecency() []*storage.MemoryNode {
	nodes := make([]*storage.MemoryNode, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		nodes = append(nodes, node)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if !nodes[i].Timestamp.Equal(nodes[j].Timestamp) {
			return nodes[i].Timestamp.After(nodes[j].Timestamp)
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// BestStrength returns the strongest edge strength adjacent to the node,
// or 0 when no edge touches it.
func (g *Graph) BestStrength(id string) float64 {
	best := 0.0
	for _, edge := range g.Edges {
		if (edge.Source == id || edge.Target == id) && edge.Strength > best {
			best = edge.Strength
		}
	}
	return best
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
