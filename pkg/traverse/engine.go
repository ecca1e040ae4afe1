// Package traverse provides BFS subgraph extraction over domain graphs,
// including cross-domain pointer following.
//
// A traversal expands from a start node in both edge directions, bounded
// by depth, relationship types, and minimum strength. A visited set keyed
// by (domain, nodeID) guarantees termination across cyclic edges and
// cyclic domain pointers. Graphs for referenced domains are loaded through
// an injected Loader so the caller's current-domain cache is never
// disturbed.
package traverse

import (
	"context"
	"fmt"

	"github.com/memgraph-go/memgraph/pkg/graph"
	"github.com/memgraph-go/memgraph/pkg/storage"
)

// DefaultMaxDepth bounds traversal when no depth is given.
const DefaultMaxDepth = 3

// DefaultDomainLimit bounds nodes collected per domain when no limit is
// given. The budget resets on each domain entry.
const DefaultDomainLimit = 50

// Loader resolves the graph of a domain other than the one being
// traversed. It must not change which domain is current.
type Loader func(ctx context.Context, domain string) (*graph.Graph, error)

// Options parameterizes one traversal.
type Options struct {
	// StartNodeID is the BFS origin. Empty selects the most recently
	// touched node of the home domain.
	StartNodeID string

	// MaxDepth bounds edge hops from the start node. The start node is
	// depth zero. Zero falls back to DefaultMaxDepth.
	MaxDepth int

	// RelationshipTypes bounds edge expansion. Empty means all types.
	RelationshipTypes []string

	// MinStrength bounds edge expansion, in [0,1].
	MinStrength float64

	// FollowDomainPointers enables crossing into referenced domains.
	FollowDomainPointers bool

	// TargetDomain, when set, restricts pointer following to that one
	// additional domain.
	TargetDomain string

	// MaxNodesPerDomain caps nodes collected within each domain.
	// Zero falls back to DefaultDomainLimit.
	MaxNodesPerDomain int
}

// Entry is one visited node with its adjacent edges.
type Entry struct {
	// Node is the visited node.
	Node *storage.MemoryNode

	// Depth is the hop distance from the start node.
	Depth int

	// Incoming and Outgoing are the node's edges within its domain,
	// after type and strength filtering.
	Incoming []storage.GraphEdge
	Outgoing []storage.GraphEdge
}

// DomainGroup collects the entries visited within one domain, in
// discovery order.
type DomainGroup struct {
	Domain  string
	Entries []*Entry
}

// NodeRef identifies a visited node across domains.
type NodeRef struct {
	Domain string
	NodeID string
}

// BrokenRef reports a domain pointer that could not be followed.
type BrokenRef struct {
	// SourceDomain and SourceNodeID locate the pointer's owner.
	SourceDomain string
	SourceNodeID string

	// Ref is the pointer itself.
	Ref storage.DomainRef

	// Reason explains why following failed.
	Reason string
}

// Result is the extracted subgraph, grouped by domain.
//
// Order lists every visited node in BFS discovery order; the
// visualization formatter relies on it for deterministic output.
type Result struct {
	StartDomain string
	StartNodeID string
	Groups      []*DomainGroup
	Order       []NodeRef
	BrokenRefs  []BrokenRef
}

// Entry returns the visited entry for the given reference, or nil.
func (r *Result) Entry(ref NodeRef) *Entry {
	for _, g := range r.Groups {
		if g.Domain != ref.Domain {
			continue
		}
		for _, e := range g.Entries {
			if e.Node.ID == ref.NodeID {
				return e
			}
		}
	}
	return nil
}

// Engine runs traversals rooted in one home domain graph.
type Engine struct {
	home *graph.Graph
	load Loader
}

// New creates a traversal engine over the home graph. load may be nil
// when domain pointers will not be followed.
func New(home *graph.Graph, load Loader) *Engine {
	return &Engine{home: home, load: load}
}

type queueItem struct {
	domain string
	nodeID string
	depth  int
}

// Traverse runs the BFS and returns the reachable subgraph.
func (e *Engine) Traverse(ctx context.Context, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.MinStrength < 0 || opts.MinStrength > 1 {
		return nil, fmt.Errorf("traverse: minStrength %v outside [0,1]: %w", opts.MinStrength, storage.ErrInvalidArgument)
	}
	for _, t := range opts.RelationshipTypes {
		if !graph.KnownType(t) {
			return nil, fmt.Errorf("traverse: unknown relationship type %q: %w", t, storage.ErrInvalidArgument)
		}
	}

	start := opts.StartNodeID
	if start == "" {
		recent := e.home.MostRecent()
		if recent == nil {
			return nil, fmt.Errorf("traverse: domain %q has no memories: %w", e.home.Domain, storage.ErrNotFound)
		}
		start = recent.ID
	} else if _, err := e.home.Get(start); err != nil {
		return nil, err
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	domainLimit := opts.MaxNodesPerDomain
	if domainLimit <= 0 {
		domainLimit = DefaultDomainLimit
	}

	result := &Result{StartDomain: e.home.Domain, StartNodeID: start}
	graphs := map[string]*graph.Graph{e.home.Domain: e.home}
	groups := map[string]*DomainGroup{}
	visited := map[NodeRef]bool{}
	domainCounts := map[string]int{}

	queue := []queueItem{{domain: e.home.Domain, nodeID: start}}
	visited[NodeRef{Domain: e.home.Domain, NodeID: start}] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		g := graphs[cur.domain]
		node, err := g.Get(cur.nodeID)
		if err != nil {
			return nil, err
		}

		if domainCounts[cur.domain] >= domainLimit {
			continue
		}
		domainCounts[cur.domain]++

		incoming, outgoing := g.EdgesOf(cur.nodeID, opts.RelationshipTypes, opts.MinStrength)
		entry := &Entry{Node: node, Depth: cur.depth, Incoming: incoming, Outgoing: outgoing}
		group := groups[cur.domain]
		if group == nil {
			group = &DomainGroup{Domain: cur.domain}
			groups[cur.domain] = group
			result.Groups = append(result.Groups, group)
		}
		group.Entries = append(group.Entries, entry)
		result.Order = append(result.Order, NodeRef{Domain: cur.domain, NodeID: cur.nodeID})

		if cur.depth >= maxDepth {
			continue
		}

		for _, nb := range g.Neighbors(cur.nodeID, opts.RelationshipTypes, opts.MinStrength) {
			ref := NodeRef{Domain: cur.domain, NodeID: nb.NodeID}
			if visited[ref] {
				continue
			}
			visited[ref] = true
			queue = append(queue, queueItem{domain: cur.domain, nodeID: nb.NodeID, depth: cur.depth + 1})
		}

		if !opts.FollowDomainPointers {
			continue
		}
		for _, dref := range node.DomainRefs {
			if opts.TargetDomain != "" && dref.TargetDomain != opts.TargetDomain {
				continue
			}
			target, err := e.resolvePointer(ctx, graphs, dref)
			if err != nil {
				result.BrokenRefs = append(result.BrokenRefs, BrokenRef{
					SourceDomain: cur.domain,
					SourceNodeID: cur.nodeID,
					Ref:          dref,
					Reason:       err.Error(),
				})
				continue
			}
			if visited[target] {
				continue
			}
			visited[target] = true
			queue = append(queue, queueItem{domain: target.Domain, nodeID: target.NodeID, depth: cur.depth + 1})
		}
	}

	return result, nil
}

// resolvePointer loads the referenced domain's graph (cached per
// traversal) and resolves the pointer's node. A reference without a
// target node resolves to the domain's most recent node.
func (e *Engine) resolvePointer(ctx context.Context, graphs map[string]*graph.Graph, ref storage.DomainRef) (NodeRef, error) {
	g, ok := graphs[ref.TargetDomain]
	if !ok {
		if e.load == nil {
			return NodeRef{}, fmt.Errorf("no loader for domain %q", ref.TargetDomain)
		}
		loaded, err := e.load(ctx, ref.TargetDomain)
		if err != nil {
			return NodeRef{}, err
		}
		graphs[ref.TargetDomain] = loaded
		g = loaded
	}

	if ref.TargetNodeID == "" {
		entry := g.MostRecent()
		if entry == nil {
			return NodeRef{}, fmt.Errorf("domain %q has no entry point", ref.TargetDomain)
		}
		return NodeRef{Domain: ref.TargetDomain, NodeID: entry.ID}, nil
	}
	if _, err := g.Get(ref.TargetNodeID); err != nil {
		return NodeRef{}, fmt.Errorf("node %q not found in domain %q", ref.TargetNodeID, ref.TargetDomain)
	}
	return NodeRef{Domain: ref.TargetDomain, NodeID: ref.TargetNodeID}, nil
}
