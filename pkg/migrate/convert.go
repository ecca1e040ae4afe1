// Package migrate converts complete installations between storage
// backends, in either direction.
//
// A conversion reads the whole source first, verifying its structural
// completeness, and only then writes to the destination. Rows that
// cannot be mapped are skipped and reported, never silently dropped.
package migrate

import (
	"context"
	"fmt"

	"github.com/memgraph-go/memgraph/pkg/storage"
)

// SkippedItem describes one row the conversion could not map.
type SkippedItem struct {
	// Kind is "edge" or "domain_ref".
	Kind string `json:"kind"`

	// Domain the row belongs to.
	Domain string `json:"domain"`

	// ID locates the row: the owning node for a domain ref, or
	// "source->target" for an edge.
	ID string `json:"id"`

	// Reason explains why the row was skipped.
	Reason string `json:"reason"`
}

// Report summarizes a completed conversion.
type Report struct {
	// Domains, Nodes, Edges, Tags, and Refs count the rows written to
	// the destination.
	Domains int `json:"domains"`
	Nodes   int `json:"nodes"`
	Edges   int `json:"edges"`
	Tags    int `json:"tags"`
	Refs    int `json:"refs"`

	// Skipped lists every row that could not be mapped.
	Skipped []SkippedItem `json:"skipped,omitempty"`
}

// snapshot is a fully-read source installation.
type snapshot struct {
	domains map[string]*storage.Domain
	state   *storage.PersistenceState
	nodes   map[string]map[string]*storage.MemoryNode
	edges   map[string][]storage.GraphEdge
}

// Convert copies every domain, node, edge, tag, domain reference, and
// the persistence state from src to dst. Ids and timestamps are
// preserved, so a round trip reproduces an identical data set.
//
// The destination must be initialized; existing destination data for
// the copied domains is replaced.
func Convert(ctx context.Context, src, dst storage.Store) (*Report, error) {
	snap, err := readSource(ctx, src)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	verify(snap, report)

	if err := writeDestination(ctx, dst, snap, report); err != nil {
		return nil, err
	}
	return report, nil
}

// readSource reads the complete source before any write happens. A
// missing required file or table surfaces here as an error.
func readSource(ctx context.Context, src storage.Store) (*snapshot, error) {
	domains, err := src.GetDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: reading source domains: %w", err)
	}
	state, err := src.GetPersistenceState(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: reading source persistence state: %w", err)
	}

	snap := &snapshot{
		domains: domains,
		state:   state,
		nodes:   map[string]map[string]*storage.MemoryNode{},
		edges:   map[string][]storage.GraphEdge{},
	}
	for id := range domains {
		nodes, edges, err := src.GetMemories(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("migrate: reading source domain %q: %w", id, err)
		}
		snap.nodes[id] = nodes
		snap.edges[id] = edges
	}
	return snap, nil
}

// verify drops unmappable rows from the snapshot and records them in
// the report: edges with a missing endpoint and references to unknown
// domains.
func verify(snap *snapshot, report *Report) {
	for domain, edges := range snap.edges {
		nodes := snap.nodes[domain]
		kept := edges[:0:0]
		for _, edge := range edges {
			if _, ok := nodes[edge.Source]; !ok {
				report.Skipped = append(report.Skipped, SkippedItem{
					Kind:   "edge",
					Domain: domain,
					ID:     edge.Source + "->" + edge.Target,
					Reason: fmt.Sprintf("source node %q missing", edge.Source),
				})
				continue
			}
			if _, ok := nodes[edge.Target]; !ok {
				report.Skipped = append(report.Skipped, SkippedItem{
					Kind:   "edge",
					Domain: domain,
					ID:     edge.Source + "->" + edge.Target,
					Reason: fmt.Sprintf("target node %q missing", edge.Target),
				})
				continue
			}
			kept = append(kept, edge)
		}
		snap.edges[domain] = kept
	}

	for domain, nodes := range snap.nodes {
		for _, node := range nodes {
			kept := node.DomainRefs[:0:0]
			for _, ref := range node.DomainRefs {
				if _, ok := snap.domains[ref.TargetDomain]; !ok {
					report.Skipped = append(report.Skipped, SkippedItem{
						Kind:   "domain_ref",
						Domain: domain,
						ID:     node.ID,
						Reason: fmt.Sprintf("target domain %q missing", ref.TargetDomain),
					})
					continue
				}
				kept = append(kept, ref)
			}
			node.DomainRefs = kept
		}
	}
}

func writeDestination(ctx context.Context, dst storage.Store, snap *snapshot, report *Report) error {
	if err := dst.SaveDomains(ctx, snap.domains); err != nil {
		return fmt.Errorf("migrate: writing domains: %w", err)
	}
	report.Domains = len(snap.domains)

	for domain, nodes := range snap.nodes {
		if err := dst.SaveMemories(ctx, domain, nodes, snap.edges[domain]); err != nil {
			return fmt.Errorf("migrate: writing domain %q: %w", domain, err)
		}
		report.Nodes += len(nodes)
		report.Edges += len(snap.edges[domain])
		for _, node := range nodes {
			report.Tags += len(node.Tags)
			report.Refs += len(node.DomainRefs)
		}
	}

	if snap.state != nil {
		if err := dst.SavePersistenceState(ctx, snap.state); err != nil {
			return fmt.Errorf("migrate: writing persistence state: %w", err)
		}
	}
	return nil
}
