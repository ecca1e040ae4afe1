// Package core provides the main MemGraph session and domain graph management.
package core

import (
	"time"

	"github.com/memgraph-go/memgraph/pkg/recall"
	"github.com/memgraph-go/memgraph/pkg/storage"
)

// Domain describes an isolated, named graph namespace.
//
// Domains are created explicitly and never deleted automatically. Their
// LastAccess timestamp is refreshed every time the domain is selected.
type Domain struct {
	// ID is the unique identifier of the domain.
	ID string `json:"id"`

	// Name is the human-readable domain name.
	Name string `json:"name"`

	// Description describes the domain's purpose (optional).
	Description string `json:"description,omitempty"`

	// Created is when the domain was created.
	Created time.Time `json:"created"`

	// LastAccess is when the domain was last selected.
	LastAccess time.Time `json:"last_access"`
}

// Memory represents a single memory node together with its relationships.
//
// A memory contains:
//   - Content: The text content of the memory
//   - Path: An organizational path string (defaults to "/")
//   - Tags: A set of tags for tag-based recall
//   - Relationships: Typed, weighted edges to other memories in the domain
//   - DomainRefs: Pointers into other domains
//
// Example:
//
//	memory := &core.Memory{
//	    ID:      "mem_1234567890",
//	    Content: "Parser rewritten around an explicit token stream",
//	    Path:    "/design/parser",
//	    Tags:    []string{"parser", "decision"},
//	}
type Memory struct {
	// ID is the node identifier, unique within its domain.
	ID string `json:"id"`

	// Content is the text content of the memory.
	Content string `json:"content"`

	// Timestamp is when the memory was stored or last edited.
	Timestamp time.Time `json:"timestamp"`

	// Path is the organizational path of the memory.
	Path string `json:"path"`

	// Tags is the set of tags attached to the memory.
	Tags []string `json:"tags,omitempty"`

	// Relationships are the edges touching this memory, both directions.
	Relationships []Relationship `json:"relationships,omitempty"`

	// DomainRefs are the cross-domain pointers carried by this memory.
	DomainRefs []DomainReference `json:"domain_refs,omitempty"`
}

// Relationship is one edge touching a memory, seen from that memory's
// side.
type Relationship struct {
	// TargetID is the node at the other end of the edge.
	TargetID string `json:"target_id"`

	// Type is the relationship type.
	Type string `json:"type"`

	// Strength is the edge weight in [0,1].
	Strength float64 `json:"strength"`

	// Outgoing is true when the edge points from this memory to TargetID.
	Outgoing bool `json:"outgoing"`

	// Timestamp is when the edge was created.
	Timestamp time.Time `json:"timestamp"`
}

// DomainReference is a pointer from a memory into another domain.
//
// When TargetNodeID is empty the pointer resolves to the target domain's
// entry point (its most recent memory) at traversal time.
type DomainReference struct {
	// TargetDomain is the referenced domain id.
	TargetDomain string `json:"target_domain"`

	// TargetNodeID is the referenced node id, or empty for the entry point.
	TargetNodeID string `json:"target_node_id,omitempty"`

	// Description annotates the pointer (optional).
	Description string `json:"description,omitempty"`

	// Bidirectional marks the pointer as navigable from either side.
	Bidirectional bool `json:"bidirectional"`
}

// RecallResult is the outcome of a RecallMemories call.
type RecallResult struct {
	// Memories in strategy order.
	Memories []*Memory `json:"memories"`

	// Scores holds content relevance by memory id, when content
	// matching was involved.
	Scores map[string]float64 `json:"scores,omitempty"`

	// Matches holds matched terms and positions by memory id, when
	// match details were requested.
	Matches map[string]*recall.MatchDetail `json:"matches,omitempty"`
}

// SearchOptions parameterizes a SearchContent call.
type SearchOptions struct {
	// Domain restricts the search to one domain. Empty searches all
	// domains.
	Domain string `json:"domain,omitempty"`

	// MaxResults caps the hit count. Zero means no cap.
	MaxResults int `json:"max_results,omitempty"`

	// Mode selects keyword, fuzzy, or regex matching.
	Mode storage.MatchMode `json:"mode,omitempty"`
}

// SearchMatch is one content search hit.
type SearchMatch struct {
	// Domain the memory lives in.
	Domain string `json:"domain"`

	// Memory is the matched memory.
	Memory *Memory `json:"memory"`

	// Score is the relevance score.
	Score float64 `json:"score"`
}

// ForgetReport describes the effects of a ForgetMemory call.
type ForgetReport struct {
	// ID is the forgotten memory's id.
	ID string `json:"id"`

	// RemovedEdges counts the same-domain edges cascade-deleted with
	// the node.
	RemovedEdges int `json:"removed_edges"`

	// DanglingRefs lists cross-domain pointers elsewhere that still
	// target the forgotten memory. Populated only when cascade was
	// disabled; with cascade enabled the pointers are scrubbed instead.
	DanglingRefs []storage.RefLocation `json:"dangling_refs,omitempty"`

	// ScrubbedRefs counts cross-domain pointers removed by cascade.
	ScrubbedRefs int `json:"scrubbed_refs"`
}

// DiagramRequest parameterizes a GenerateGraphDiagram call.
//
// The diagram is produced from a traversal rooted at StartNodeID,
// bounded and filtered exactly like TraverseMemories.
type DiagramRequest struct {
	// StartNodeID is the traversal origin. Empty selects the most
	// recent memory of the current domain.
	StartNodeID string `json:"start_node_id,omitempty"`

	// MaxDepth bounds edge hops from the start node.
	MaxDepth int `json:"max_depth,omitempty"`

	// RelationshipTypes filters traversed and rendered edges.
	RelationshipTypes []string `json:"relationship_types,omitempty"`

	// MinStrength filters traversed and rendered edges.
	MinStrength float64 `json:"min_strength,omitempty"`

	// FollowDomainPointers enables crossing into referenced domains.
	FollowDomainPointers bool `json:"follow_domain_pointers,omitempty"`

	// TargetDomain restricts pointer following to one additional domain.
	TargetDomain string `json:"target_domain,omitempty"`

	// MaxNodesPerDomain caps nodes collected per domain.
	MaxNodesPerDomain int `json:"max_nodes_per_domain,omitempty"`

	// Direction is the diagram layout direction (TB, BT, LR, RL).
	// Empty means TB.
	Direction string `json:"direction,omitempty"`

	// MaxContentLength truncates node labels. Zero uses the default.
	MaxContentLength int `json:"max_content_length,omitempty"`

	// TruncationSuffix marks truncated labels.
	TruncationSuffix string `json:"truncation_suffix,omitempty"`

	// IncludeTimestamp appends timestamps to node labels.
	IncludeTimestamp bool `json:"include_timestamp,omitempty"`

	// IncludeID prefixes node labels with the memory id.
	IncludeID bool `json:"include_id,omitempty"`

	// OmitStrength drops the strength annotation from edge labels.
	// Strength is included by default.
	OmitStrength bool `json:"omit_strength,omitempty"`
}
