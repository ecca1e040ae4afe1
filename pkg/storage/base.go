// Package storage provides interfaces and types for graph memory storage backends.
//
// It defines the Store interface that all storage implementations must satisfy,
// along with the domain/node/edge model types and search options.
package storage

import (
	"context"
	"time"
)

// Domain is an isolated, named graph namespace.
//
// Domains are created explicitly, refreshed on access, and never
// deleted automatically.
type Domain struct {
	// ID is the unique identifier of the domain.
	ID string `json:"id"`

	// Name is the human-readable name of the domain.
	Name string `json:"name"`

	// Description explains what the domain holds.
	Description string `json:"description,omitempty"`

	// Created is when the domain was created.
	Created time.Time `json:"created"`

	// LastAccess is when the domain was last selected.
	LastAccess time.Time `json:"last_access"`
}

// MemoryNode is an atomic stored content unit with metadata.
//
// Node IDs are unique within a domain. A node may carry cross-domain
// pointers in DomainRefs; traversal can follow them into other domains.
type MemoryNode struct {
	// ID is the node identifier, unique within its domain.
	ID string `json:"id"`

	// Content is the text content of the memory.
	Content string `json:"content"`

	// Timestamp is when the memory was stored or last edited.
	Timestamp time.Time `json:"timestamp"`

	// Path is an organizational path string. Defaults to "/".
	Path string `json:"path"`

	// Tags is the set of tags attached to the node.
	Tags []string `json:"tags,omitempty"`

	// DomainRefs are cross-domain pointers carried by this node.
	DomainRefs []DomainRef `json:"domain_refs,omitempty"`
}

// GraphEdge is a typed, weighted, directed relationship between two
// nodes in the same domain.
//
// An edge exists only while both endpoints exist; deleting either
// endpoint cascade-deletes the edge.
type GraphEdge struct {
	// Source is the source node ID.
	Source string `json:"source"`

	// Target is the target node ID.
	Target string `json:"target"`

	// Type is the relationship type, drawn from the fixed vocabulary.
	Type string `json:"type"`

	// Strength is the relationship strength in [0,1].
	Strength float64 `json:"strength"`

	// Timestamp is when the edge was created.
	Timestamp time.Time `json:"timestamp"`
}

// DomainRef connects a node in one domain to a node (or the best entry
// point) in another domain.
type DomainRef struct {
	// TargetDomain is the ID of the referenced domain.
	TargetDomain string `json:"target_domain"`

	// TargetNodeID is the referenced node, or empty to use the target
	// domain's entry point (its most recently touched node).
	TargetNodeID string `json:"target_node_id,omitempty"`

	// Description explains the reference.
	Description string `json:"description,omitempty"`

	// Bidirectional marks the reference as traversable from either side.
	Bidirectional bool `json:"bidirectional,omitempty"`
}

// PersistenceState is the singleton installation state.
//
// It is updated on every domain switch and on every store.
type PersistenceState struct {
	// CurrentDomain is the ID of the currently selected domain.
	CurrentDomain string `json:"current_domain"`

	// LastAccess is when the state was last updated.
	LastAccess time.Time `json:"last_access"`

	// LastMemoryID is the ID of the most recently stored node.
	LastMemoryID string `json:"last_memory_id,omitempty"`
}

// MatchMode selects how SearchContent matches the query against
// indexed content.
type MatchMode string

const (
	// MatchKeyword matches whole query terms via the backend's
	// full-text index. This is the default mode.
	MatchKeyword MatchMode = "keyword"

	// MatchFuzzy matches terms within a small edit distance.
	// Backends without fuzzy index support scan candidate rows.
	MatchFuzzy MatchMode = "fuzzy"

	// MatchRegex treats the query as a regular expression.
	MatchRegex MatchMode = "regex"
)

// SearchOptions contains options for SearchContent.
type SearchOptions struct {
	// Domain restricts the search to one domain. Empty searches all domains.
	Domain string

	// MaxResults caps the number of hits returned. Zero means no cap.
	MaxResults int

	// Mode selects keyword, fuzzy, or regex matching.
	// Empty defaults to MatchKeyword.
	Mode MatchMode
}

// SearchHit is a single full-text search result.
type SearchHit struct {
	// Domain is the domain the node belongs to.
	Domain string

	// Node is the matching node.
	Node *MemoryNode

	// Score is the relevance score, higher is better.
	Score float64
}

// RefLocation identifies a domain reference by its owning node.
//
// It is used to report references pointing at a node, for example
// dangling references left behind by a delete.
type RefLocation struct {
	// Domain is the domain owning the referencing node.
	Domain string

	// NodeID is the node carrying the reference.
	NodeID string

	// Ref is the reference itself.
	Ref DomainRef
}

// Store defines the contract for graph memory storage backends.
//
// All implementations (file, SQLite, PostgreSQL, MySQL) must satisfy this
// interface. SaveMemories is a full replace-on-write for one domain and
// must be atomic: a failed save leaves the previously persisted snapshot
// intact, and a successful save followed by GetMemories on the same
// domain yields an equivalent snapshot. The full-text index is maintained
// synchronously with node and tag mutations.
type Store interface {
	// Initialize prepares the backend (creates files, tables, indexes).
	Initialize(ctx context.Context) error

	// GetDomains returns all domains keyed by ID.
	GetDomains(ctx context.Context) (map[string]*Domain, error)

	// SaveDomains replaces the domain map.
	SaveDomains(ctx context.Context, domains map[string]*Domain) error

	// CreateDomain persists a new domain.
	// Returns ErrConflict if the domain ID already exists.
	CreateDomain(ctx context.Context, domain *Domain) error

	// GetPersistenceState returns the installation state, or a zero
	// state if none has been saved yet.
	GetPersistenceState(ctx context.Context) (*PersistenceState, error)

	// SavePersistenceState replaces the installation state.
	SavePersistenceState(ctx context.Context, state *PersistenceState) error

	// GetMemories returns the node map and edge set for one domain.
	GetMemories(ctx context.Context, domain string) (map[string]*MemoryNode, []GraphEdge, error)

	// SaveMemories replaces the node map and edge set for one domain.
	SaveMemories(ctx context.Context, domain string, nodes map[string]*MemoryNode, edges []GraphEdge) error

	// SearchContent matches the query against indexed node content,
	// path, and tags, returning hits sorted by score descending.
	SearchContent(ctx context.Context, query string, opts *SearchOptions) ([]*SearchHit, error)

	// FindReferencesTo returns every domain reference anywhere in the
	// store that points at the given node.
	FindReferencesTo(ctx context.Context, domain, nodeID string) ([]RefLocation, error)

	// Close releases backend resources.
	Close() error
}
