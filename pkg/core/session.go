// Package core provides the main MemGraph session and domain graph management.
package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/memgraph-go/memgraph/pkg/graph"
	"github.com/memgraph-go/memgraph/pkg/recall"
	"github.com/memgraph-go/memgraph/pkg/storage"
	fileStore "github.com/memgraph-go/memgraph/pkg/storage/file"
	mysqlStore "github.com/memgraph-go/memgraph/pkg/storage/mysql"
	postgresStore "github.com/memgraph-go/memgraph/pkg/storage/postgres"
	sqliteStore "github.com/memgraph-go/memgraph/pkg/storage/sqlite"
	"github.com/memgraph-go/memgraph/pkg/traverse"
	"github.com/memgraph-go/memgraph/pkg/viz"
)

// switchPhase tracks progress through the domain switch protocol.
// A switch runs persist, load, update-state as one uninterruptible
// sequence under the session lock.
type switchPhase int

const (
	phaseIdle switchPhase = iota
	phasePersistingCurrent
	phaseLoadingTarget
	phaseUpdatingState
)

// Session is the main MemGraph client.
//
// It maintains exactly one current domain whose node/edge set is cached
// in memory, and provides the public operations: domain management,
// memory store/edit/forget, recall, content search, traversal, and
// diagram generation.
//
// The session is thread-safe and can be used concurrently from multiple
// goroutines. Recall, search, traversal, and diagram generation are
// read-only and may run in parallel; mutations and domain switches are
// serialized.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	session, _ := core.NewSession(config)
//	defer session.Close()
//
//	session.CreateDomain(ctx, "proj", "Project notes", "")
//	memory, _ := session.StoreMemory(ctx, "Parser rewritten",
//	    core.WithPath("/design"),
//	    core.WithTags("parser"),
//	)
type Session struct {
	// config contains the session configuration.
	config *Config

	// store is the storage backend for persistence.
	store storage.Store

	// ids generates unique memory identifiers.
	ids *snowflake.Node

	// state is the installation-wide persistence state.
	state *storage.PersistenceState

	// graph is the cached node/edge set of the current domain.
	// Valid only while loaded is true.
	graph *graph.Graph

	// loaded marks the cache as consistent with storage. Cleared when a
	// domain load fails; the next read retries the load.
	loaded bool

	// phase is the current position in the switch protocol.
	phase switchPhase

	// mu protects concurrent access to the session.
	mu sync.RWMutex
}

// NewSession creates a new MemGraph session.
//
// The session is initialized with:
//   - Storage backend (file, SQLite, PostgreSQL, or MySQL)
//   - Persistence state loaded from the backend; if a current domain
//     was recorded, its graph is loaded lazily on first use
//
// Parameters:
//   - cfg: Configuration containing storage settings
//
// Returns a new Session instance, or an error if initialization fails.
//
// Example:
//
//	config := &core.Config{
//	    Storage: core.StorageConfig{
//	        Provider: "sqlite",
//	        Config:   map[string]interface{}{"db_path": "./memgraph.db"},
//	    },
//	}
//	session, err := core.NewSession(config)
func NewSession(cfg *Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := initStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return NewSessionWithStore(cfg, store)
}

// NewSessionWithStore creates a session over an already constructed
// storage backend, bypassing provider configuration. The session takes
// ownership of the store and closes it with Close.
func NewSessionWithStore(cfg *Config, store storage.Store) (*Session, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	ctx := context.Background()
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, NewMemoryError("NewSession", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		store.Close()
		return nil, NewMemoryError("NewSession", err)
	}

	state, err := store.GetPersistenceState(ctx)
	if err != nil {
		store.Close()
		return nil, NewMemoryError("NewSession", err)
	}
	if state == nil {
		state = &storage.PersistenceState{}
	}

	return &Session{
		config: cfg,
		store:  store,
		ids:    node,
		state:  state,
	}, nil
}

// initStorage creates the storage backend from provider configuration.
func initStorage(cfg StorageConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "file":
		return fileStore.NewStore(&fileStore.Config{
			DataDir: getConfigString(cfg.Config, "data_dir", "./memgraph-data"),
		})
	case "sqlite":
		return sqliteStore.NewStore(&sqliteStore.Config{
			DBPath: getConfigString(cfg.Config, "db_path", "./memgraph.db"),
		})
	case "postgres":
		return postgresStore.NewStore(&postgresStore.Config{
			Host:     getConfigString(cfg.Config, "host", "localhost"),
			Port:     getConfigInt(cfg.Config, "port", 5432),
			User:     getConfigString(cfg.Config, "user", "postgres"),
			Password: getConfigString(cfg.Config, "password", ""),
			DBName:   getConfigString(cfg.Config, "db_name", "memgraph"),
			SSLMode:  getConfigString(cfg.Config, "ssl_mode", "disable"),
		})
	case "mysql":
		return mysqlStore.NewStore(&mysqlStore.Config{
			Host:     getConfigString(cfg.Config, "host", "127.0.0.1"),
			Port:     getConfigInt(cfg.Config, "port", 3306),
			User:     getConfigString(cfg.Config, "user", "root"),
			Password: getConfigString(cfg.Config, "password", ""),
			DBName:   getConfigString(cfg.Config, "db_name", "memgraph"),
		})
	default:
		return nil, NewMemoryError("initStorage",
			fmt.Errorf("unsupported storage provider %q: %w", cfg.Provider, ErrInvalidArgument))
	}
}

// Close releases the storage backend.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Close()
}

// Store exposes the underlying storage backend, for conversion tooling.
func (s *Session) Store() storage.Store {
	return s.store
}

// CurrentDomain returns the id of the current domain, or an empty
// string when no domain has been selected yet.
func (s *Session) CurrentDomain() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentDomain
}

// CreateDomain creates a new domain.
//
// The first domain created on a fresh installation becomes the current
// domain automatically. Creating a domain whose id already exists fails
// with ErrConflict.
//
// Parameters:
//   - ctx: Context for cancellation
//   - id: Unique domain identifier
//   - name: Human-readable name
//   - description: Optional description
//
// Returns the created Domain, or an error if the operation fails.
func (s *Session) CreateDomain(ctx context.Context, id, name, description string) (*Domain, error) {
	if id == "" {
		return nil, NewMemoryError("CreateDomain", fmt.Errorf("domain id is required: %w", ErrInvalidArgument))
	}
	if name == "" {
		name = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	domain := &storage.Domain{
		ID:          id,
		Name:        name,
		Description: description,
		Created:     now,
		LastAccess:  now,
	}
	if err := s.store.CreateDomain(ctx, domain); err != nil {
		return nil, NewMemoryError("CreateDomain", err)
	}

	if s.state.CurrentDomain == "" {
		if err := s.switchLocked(ctx, id); err != nil {
			return nil, NewMemoryError("CreateDomain", err)
		}
	}
	return fromStorageDomain(domain), nil
}

// SelectDomain makes the given domain current.
//
// The switch is a blocking persist-then-load sequence: the current
// domain's graph is flushed, the target's graph is loaded, and the
// persistence state is updated, in that order. No other graph operation
// interleaves with a switch.
//
// If loading the target fails, the session still points at the target
// with an invalid cache; the next read retries the load.
//
// Selecting an unknown domain fails with ErrNotFound.
func (s *Session) SelectDomain(ctx context.Context, id string) (*Domain, error) {
	if id == "" {
		return nil, NewMemoryError("SelectDomain", fmt.Errorf("domain id is required: %w", ErrInvalidArgument))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.switchLocked(ctx, id); err != nil {
		return nil, NewMemoryError("SelectDomain", err)
	}

	domains, err := s.store.GetDomains(ctx)
	if err != nil {
		return nil, NewMemoryError("SelectDomain", err)
	}
	return fromStorageDomain(domains[id]), nil
}

// switchLocked runs the switch protocol. Callers hold the write lock.
func (s *Session) switchLocked(ctx context.Context, target string) error {
	domains, err := s.store.GetDomains(ctx)
	if err != nil {
		return err
	}
	domain, ok := domains[target]
	if !ok {
		return fmt.Errorf("domain %q: %w", target, ErrNotFound)
	}

	s.phase = phasePersistingCurrent
	defer func() { s.phase = phaseIdle }()

	if s.loaded && s.graph != nil {
		nodes, edges := s.graph.Snapshot()
		if err := s.store.SaveMemories(ctx, s.graph.Domain, nodes, edges); err != nil {
			return err
		}
	}

	s.phase = phaseLoadingTarget
	now := time.Now().UTC()
	s.state.CurrentDomain = target
	s.state.LastAccess = now
	s.graph = nil
	s.loaded = false

	nodes, edges, err := s.store.GetMemories(ctx, target)
	if err != nil {
		// The session now points at the target with an invalid cache.
		// The next read retries the load.
		return err
	}
	s.graph = graph.FromSnapshot(target, nodes, edges)
	s.loaded = true

	s.phase = phaseUpdatingState
	domain.LastAccess = now
	if err := s.store.SaveDomains(ctx, domains); err != nil {
		return err
	}
	return s.store.SavePersistenceState(ctx, s.state)
}

// ListDomains returns all known domains, sorted by id.
func (s *Session) ListDomains(ctx context.Context) ([]*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domains, err := s.store.GetDomains(ctx)
	if err != nil {
		return nil, NewMemoryError("ListDomains", err)
	}
	result := make([]*Domain, 0, len(domains))
	for _, d := range domains {
		result = append(result, fromStorageDomain(d))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ensureLoadedLocked makes the current domain's graph available,
// retrying a previously failed load. Callers hold the write lock.
func (s *Session) ensureLoadedLocked(ctx context.Context) error {
	if s.state.CurrentDomain == "" {
		return fmt.Errorf("no current domain: %w", ErrNotFound)
	}
	if s.loaded && s.graph != nil {
		return nil
	}
	nodes, edges, err := s.store.GetMemories(ctx, s.state.CurrentDomain)
	if err != nil {
		return err
	}
	s.graph = graph.FromSnapshot(s.state.CurrentDomain, nodes, edges)
	s.loaded = true
	return nil
}

// readGraph returns the current domain's graph for a read-only
// operation, loading it first if the cache is invalid.
func (s *Session) readGraph(ctx context.Context) (*graph.Graph, error) {
	s.mu.RLock()
	if s.loaded && s.graph != nil {
		g := s.graph
		s.mu.RUnlock()
		return g, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return s.graph, nil
}

// StoreMemory stores a new memory in the current domain.
//
// The method:
//  1. Generates a unique memory id
//  2. Creates the node, its edges, and its cross-domain pointers on a
//     copy of the graph
//  3. Flushes the copy to storage, then swaps it in
//
// Relationship targets must already exist in the domain, and referenced
// domains must exist; violations fail with ErrIntegrityViolation and
// leave the graph untouched.
//
// Parameters:
//   - ctx: Context for cancellation
//   - content: Memory content (text string)
//   - opts: Optional parameters (path, tags, relationships, domain refs)
//
// Returns the created Memory, or an error if the operation fails.
//
// Example:
//
//	memory, err := session.StoreMemory(ctx, "B",
//	    core.WithPath("/x"),
//	    core.WithRelationship(node1.ID, "relates_to", 0.7),
//	)
func (s *Session) StoreMemory(ctx context.Context, content string, opts ...StoreOption) (*Memory, error) {
	if content == "" {
		return nil, NewMemoryError("StoreMemory", fmt.Errorf("content is required: %w", ErrInvalidArgument))
	}
	storeOpts := applyStoreOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, NewMemoryError("StoreMemory", err)
	}
	if err := s.checkRefTargets(ctx, storeOpts.DomainRefs); err != nil {
		return nil, NewMemoryError("StoreMemory", err)
	}

	timestamp := storeOpts.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	node := &storage.MemoryNode{
		ID:        fmt.Sprintf("mem_%d", s.ids.Generate().Int64()),
		Content:   content,
		Timestamp: timestamp,
		Path:      storeOpts.Path,
		Tags:      dedupTags(storeOpts.Tags),
	}
	for _, ref := range storeOpts.DomainRefs {
		node.DomainRefs = append(node.DomainRefs, toStorageRef(ref))
	}

	next := s.graph.Clone()
	if err := next.AddNode(node); err != nil {
		return nil, NewMemoryError("StoreMemory", err)
	}
	for _, rel := range storeOpts.Relationships {
		err := next.AddEdge(storage.GraphEdge{
			Source:    node.ID,
			Target:    rel.TargetID,
			Type:      rel.Type,
			Strength:  rel.Strength,
			Timestamp: timestamp,
		})
		if err != nil {
			return nil, NewMemoryError("StoreMemory", err)
		}
	}

	if err := s.flushLocked(ctx, next); err != nil {
		return nil, NewMemoryError("StoreMemory", err)
	}

	s.state.LastMemoryID = node.ID
	s.state.LastAccess = timestamp
	if err := s.store.SavePersistenceState(ctx, s.state); err != nil {
		return nil, NewMemoryError("StoreMemory", err)
	}

	return fromStorageNode(next, next.Nodes[node.ID]), nil
}

// EditMemory modifies an existing memory in the current domain.
//
// Content, path, tags, relationships, and domain refs can be changed;
// the memory timestamp is refreshed. The change is flushed to storage
// before the cached graph is updated.
//
// Returns the updated Memory, or ErrNotFound if no such memory exists.
func (s *Session) EditMemory(ctx context.Context, id string, opts ...EditOption) (*Memory, error) {
	if id == "" {
		return nil, NewMemoryError("EditMemory", fmt.Errorf("memory id is required: %w", ErrInvalidArgument))
	}
	editOpts := applyEditOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, NewMemoryError("EditMemory", err)
	}
	if err := s.checkRefTargets(ctx, editOpts.AddDomainRefs); err != nil {
		return nil, NewMemoryError("EditMemory", err)
	}

	next := s.graph.Clone()
	node, err := next.Get(id)
	if err != nil {
		return nil, NewMemoryError("EditMemory", err)
	}

	now := time.Now().UTC()
	if editOpts.Content != nil {
		node.Content = *editOpts.Content
	}
	if editOpts.Path != nil {
		node.Path = *editOpts.Path
	}
	if editOpts.SetTags != nil {
		node.Tags = dedupTags(*editOpts.SetTags)
	}
	if len(editOpts.AddTags) > 0 {
		node.Tags = dedupTags(append(node.Tags, editOpts.AddTags...))
	}
	if len(editOpts.RemoveTags) > 0 {
		drop := make(map[string]bool, len(editOpts.RemoveTags))
		for _, t := range editOpts.RemoveTags {
			drop[t] = true
		}
		kept := node.Tags[:0]
		for _, t := range node.Tags {
			if !drop[t] {
				kept = append(kept, t)
			}
		}
		node.Tags = kept
	}
	node.Timestamp = now

	for _, rel := range editOpts.RemoveRelationships {
		kept := next.Edges[:0]
		for _, e := range next.Edges {
			match := e.Source == id && e.Target == rel.TargetID &&
				(rel.Type == "" || e.Type == rel.Type)
			if !match {
				kept = append(kept, e)
			}
		}
		next.Edges = kept
	}
	for _, rel := range editOpts.AddRelationships {
		err := next.AddEdge(storage.GraphEdge{
			Source:    id,
			Target:    rel.TargetID,
			Type:      rel.Type,
			Strength:  rel.Strength,
			Timestamp: now,
		})
		if err != nil {
			return nil, NewMemoryError("EditMemory", err)
		}
	}

	for _, ref := range editOpts.RemoveDomainRefs {
		kept := node.DomainRefs[:0]
		for _, existing := range node.DomainRefs {
			if existing.TargetDomain == ref.TargetDomain && existing.TargetNodeID == ref.TargetNodeID {
				continue
			}
			kept = append(kept, existing)
		}
		node.DomainRefs = kept
	}
	for _, ref := range editOpts.AddDomainRefs {
		node.DomainRefs = append(node.DomainRefs, toStorageRef(ref))
	}

	if err := s.flushLocked(ctx, next); err != nil {
		return nil, NewMemoryError("EditMemory", err)
	}
	return fromStorageNode(next, node), nil
}

// ForgetMemory deletes a memory from the current domain.
//
// Every same-domain edge touching the memory is always cascade-deleted
// with it. Cross-domain pointers elsewhere that target the memory are
// reported as dangling; with WithCascade they are scrubbed from their
// owning domains instead.
//
// Returns a report of the deletion, or ErrNotFound if no such memory
// exists.
func (s *Session) ForgetMemory(ctx context.Context, id string, opts ...ForgetOption) (*ForgetReport, error) {
	if id == "" {
		return nil, NewMemoryError("ForgetMemory", fmt.Errorf("memory id is required: %w", ErrInvalidArgument))
	}
	forgetOpts := applyForgetOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, NewMemoryError("ForgetMemory", err)
	}

	domain := s.graph.Domain
	refs, err := s.store.FindReferencesTo(ctx, domain, id)
	if err != nil {
		return nil, NewMemoryError("ForgetMemory", err)
	}

	next := s.graph.Clone()
	removed, err := next.RemoveNode(id)
	if err != nil {
		return nil, NewMemoryError("ForgetMemory", err)
	}

	report := &ForgetReport{ID: id, RemovedEdges: removed}
	if forgetOpts.Cascade {
		scrubbed, err := s.scrubRefs(ctx, next, refs, domain, id)
		if err != nil {
			return nil, NewMemoryError("ForgetMemory", err)
		}
		report.ScrubbedRefs = scrubbed
	} else {
		report.DanglingRefs = refs
	}

	if err := s.flushLocked(ctx, next); err != nil {
		return nil, NewMemoryError("ForgetMemory", err)
	}
	return report, nil
}

// scrubRefs removes the given pointer locations. Locations in the
// current domain are edited on the pending graph copy; other domains
// are loaded, edited, and saved directly.
func (s *Session) scrubRefs(ctx context.Context, pending *graph.Graph, refs []storage.RefLocation, targetDomain, targetNode string) (int, error) {
	byDomain := map[string][]storage.RefLocation{}
	for _, loc := range refs {
		byDomain[loc.Domain] = append(byDomain[loc.Domain], loc)
	}

	scrubbed := 0
	for domain, locations := range byDomain {
		if domain == pending.Domain {
			for _, loc := range locations {
				if node, ok := pending.Nodes[loc.NodeID]; ok {
					node.DomainRefs = dropRef(node.DomainRefs, targetDomain, targetNode)
					scrubbed++
				}
			}
			continue
		}

		nodes, edges, err := s.store.GetMemories(ctx, domain)
		if err != nil {
			return scrubbed, err
		}
		for _, loc := range locations {
			if node, ok := nodes[loc.NodeID]; ok {
				node.DomainRefs = dropRef(node.DomainRefs, targetDomain, targetNode)
				scrubbed++
			}
		}
		if err := s.store.SaveMemories(ctx, domain, nodes, edges); err != nil {
			return scrubbed, err
		}
	}
	return scrubbed, nil
}

func dropRef(refs []storage.DomainRef, targetDomain, targetNode string) []storage.DomainRef {
	kept := refs[:0]
	for _, ref := range refs {
		if ref.TargetDomain == targetDomain && ref.TargetNodeID == targetNode {
			continue
		}
		kept = append(kept, ref)
	}
	return kept
}

// flushLocked persists the pending graph copy and swaps it in on
// success. Callers hold the write lock.
func (s *Session) flushLocked(ctx context.Context, next *graph.Graph) error {
	nodes, edges := next.Snapshot()
	if err := s.store.SaveMemories(ctx, next.Domain, nodes, edges); err != nil {
		return err
	}
	s.graph = next
	return nil
}

// checkRefTargets verifies that every referenced domain exists.
func (s *Session) checkRefTargets(ctx context.Context, refs []DomainReference) error {
	if len(refs) == 0 {
		return nil
	}
	domains, err := s.store.GetDomains(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if _, ok := domains[ref.TargetDomain]; !ok {
			return fmt.Errorf("referenced domain %q does not exist: %w", ref.TargetDomain, ErrIntegrityViolation)
		}
	}
	return nil
}

// GetMemory returns a single memory from the current domain.
func (s *Session) GetMemory(ctx context.Context, id string) (*Memory, error) {
	g, err := s.readGraph(ctx)
	if err != nil {
		return nil, NewMemoryError("GetMemory", err)
	}
	node, err := g.Get(id)
	if err != nil {
		return nil, NewMemoryError("GetMemory", err)
	}
	return fromStorageNode(g, node), nil
}

// RecallMemories runs a recall strategy against the current domain.
//
// See the recall package for the available strategies and their
// parameters. A missing strategy parameter fails with
// ErrInvalidArgument before any storage access.
//
// Example:
//
//	result, err := session.RecallMemories(ctx, &recall.Request{
//	    Strategy: recall.StrategyPath,
//	    Path:     "/x",
//	    MaxNodes: 10,
//	})
func (s *Session) RecallMemories(ctx context.Context, req *recall.Request) (*RecallResult, error) {
	g, err := s.readGraph(ctx)
	if err != nil {
		return nil, NewMemoryError("RecallMemories", err)
	}

	engine := recall.New(g, s.store)
	res, err := engine.Recall(ctx, req)
	if err != nil {
		return nil, NewMemoryError("RecallMemories", err)
	}

	result := &RecallResult{
		Scores:  res.Scores,
		Matches: res.Matches,
	}
	for _, node := range res.Nodes {
		result.Memories = append(result.Memories, fromStorageNode(g, node))
	}
	return result, nil
}

// SearchContent searches indexed memory content.
//
// By default every domain is searched; opts.Domain restricts the search
// to one domain. Matches in the current domain carry their
// relationships; matches in other domains do not.
func (s *Session) SearchContent(ctx context.Context, query string, opts *SearchOptions) ([]*SearchMatch, error) {
	if query == "" {
		return nil, NewMemoryError("SearchContent", fmt.Errorf("query is required: %w", ErrInvalidArgument))
	}
	if opts == nil {
		opts = &SearchOptions{}
	}

	hits, err := s.store.SearchContent(ctx, query, &storage.SearchOptions{
		Domain:     opts.Domain,
		MaxResults: opts.MaxResults,
		Mode:       opts.Mode,
	})
	if err != nil {
		return nil, NewMemoryError("SearchContent", err)
	}

	s.mu.RLock()
	current := s.graph
	loaded := s.loaded
	s.mu.RUnlock()

	matches := make([]*SearchMatch, 0, len(hits))
	for _, hit := range hits {
		var g *graph.Graph
		if loaded && current != nil && hit.Domain == current.Domain {
			g = current
		}
		matches = append(matches, &SearchMatch{
			Domain: hit.Domain,
			Memory: fromStorageNode(g, hit.Node),
			Score:  hit.Score,
		})
	}
	return matches, nil
}

// TraverseMemories extracts the subgraph reachable from a start node.
//
// The traversal runs over the current domain and, when
// FollowDomainPointers is set, crosses into referenced domains without
// changing which domain is current.
//
// See the traverse package for the option semantics.
func (s *Session) TraverseMemories(ctx context.Context, opts *traverse.Options) (*traverse.Result, error) {
	g, err := s.readGraph(ctx)
	if err != nil {
		return nil, NewMemoryError("TraverseMemories", err)
	}

	opts = s.applyTraversalDefaults(opts)
	engine := traverse.New(g, s.loadDomainGraph)
	result, err := engine.Traverse(ctx, opts)
	if err != nil {
		return nil, NewMemoryError("TraverseMemories", err)
	}
	return result, nil
}

// GenerateGraphDiagram renders a traversal as Mermaid flowchart text.
//
// Example:
//
//	diagram, err := session.GenerateGraphDiagram(ctx, &core.DiagramRequest{
//	    StartNodeID: node2.ID,
//	    MaxDepth:    1,
//	    Direction:   "LR",
//	})
func (s *Session) GenerateGraphDiagram(ctx context.Context, req *DiagramRequest) (string, error) {
	if req == nil {
		req = &DiagramRequest{}
	}

	g, err := s.readGraph(ctx)
	if err != nil {
		return "", NewMemoryError("GenerateGraphDiagram", err)
	}

	opts := s.applyTraversalDefaults(&traverse.Options{
		StartNodeID:          req.StartNodeID,
		MaxDepth:             req.MaxDepth,
		RelationshipTypes:    req.RelationshipTypes,
		MinStrength:          req.MinStrength,
		FollowDomainPointers: req.FollowDomainPointers,
		TargetDomain:         req.TargetDomain,
		MaxNodesPerDomain:    req.MaxNodesPerDomain,
	})
	engine := traverse.New(g, s.loadDomainGraph)
	result, err := engine.Traverse(ctx, opts)
	if err != nil {
		return "", NewMemoryError("GenerateGraphDiagram", err)
	}

	diagram, err := viz.RenderTraversal(result, &viz.Options{
		Direction: viz.Direction(req.Direction),
		Content: viz.ContentFormat{
			MaxLength:        req.MaxContentLength,
			TruncationSuffix: req.TruncationSuffix,
			IncludeTimestamp: req.IncludeTimestamp,
			IncludeID:        req.IncludeID,
		},
		IncludeStrength:   !req.OmitStrength,
		RelationshipTypes: req.RelationshipTypes,
		MinStrength:       req.MinStrength,
	})
	if err != nil {
		return "", NewMemoryError("GenerateGraphDiagram", err)
	}
	return diagram, nil
}

// applyTraversalDefaults fills configured default limits into options
// the caller left at zero.
func (s *Session) applyTraversalDefaults(opts *traverse.Options) *traverse.Options {
	if opts == nil {
		opts = &traverse.Options{}
	}
	if s.config.Traversal == nil {
		return opts
	}
	if opts.MaxDepth == 0 && s.config.Traversal.MaxDepth > 0 {
		opts.MaxDepth = s.config.Traversal.MaxDepth
	}
	if opts.MaxNodesPerDomain == 0 && s.config.Traversal.MaxNodesPerDomain > 0 {
		opts.MaxNodesPerDomain = s.config.Traversal.MaxNodesPerDomain
	}
	return opts
}

// loadDomainGraph is the traversal loader for domains other than the
// current one. It never changes the current-domain pointer.
func (s *Session) loadDomainGraph(ctx context.Context, domain string) (*graph.Graph, error) {
	domains, err := s.store.GetDomains(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := domains[domain]; !ok {
		return nil, fmt.Errorf("domain %q: %w", domain, ErrNotFound)
	}
	nodes, edges, err := s.store.GetMemories(ctx, domain)
	if err != nil {
		return nil, err
	}
	return graph.FromSnapshot(domain, nodes, edges), nil
}

// dedupTags normalizes a tag list, preserving first-seen order.
func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	return result
}
