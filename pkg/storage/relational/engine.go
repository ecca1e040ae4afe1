package relational

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/memgraph-go/memgraph/pkg/storage"
)

// Engine implements storage.Store over any database/sql connection.
//
// Every mutation runs in a transaction; SaveMemories is a transactional
// full replace for one domain, so a failed save rolls back to the
// previously committed snapshot. The search_text column (and any
// dialect-side index) is written in the same transaction as the node
// rows, keeping the full-text index synchronously consistent.
type Engine struct {
	db      *sql.DB
	dialect Dialect
}

// NewEngine wraps an open connection with the given dialect.
func NewEngine(db *sql.DB, dialect Dialect) *Engine {
	return &Engine{db: db, dialect: dialect}
}

// DB exposes the underlying connection, mainly for tests.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Initialize creates the schema and full-text artifacts.
func (e *Engine) Initialize(ctx context.Context) error {
	for _, stmt := range e.dialect.CreateStatements() {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("Initialize: %v: %w", err, storage.ErrStorageFailure)
		}
	}
	return nil
}

// GetDomains returns all domains keyed by ID.
func (e *Engine) GetDomains(ctx context.Context) (map[string]*storage.Domain, error) {
	query := e.dialect.Rebind(`
		SELECT id, name, description, created_at, last_access FROM domains
	`)

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("GetDomains: %v: %w", err, storage.ErrStorageFailure)
	}
	defer func() { _ = rows.Close() }()

	domains := map[string]*storage.Domain{}
	for rows.Next() {
		var d storage.Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Created, &d.LastAccess); err != nil {
			return nil, fmt.Errorf("GetDomains: %v: %w", err, storage.ErrStorageFailure)
		}
		domains[d.ID] = &d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetDomains: %v: %w", err, storage.ErrStorageFailure)
	}
	return domains, nil
}

// SaveDomains replaces the domain table in one transaction.
func (e *Engine) SaveDomains(ctx context.Context, domains map[string]*storage.Domain) error {
	return e.inTx(ctx, "SaveDomains", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM domains"); err != nil {
			return err
		}
		insert := e.dialect.Rebind(`
			INSERT INTO domains (id, name, description, created_at, last_access)
			VALUES (?, ?, ?, ?, ?)
		`)
		for _, d := range domains {
			if _, err := tx.ExecContext(ctx, insert, d.ID, d.Name, d.Description, touchTimes(d.Created), touchTimes(d.LastAccess)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateDomain inserts a new domain row.
// Returns storage.ErrConflict if the ID already exists.
//
// The insert relies on the primary key for atomicity; a concurrent
// create of the same id loses cleanly instead of racing a pre-check.
func (e *Engine) CreateDomain(ctx context.Context, domain *storage.Domain) error {
	insert := e.dialect.Rebind(`
		INSERT INTO domains (id, name, description, created_at, last_access)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := e.db.ExecContext(ctx, insert,
		domain.ID, domain.Name, domain.Description, touchTimes(domain.Created), touchTimes(domain.LastAccess)); err != nil {
		if e.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("CreateDomain: %q: %w", domain.ID, storage.ErrConflict)
		}
		return fmt.Errorf("CreateDomain: %v: %w", err, storage.ErrStorageFailure)
	}
	return nil
}

// GetPersistenceState reads the single state row, or returns a zero
// state if none has been saved yet.
func (e *Engine) GetPersistenceState(ctx context.Context) (*storage.PersistenceState, error) {
	query := e.dialect.Rebind(`
		SELECT current_domain, last_access, last_memory_id FROM persistence WHERE id = 1
	`)

	var state storage.PersistenceState
	err := e.db.QueryRowContext(ctx, query).Scan(&state.CurrentDomain, &state.LastAccess, &state.LastMemoryID)
	if err == sql.ErrNoRows {
		return &storage.PersistenceState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetPersistenceState: %v: %w", err, storage.ErrStorageFailure)
	}
	return &state, nil
}

// SavePersistenceState replaces the single state row.
func (e *Engine) SavePersistenceState(ctx context.Context, state *storage.PersistenceState) error {
	return e.inTx(ctx, "SavePersistenceState", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM persistence"); err != nil {
			return err
		}
		insert := e.dialect.Rebind(`
			INSERT INTO persistence (id, current_domain, last_access, last_memory_id)
			VALUES (1, ?, ?, ?)
		`)
		_, err := tx.ExecContext(ctx, insert, state.CurrentDomain, touchTimes(state.LastAccess), state.LastMemoryID)
		return err
	})
}

// GetMemories assembles the node map and edge set of one domain.
func (e *Engine) GetMemories(ctx context.Context, domain string) (map[string]*storage.MemoryNode, []storage.GraphEdge, error) {
	nodes, err := e.loadNodes(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	if err := e.loadTags(ctx, domain, nodes); err != nil {
		return nil, nil, err
	}
	if err := e.loadRefs(ctx, domain, nodes); err != nil {
		return nil, nil, err
	}

	edges, err := e.loadEdges(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

// SaveMemories replaces the domain's rows across all four tables and the
// full-text index in one transaction.
func (e *Engine) SaveMemories(ctx context.Context, domain string, nodes map[string]*storage.MemoryNode, edges []storage.GraphEdge) error {
	return e.inTx(ctx, "SaveMemories", func(tx *sql.Tx) error {
		for _, table := range []string{"domain_refs", "memory_edges", "memory_tags", "memory_nodes"} {
			del := e.dialect.Rebind("DELETE FROM " + table + " WHERE domain = ?")
			if _, err := tx.ExecContext(ctx, del, domain); err != nil {
				return err
			}
		}

		insertNode := e.dialect.Rebind(`
			INSERT INTO memory_nodes (domain, id, content, path, created_at, search_text)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		insertTag := e.dialect.Rebind(`
			INSERT INTO memory_tags (domain, node_id, tag) VALUES (?, ?, ?)
		`)
		insertRef := e.dialect.Rebind(`
			INSERT INTO domain_refs (domain, node_id, target_domain, target_node, description, bidirectional)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		for _, node := range nodes {
			searchText := storage.IndexText(node)
			if _, err := tx.ExecContext(ctx, insertNode,
				domain, node.ID, node.Content, node.Path, touchTimes(node.Timestamp), searchText); err != nil {
				return err
			}
			for _, tag := range node.Tags {
				if _, err := tx.ExecContext(ctx, insertTag, domain, node.ID, tag); err != nil {
					return err
				}
			}
			for _, ref := range node.DomainRefs {
				if _, err := tx.ExecContext(ctx, insertRef,
					domain, node.ID, ref.TargetDomain, ref.TargetNodeID, ref.Description, ref.Bidirectional); err != nil {
					return err
				}
			}
		}

		insertEdge := e.dialect.Rebind(`
			INSERT INTO memory_edges (domain, source, target, type, strength, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		for _, edge := range edges {
			if _, err := tx.ExecContext(ctx, insertEdge,
				domain, edge.Source, edge.Target, edge.Type, edge.Strength, touchTimes(edge.Timestamp)); err != nil {
				return err
			}
		}

		return e.dialect.SyncIndex(ctx, tx, domain, nodes)
	})
}

// SearchContent matches the query against the maintained search_text.
//
// Keyword mode narrows candidates with the dialect's full-text predicate;
// fuzzy and regex modes scan the (optionally domain-filtered) rows. Final
// scoring uses the shared scorer in all modes so ranking is identical
// across backends.
func (e *Engine) SearchContent(ctx context.Context, query string, opts *storage.SearchOptions) ([]*storage.SearchHit, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}
	mode := opts.Mode
	if mode == "" {
		mode = storage.MatchKeyword
	}

	terms := storage.Tokenize(query)
	if mode != storage.MatchRegex && len(terms) == 0 {
		return nil, fmt.Errorf("SearchContent: empty query: %w", storage.ErrInvalidArgument)
	}

	var (
		candidates []*candidateRow
		err        error
	)
	switch mode {
	case storage.MatchKeyword:
		candidates, err = e.keywordCandidates(ctx, query, opts.Domain)
	case storage.MatchFuzzy, storage.MatchRegex:
		candidates, err = e.allRows(ctx, opts.Domain)
	default:
		return nil, fmt.Errorf("SearchContent: unknown mode %q: %w", mode, storage.ErrInvalidArgument)
	}
	if err != nil {
		return nil, err
	}

	var re *regexp.Regexp
	if mode == storage.MatchRegex {
		re, err = storage.CompileQueryRegex(query)
		if err != nil {
			return nil, fmt.Errorf("SearchContent: %q: %w", query, err)
		}
	}

	var hits []*storage.SearchHit
	for _, c := range candidates {
		var score float64
		switch mode {
		case storage.MatchKeyword:
			score = storage.ScoreContent(c.searchText, terms)
			if score == 0 {
				continue
			}
		case storage.MatchFuzzy:
			if !storage.MatchFuzzyText(c.searchText, terms, storage.DefaultFuzzyDistance) {
				continue
			}
			score = storage.ScoreContent(c.searchText, terms)
			if score == 0 {
				score = 0.1
			}
		case storage.MatchRegex:
			if !re.MatchString(c.searchText) {
				continue
			}
			score = 1
		}

		node := c.node
		if err := e.loadNodeDetails(ctx, c.domain, node); err != nil {
			return nil, err
		}
		hits = append(hits, &storage.SearchHit{Domain: c.domain, Node: node, Score: score})
	}

	return storage.SortHits(hits, opts.MaxResults), nil
}

// FindReferencesTo returns every explicit reference at the given node.
// Entry-point references (empty target node) re-resolve and never dangle.
func (e *Engine) FindReferencesTo(ctx context.Context, domain, nodeID string) ([]storage.RefLocation, error) {
	query := e.dialect.Rebind(`
		SELECT domain, node_id, target_domain, target_node, description, bidirectional
		FROM domain_refs
		WHERE target_domain = ? AND target_node = ?
	`)

	rows, err := e.db.QueryContext(ctx, query, domain, nodeID)
	if err != nil {
		return nil, fmt.Errorf("FindReferencesTo: %v: %w", err, storage.ErrStorageFailure)
	}
	defer func() { _ = rows.Close() }()

	var refs []storage.RefLocation
	for rows.Next() {
		var loc storage.RefLocation
		if err := rows.Scan(&loc.Domain, &loc.NodeID,
			&loc.Ref.TargetDomain, &loc.Ref.TargetNodeID, &loc.Ref.Description, &loc.Ref.Bidirectional); err != nil {
			return nil, fmt.Errorf("FindReferencesTo: %v: %w", err, storage.ErrStorageFailure)
		}
		refs = append(refs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindReferencesTo: %v: %w", err, storage.ErrStorageFailure)
	}
	return refs, nil
}

// Close closes the database connection.
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// candidateRow is one memory_nodes row fetched during search.
type candidateRow struct {
	domain     string
	searchText string
	node       *storage.MemoryNode
}

func (e *Engine) keywordCandidates(ctx context.Context, query, domain string) ([]*candidateRow, error) {
	clause := e.dialect.SearchPredicate()
	args := []interface{}{e.dialect.SearchQueryArg(query)}
	sqlQuery := `
		SELECT domain, id, content, path, created_at, search_text
		FROM memory_nodes
		WHERE ` + clause
	if domain != "" {
		sqlQuery += " AND domain = ?"
		args = append(args, domain)
	}
	return e.queryCandidates(ctx, sqlQuery, args...)
}

func (e *Engine) allRows(ctx context.Context, domain string) ([]*candidateRow, error) {
	sqlQuery := `
		SELECT domain, id, content, path, created_at, search_text
		FROM memory_nodes
	`
	var args []interface{}
	if domain != "" {
		sqlQuery += " WHERE domain = ?"
		args = append(args, domain)
	}
	return e.queryCandidates(ctx, sqlQuery, args...)
}

func (e *Engine) queryCandidates(ctx context.Context, sqlQuery string, args ...interface{}) ([]*candidateRow, error) {
	rows, err := e.db.QueryContext(ctx, e.dialect.Rebind(sqlQuery), args...)
	if err != nil {
		return nil, fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
	}
	defer func() { _ = rows.Close() }()

	var candidates []*candidateRow
	for rows.Next() {
		var (
			c    candidateRow
			node storage.MemoryNode
		)
		if err := rows.Scan(&c.domain, &node.ID, &node.Content, &node.Path, &node.Timestamp, &c.searchText); err != nil {
			return nil, fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
		}
		c.node = &node
		candidates = append(candidates, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
	}
	return candidates, nil
}

// loadNodeDetails fills tags and refs for one node returned by search.
func (e *Engine) loadNodeDetails(ctx context.Context, domain string, node *storage.MemoryNode) error {
	tagQuery := e.dialect.Rebind(`
		SELECT tag FROM memory_tags WHERE domain = ? AND node_id = ? ORDER BY tag
	`)
	rows, err := e.db.QueryContext(ctx, tagQuery, domain, node.ID)
	if err != nil {
		return fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
	}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			_ = rows.Close()
			return fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
		}
		node.Tags = append(node.Tags, tag)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
	}

	refQuery := e.dialect.Rebind(`
		SELECT target_domain, target_node, description, bidirectional
		FROM domain_refs WHERE domain = ? AND node_id = ?
	`)
	rows, err = e.db.QueryContext(ctx, refQuery, domain, node.ID)
	if err != nil {
		return fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
	}
	for rows.Next() {
		var ref storage.DomainRef
		if err := rows.Scan(&ref.TargetDomain, &ref.TargetNodeID, &ref.Description, &ref.Bidirectional); err != nil {
			_ = rows.Close()
			return fmt.Errorf("SearchContent: %v: %w", err, storage.ErrStorageFailure)
		}
		node.DomainRefs = append(node.DomainRefs, ref)
	}
	return rows.Close()
}

func (e *Engine) loadNodes(ctx context.Context, domain string) (map[string]*storage.MemoryNode, error) {
	query := e.dialect.Rebind(`
		SELECT id, content, path, created_at FROM memory_nodes WHERE domain = ?
	`)
	rows, err := e.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
	}
	defer func() { _ = rows.Close() }()

	nodes := map[string]*storage.MemoryNode{}
	for rows.Next() {
		var node storage.MemoryNode
		if err := rows.Scan(&node.ID, &node.Content, &node.Path, &node.Timestamp); err != nil {
			return nil, fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
		}
		nodes[node.ID] = &node
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
	}
	return nodes, nil
}

func (e *Engine) loadTags(ctx context.Context, domain string, nodes map[string]*storage.MemoryNode) error {
	query := e.dialect.Rebind(`
		SELECT node_id, tag FROM memory_tags WHERE domain = ? ORDER BY node_id, tag
	`)
	rows, err := e.db.QueryContext(ctx, query, domain)
	if err != nil {
		return fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var nodeID, tag string
		if err := rows.Scan(&nodeID, &tag); err != nil {
			return fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
		}
		if node, ok := nodes[nodeID]; ok {
			node.Tags = append(node.Tags, tag)
		}
	}
	return rows.Err()
}

func (e *Engine) loadRefs(ctx context.Context, domain string, nodes map[string]*storage.MemoryNode) error {
	query := e.dialect.Rebind(`
		SELECT node_id, target_domain, target_node, description, bidirectional
		FROM domain_refs WHERE domain = ?
	`)
	rows, err := e.db.QueryContext(ctx, query, domain)
	if err != nil {
		return fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			nodeID string
			ref    storage.DomainRef
		)
		if err := rows.Scan(&nodeID, &ref.TargetDomain, &ref.TargetNodeID, &ref.Description, &ref.Bidirectional); err != nil {
			return fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
		}
		if node, ok := nodes[nodeID]; ok {
			node.DomainRefs = append(node.DomainRefs, ref)
		}
	}
	return rows.Err()
}

func (e *Engine) loadEdges(ctx context.Context, domain string) ([]storage.GraphEdge, error) {
	query := e.dialect.Rebind(`
		SELECT source, target, type, strength, created_at FROM memory_edges WHERE domain = ?
	`)
	rows, err := e.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
	}
	defer func() { _ = rows.Close() }()

	var edges []storage.GraphEdge
	for rows.Next() {
		var edge storage.GraphEdge
		if err := rows.Scan(&edge.Source, &edge.Target, &edge.Type, &edge.Strength, &edge.Timestamp); err != nil {
			return nil, fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetMemories: %v: %w", err, storage.ErrStorageFailure)
	}

	// Deterministic order for snapshot comparisons.
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Type < edges[j].Type
	})
	return edges, nil
}

// inTx runs fn in a transaction, rolling back on error.
func (e *Engine) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrStorageFailure)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrStorageFailure)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrStorageFailure)
	}
	return nil
}

// touchTimes normalizes zero timestamps before insert; drivers reject
// the zero time on some TIMESTAMP columns.
func touchTimes(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}
