// Package sqlite provides the embedded relational storage backend.
//
// SQLite is file-based and suitable for local, single-machine
// installations. Full-text search uses an FTS4 virtual table maintained
// in the same transaction as node writes. FTS4 is compiled into
// mattn/go-sqlite3 by default; FTS5 is not, and would break a plain
// go build.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/memgraph-go/memgraph/pkg/storage"
	"github.com/memgraph-go/memgraph/pkg/storage/relational"
)

// Config contains configuration for the SQLite backend.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// NewStore opens (creating if needed) the SQLite database and returns a
// store backed by the shared relational engine.
func NewStore(cfg *Config) (storage.Store, error) {
	if cfg == nil || cfg.DBPath == "" {
		return nil, fmt.Errorf("NewSQLiteStore: db_path required: %w", storage.ErrInvalidArgument)
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteStore: %v: %w", err, storage.ErrStorageFailure)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: %v: %w", err, storage.ErrStorageFailure)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: %v: %w", err, storage.ErrStorageFailure)
	}

	return relational.NewEngine(db, dialect{}), nil
}

// dialect implements relational.Dialect for SQLite.
type dialect struct{}

func (dialect) Name() string { return "sqlite" }

// Rebind is the identity; SQLite uses ? placeholders natively.
func (dialect) Rebind(query string) string { return query }

func (dialect) CreateStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS domains (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			last_access DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS persistence (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_domain TEXT NOT NULL DEFAULT '',
			last_access DATETIME NOT NULL,
			last_memory_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS memory_nodes (
			domain TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '/',
			created_at DATETIME NOT NULL,
			search_text TEXT NOT NULL,
			PRIMARY KEY (domain, id)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_tags (
			domain TEXT NOT NULL,
			node_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (domain, node_id, tag),
			FOREIGN KEY (domain, node_id) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS memory_edges (
			domain TEXT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			type TEXT NOT NULL,
			strength REAL NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (domain, source) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE,
			FOREIGN KEY (domain, target) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS domain_refs (
			domain TEXT NOT NULL,
			node_id TEXT NOT NULL,
			target_domain TEXT NOT NULL,
			target_node TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			bidirectional INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (domain, node_id) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_domain_source ON memory_edges(domain, source)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_domain_target ON memory_edges(domain, target)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_target ON domain_refs(target_domain, target_node)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_search
			USING fts4(domain, node_id, body, notindexed=domain, notindexed=node_id)`,
	}
}

// SearchPredicate narrows memory_nodes to FTS4 matches.
func (dialect) SearchPredicate() string {
	return `(domain, id) IN (
		SELECT domain, node_id FROM memory_search WHERE memory_search MATCH ?
	)`
}

// IsUniqueViolation matches sqlite3 primary-key and unique-constraint
// errors.
func (dialect) IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// SearchQueryArg quotes each term so user input cannot be parsed as
// full-text query syntax, ORing the terms together.
func (dialect) SearchQueryArg(query string) string {
	terms := storage.Tokenize(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// SyncIndex rewrites the FTS4 rows for the domain inside the save
// transaction, keeping the index in lockstep with the node rows.
func (dialect) SyncIndex(ctx context.Context, tx *sql.Tx, domain string, nodes map[string]*storage.MemoryNode) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_search WHERE domain = ?", domain); err != nil {
		return err
	}
	for _, node := range nodes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memory_search (domain, node_id, body) VALUES (?, ?, ?)",
			domain, node.ID, storage.IndexText(node)); err != nil {
			return err
		}
	}
	return nil
}
