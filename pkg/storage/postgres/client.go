// Package postgres provides the PostgreSQL client-server storage backend.
//
// Full-text search uses a tsvector expression index over the maintained
// search_text column; the index follows the column, so no separate sync
// step is needed.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/memgraph-go/memgraph/pkg/storage"
	"github.com/memgraph-go/memgraph/pkg/storage/relational"
)

// Config contains PostgreSQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewStore connects to PostgreSQL and returns a store backed by the
// shared relational engine.
func NewStore(cfg *Config) (storage.Store, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresStore: %v: %w", err, storage.ErrStorageFailure)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresStore: %v: %w", err, storage.ErrStorageFailure)
	}

	return relational.NewEngine(db, dialect{}), nil
}

// dialect implements relational.Dialect for PostgreSQL.
type dialect struct{}

func (dialect) Name() string { return "postgres" }

// Rebind converts ? placeholders to $1..$n for lib/pq.
func (dialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (dialect) CreateStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS domains (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			last_access TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS persistence (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_domain TEXT NOT NULL DEFAULT '',
			last_access TIMESTAMPTZ NOT NULL,
			last_memory_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS memory_nodes (
			domain TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '/',
			created_at TIMESTAMPTZ NOT NULL,
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
			strength DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			FOREIGN KEY (domain, source) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE,
			FOREIGN KEY (domain, target) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS domain_refs (
			domain TEXT NOT NULL,
			node_id TEXT NOT NULL,
			target_domain TEXT NOT NULL,
			target_node TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			bidirectional BOOLEAN NOT NULL DEFAULT FALSE,
			FOREIGN KEY (domain, node_id) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_domain_source ON memory_edges(domain, source)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_domain_target ON memory_edges(domain, target)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_target ON domain_refs(target_domain, target_node)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_search ON memory_nodes
			USING gin (to_tsvector('simple', search_text))`,
	}
}

// IsUniqueViolation matches the PostgreSQL unique_violation SQLSTATE.
func (dialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// SearchPredicate matches the tsvector expression index.
func (dialect) SearchPredicate() string {
	return `to_tsvector('simple', search_text) @@ to_tsquery('simple', ?)`
}

// SearchQueryArg ORs the tokenized terms. Tokens are alphanumeric runs,
// so the assembled tsquery cannot contain operator syntax.
func (dialect) SearchQueryArg(query string) string {
	return strings.Join(storage.Tokenize(query), " | ")
}

// SyncIndex is a no-op; the expression index follows the column write.
func (dialect) SyncIndex(ctx context.Context, tx *sql.Tx, domain string, nodes map[string]*storage.MemoryNode) error {
	return nil
}
