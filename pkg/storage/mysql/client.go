// Package mysql provides the MySQL-protocol client-server storage backend.
//
// It serves MySQL and MySQL-compatible servers. Full-text search uses an
// InnoDB FULLTEXT index over the maintained search_text column.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/memgraph-go/memgraph/pkg/storage"
	"github.com/memgraph-go/memgraph/pkg/storage/relational"
)

// Config contains MySQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// NewStore connects to the MySQL server and returns a store backed by
// the shared relational engine.
func NewStore(cfg *Config) (storage.Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLStore: %v: %w", err, storage.ErrStorageFailure)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLStore: %v: %w", err, storage.ErrStorageFailure)
	}

	return relational.NewEngine(db, dialect{}), nil
}

// dialect implements relational.Dialect for MySQL.
type dialect struct{}

func (dialect) Name() string { return "mysql" }

// Rebind is the identity; MySQL uses ? placeholders natively.
func (dialect) Rebind(query string) string { return query }

func (dialect) CreateStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS domains (
			id VARCHAR(255) PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			last_access DATETIME(6) NOT NULL
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS persistence (
			id INT PRIMARY KEY,
			current_domain VARCHAR(255) NOT NULL DEFAULT '',
			last_access DATETIME(6) NOT NULL,
			last_memory_id VARCHAR(255) NOT NULL DEFAULT ''
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS memory_nodes (
			domain VARCHAR(255) NOT NULL,
			id VARCHAR(255) NOT NULL,
			content LONGTEXT NOT NULL,
			path TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			search_text LONGTEXT NOT NULL,
			PRIMARY KEY (domain, id),
			FULLTEXT INDEX ft_search (search_text)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS memory_tags (
			domain VARCHAR(255) NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			tag VARCHAR(255) NOT NULL,
			PRIMARY KEY (domain, node_id, tag),
			FOREIGN KEY (domain, node_id) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS memory_edges (
			domain VARCHAR(255) NOT NULL,
			source VARCHAR(255) NOT NULL,
			target VARCHAR(255) NOT NULL,
			type VARCHAR(64) NOT NULL,
			strength DOUBLE NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_edges_domain_source (domain, source),
			INDEX idx_edges_domain_target (domain, target),
			FOREIGN KEY (domain, source) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE,
			FOREIGN KEY (domain, target) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS domain_refs (
			domain VARCHAR(255) NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			target_domain VARCHAR(255) NOT NULL,
			target_node VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			bidirectional TINYINT(1) NOT NULL DEFAULT 0,
			INDEX idx_refs_target (target_domain, target_node),
			FOREIGN KEY (domain, node_id) REFERENCES memory_nodes(domain, id) ON DELETE CASCADE
		) ENGINE=InnoDB`,
	}
}

// IsUniqueViolation matches MySQL error 1062 (ER_DUP_ENTRY).
func (dialect) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// SearchPredicate uses natural language FULLTEXT matching.
func (dialect) SearchPredicate() string {
	return `MATCH(search_text) AGAINST (? IN NATURAL LANGUAGE MODE)`
}

// SearchQueryArg passes the raw query; natural language mode has no
// operator syntax to escape.
func (dialect) SearchQueryArg(query string) string { return query }

// SyncIndex is a no-op; the FULLTEXT index follows the column write.
func (dialect) SyncIndex(ctx context.Context, tx *sql.Tx, domain string, nodes map[string]*storage.MemoryNode) error {
	return nil
}
