// Package relational provides the shared SQL storage engine.
//
// One Engine implements the full storage contract over database/sql; the
// three relational backends (SQLite, PostgreSQL, MySQL) differ only in how
// a connection is acquired and how the full-text search predicate is
// expressed, so each supplies a Dialect and nothing else. Adding a fourth
// relational backend means writing a connection provider and a Dialect,
// not reimplementing the operations.
package relational

import (
	"context"
	"database/sql"

	"github.com/memgraph-go/memgraph/pkg/storage"
)

// Dialect captures the per-database differences the Engine needs.
type Dialect interface {
	// Name identifies the dialect ("sqlite", "postgres", "mysql").
	Name() string

	// Rebind converts a query written with ? placeholders into the
	// dialect's placeholder style.
	Rebind(query string) string

	// CreateStatements returns the DDL run by Initialize, including any
	// full-text artifacts (virtual tables, expression indexes).
	CreateStatements() []string

	// SearchPredicate returns a WHERE fragment matching memory_nodes
	// rows against one ? placeholder holding the search argument.
	SearchPredicate() string

	// SearchQueryArg transforms the raw user query into the argument
	// bound to the SearchPredicate placeholder (for example quoting
	// terms for a full-text virtual table).
	SearchQueryArg(query string) string

	// IsUniqueViolation reports whether err is the driver's primary-key
	// or unique-constraint violation, so the Engine can surface
	// storage.ErrConflict instead of a generic failure.
	IsUniqueViolation(err error) bool

	// SyncIndex maintains any index not attached to the memory_nodes
	// row itself, inside the same transaction as the node write.
	// Dialects whose index follows the search_text column implement
	// this as a no-op.
	SyncIndex(ctx context.Context, tx *sql.Tx, domain string, nodes map[string]*storage.MemoryNode) error
}
