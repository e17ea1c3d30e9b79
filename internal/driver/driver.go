// Package driver defines the datastore contract the transaction coordinator
// runs against.
//
// # Drivers
//
// Two implementations live in subpackages:
//
//   - neo4j: the production driver, sessions seeded with bookmarks
//   - sqlite: an embedded driver whose bookmarks are commit sequences,
//     used for development and tests
//
// # Bookmarks
//
// A driver receives the caller's bookmarks when a transaction opens and must
// not let that transaction observe state older than them. Commit returns the
// bookmarks that identify the transaction's own writes.
//
// # Errors
//
// Drivers classify their failures into the error kinds of the domain
// package: ConnectionError, DatabaseSelectionError and CommitConflictError.
// Anything else passes through wrapped.
package driver

import (
	"context"

	"bookmarksync/internal/domain"
)

// Record is one result row keyed by column or variable name
type Record map[string]any

// Driver opens transactions against named logical databases
type Driver interface {
	// OpenTransaction begins a transaction on database that observes at
	// least the state identified by bookmarks.
	OpenTransaction(ctx context.Context, database string, bookmarks domain.BookmarkSet) (Tx, error)

	// IsReachable answers whether database accepts work right now
	IsReachable(ctx context.Context, database string) bool

	// Close releases every connection
	Close(ctx context.Context) error
}

// Tx is an open datastore transaction
type Tx interface {
	Run(ctx context.Context, statement string, params map[string]any) ([]Record, error)

	// Commit returns the bookmarks of the committed work
	Commit(ctx context.Context) (domain.BookmarkSet, error)

	Rollback(ctx context.Context) error
}
