// Package txn opens datastore transactions seeded with the local bookmark set
// and folds each commit's bookmarks back into it.
//
// A commit merges into the local store before it returns, so the committing
// instance reads its own write whether or not the broadcast reaches anyone.
// The broadcast itself is handed to a Publisher and never fails the commit.
package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookmarksync/internal/bookmark"
	"bookmarksync/internal/domain"
	"bookmarksync/internal/driver"
)

// Publisher broadcasts the bookmarks of a commit. Implementations swallow
// their own failures.
type Publisher interface {
	Publish(ctx context.Context, database string, set domain.BookmarkSet)
}

// PublishScope selects what a commit broadcasts
type PublishScope string

const (
	// ScopeCommit broadcasts only the bookmarks the commit produced
	ScopeCommit PublishScope = "commit"
	// ScopeStore broadcasts the whole local set after the merge
	ScopeStore PublishScope = "store"
)

// Options configures a Coordinator
type Options struct {
	Timeout      time.Duration // per operation; 0 leaves the caller's deadline alone
	PublishScope PublishScope
}

// Coordinator begins transactions against a driver
type Coordinator struct {
	driver    driver.Driver
	registry  *bookmark.Registry
	publisher Publisher
	opts      Options
	log       *zap.Logger

	mu       sync.Mutex
	observer func(domain.BookmarkEvent)
}

// New creates a coordinator. publisher may be nil, in which case commits are
// only merged locally.
func New(d driver.Driver, registry *bookmark.Registry, publisher Publisher, opts Options, logger *zap.Logger) *Coordinator {
	if opts.PublishScope == "" {
		opts.PublishScope = ScopeCommit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		driver:    d,
		registry:  registry,
		publisher: publisher,
		opts:      opts,
		log:       logger.Named("txn"),
	}
}

// SetMergeObserver registers fn to be told about commits that grew a store
func (c *Coordinator) SetMergeObserver(fn func(domain.BookmarkEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// BeginTransaction opens a transaction on database that observes at least
// every write the local store knows about
func (c *Coordinator) BeginTransaction(ctx context.Context, database string) (*Transaction, error) {
	store, ok := c.registry.Get(database)
	if !ok {
		return nil, &domain.DatabaseSelectionError{Database: database}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, &domain.ConnectionError{Target: database, Err: err}
	}

	seed := store.Current()
	handle, err := c.driver.OpenTransaction(ctx, database, seed)
	if err != nil {
		err = deadlineError(ctx, database, err)
		c.log.Warn("failed to begin transaction", zap.String("database", database), zap.Error(err))
		return nil, err
	}

	tx := &Transaction{
		id:        uuid.NewString(),
		database:  database,
		bookmarks: seed,
		coord:     c,
		store:     store,
		handle:    handle,
		state:     domain.TxOpen,
	}
	c.log.Debug("transaction opened",
		zap.String("database", database),
		zap.String("tx", tx.id),
		zap.Stringer("bookmarks", seed))
	return tx, nil
}

// ExecuteWrite runs fn in a transaction on database and commits it,
// rolling back when fn fails. Nothing is retried.
func (c *Coordinator) ExecuteWrite(ctx context.Context, database string, fn func(ctx context.Context, tx *Transaction) error) (domain.BookmarkSet, error) {
	tx, err := c.BeginTransaction(ctx, database)
	if err != nil {
		return domain.BookmarkSet{}, err
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, domain.ErrTransactionClosed) {
			c.log.Warn("rollback failed", zap.String("tx", tx.id), zap.Error(rbErr))
		}
		return domain.BookmarkSet{}, err
	}
	return tx.Commit(ctx)
}

// committed folds a commit's bookmarks into the store, then broadcasts
func (c *Coordinator) committed(ctx context.Context, tx *Transaction, produced domain.BookmarkSet) {
	grew := tx.store.Merge(produced)

	if c.publisher != nil {
		out := produced
		if c.opts.PublishScope == ScopeStore {
			out = tx.store.Current()
		}
		c.publisher.Publish(ctx, tx.database, out)
	}

	if !grew {
		return
	}
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer(domain.BookmarkEvent{
			Database:  tx.database,
			Source:    domain.SourceLocal,
			Bookmarks: tx.store.Current().Values(),
		})
	}
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}

// deadlineError reports an expired or cancelled ctx as a ConnectionError
// unless the driver already classified the failure
func deadlineError(ctx context.Context, database string, err error) error {
	if ctx.Err() == nil {
		return err
	}
	if domain.IsConnection(err) || domain.IsDatabaseSelection(err) || domain.IsCommitConflict(err) {
		return err
	}
	return &domain.ConnectionError{Target: database, Err: fmt.Errorf("%w: %w", ctx.Err(), err)}
}
