package txn

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"bookmarksync/internal/bookmark"
	"bookmarksync/internal/domain"
	"bookmarksync/internal/driver"
)

// Transaction is one datastore transaction. It moves from open to exactly
// one terminal state and rejects every call after that.
type Transaction struct {
	id        string
	database  string
	bookmarks domain.BookmarkSet
	coord     *Coordinator
	store     *bookmark.Store
	handle    driver.Tx

	mu    sync.Mutex
	state domain.TxState
}

// ID returns the transaction's unique id
func (t *Transaction) ID() string { return t.id }

// Database returns the logical database name
func (t *Transaction) Database() string { return t.database }

// Bookmarks returns the set the transaction was opened with
func (t *Transaction) Bookmarks() domain.BookmarkSet { return t.bookmarks }

// State returns the current lifecycle state
func (t *Transaction) State() domain.TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run executes a statement. A failing statement fails the transaction.
func (t *Transaction) Run(ctx context.Context, statement string, params map[string]any) ([]driver.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsTerminal() {
		return nil, domain.ErrTransactionClosed
	}

	opCtx, cancel := t.coord.withTimeout(ctx)
	defer cancel()

	records, err := t.handle.Run(opCtx, statement, params)
	if err != nil {
		err = deadlineError(opCtx, t.database, err)
		t.fail(ctx, "statement failed", err)
		return nil, err
	}
	return records, nil
}

// Commit commits the transaction and returns the bookmarks it produced.
// They are merged into the local store before Commit returns.
func (t *Transaction) Commit(ctx context.Context) (domain.BookmarkSet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsTerminal() {
		return domain.BookmarkSet{}, domain.ErrTransactionClosed
	}

	opCtx, cancel := t.coord.withTimeout(ctx)
	defer cancel()

	produced, err := t.handle.Commit(opCtx)
	if err != nil {
		err = deadlineError(opCtx, t.database, err)
		t.state = domain.TxFailed
		t.coord.log.Warn("commit failed",
			zap.String("database", t.database),
			zap.String("tx", t.id),
			zap.Error(err))
		return domain.BookmarkSet{}, err
	}

	t.state = domain.TxCommitted
	t.coord.committed(ctx, t, produced)

	t.coord.log.Debug("transaction committed",
		zap.String("database", t.database),
		zap.String("tx", t.id),
		zap.Stringer("bookmarks", produced))
	return produced, nil
}

// Rollback discards the transaction
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsTerminal() {
		return domain.ErrTransactionClosed
	}
	t.state = domain.TxRolledBack

	opCtx, cancel := t.coord.withTimeout(ctx)
	defer cancel()

	if err := t.handle.Rollback(opCtx); err != nil {
		return deadlineError(opCtx, t.database, err)
	}
	return nil
}

// fail marks the transaction failed and releases the driver handle.
// Called with t.mu held.
func (t *Transaction) fail(ctx context.Context, msg string, cause error) {
	t.state = domain.TxFailed
	t.coord.log.Warn(msg,
		zap.String("database", t.database),
		zap.String("tx", t.id),
		zap.Error(cause))

	rbCtx, cancel := t.coord.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := t.handle.Rollback(rbCtx); err != nil {
		t.coord.log.Debug("rollback after failure", zap.String("tx", t.id), zap.Error(err))
	}
}
