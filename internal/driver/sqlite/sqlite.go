package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookmarksync/internal/domain"
	"bookmarksync/internal/driver"
)

// Config controls where database files live and how long a transaction may
// wait for a bookmark to become visible
type Config struct {
	Dir           string
	CreateMissing bool
	BookmarkWait  time.Duration // bound on waiting for a bookmark's commit
	PollInterval  time.Duration // how often the commit sequence is re-read while waiting
	BusyTimeout   time.Duration // sqlite busy handler timeout
}

// Driver implements driver.Driver with one SQLite file per logical database
type Driver struct {
	cfg Config
	log *zap.Logger

	mu     sync.Mutex
	dbs    map[string]*sql.DB
	closed bool
}

var _ driver.Driver = (*Driver)(nil)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// New creates a driver rooted at cfg.Dir
func New(cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.Dir == "" {
		return nil, errors.New("sqlite driver needs a directory")
	}
	if cfg.BookmarkWait <= 0 {
		cfg.BookmarkWait = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Millisecond
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.Dir, err)
	}

	return &Driver{
		cfg: cfg,
		dbs: make(map[string]*sql.DB),
		log: logger.Named("driver.sqlite"),
	}, nil
}

// Path returns the file backing database
func (d *Driver) Path(database string) string {
	return filepath.Join(d.cfg.Dir, database+".db")
}

// open returns the handle for database, opening and migrating it on first use
func (d *Driver) open(database string) (*sql.DB, error) {
	if !validName.MatchString(database) {
		return nil, &domain.DatabaseSelectionError{Database: database, Err: errors.New("invalid database name")}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, &domain.ConnectionError{Target: "sqlite", Err: errors.New("driver closed")}
	}
	if db, ok := d.dbs[database]; ok {
		return db, nil
	}

	path := d.Path(database)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, &domain.ConnectionError{Target: path, Err: err}
		}
		if !d.cfg.CreateMissing {
			return nil, &domain.DatabaseSelectionError{Database: database, Err: os.ErrNotExist}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		path, d.cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &domain.ConnectionError{Target: path, Err: err}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, &domain.ConnectionError{Target: path, Err: fmt.Errorf("failed to migrate: %w", err)}
	}

	d.dbs[database] = db
	d.log.Info("opened database", zap.String("database", database), zap.String("path", path))
	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS _commits (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		committed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// OpenTransaction waits until every bookmark issued for database is visible,
// then begins a transaction
func (d *Driver) OpenTransaction(ctx context.Context, database string, bookmarks domain.BookmarkSet) (driver.Tx, error) {
	db, err := d.open(database)
	if err != nil {
		return nil, err
	}

	if required := highestSeq(database, bookmarks); required > 0 {
		if err := d.waitFor(ctx, db, database, required); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, classify(database, err)
	}
	// database/sql rolls a Tx back when its begin context ends; the
	// transaction lives until Commit or Rollback instead.
	tx, err := db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, classify(database, err)
	}
	return &Tx{database: database, db: db, tx: tx}, nil
}

// waitFor polls the commit sequence until it reaches seq
func (d *Driver) waitFor(ctx context.Context, db *sql.DB, database string, seq int64) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.BookmarkWait)
	defer cancel()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		current, err := committedSeq(ctx, db)
		if err == nil && current >= seq {
			return nil
		}
		if err != nil && ctx.Err() == nil {
			return classify(database, err)
		}

		select {
		case <-ctx.Done():
			return &domain.ConnectionError{
				Target: database,
				Err:    fmt.Errorf("bookmark %s not visible: %w", formatBookmark(database, seq), ctx.Err()),
			}
		case <-ticker.C:
		}
	}
}

// IsReachable reports whether database can be opened and queried
func (d *Driver) IsReachable(ctx context.Context, database string) bool {
	db, err := d.open(database)
	if err != nil {
		return false
	}
	_, err = committedSeq(ctx, db)
	return err == nil
}

// Close closes every open database
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	var errs []error
	for name, db := range d.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(d.dbs, name)
	}
	return errors.Join(errs...)
}

func committedSeq(ctx context.Context, db *sql.DB) (int64, error) {
	var seq int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM _commits`).Scan(&seq)
	return seq, err
}

// Tx is a SQLite transaction on one database file
type Tx struct {
	database string
	db       *sql.DB
	tx       *sql.Tx
	wrote    bool
}

// Run executes statement. Named parameters bind as :name, @name or $name.
func (t *Tx) Run(ctx context.Context, statement string, params map[string]any) ([]driver.Record, error) {
	args := namedArgs(params)

	if !returnsRows(statement) {
		if _, err := t.tx.ExecContext(ctx, statement, args...); err != nil {
			return nil, classify(t.database, err)
		}
		t.wrote = true
		return nil, nil
	}

	// RETURNING and CTE writes come through here too; the row counter tells them apart
	before, err := t.totalChanges(ctx)
	if err != nil {
		return nil, classify(t.database, err)
	}

	rows, err := t.tx.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, classify(t.database, err)
	}
	records, err := scanRecords(rows)
	rows.Close()
	if err != nil {
		return nil, classify(t.database, err)
	}

	after, err := t.totalChanges(ctx)
	if err != nil {
		return nil, classify(t.database, err)
	}
	if after != before {
		t.wrote = true
	}
	return records, nil
}

// totalChanges counts rows modified on the transaction's connection
func (t *Tx) totalChanges(ctx context.Context) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx, `SELECT total_changes()`).Scan(&n)
	return n, err
}

// Commit records a new commit sequence when the transaction wrote anything
// and returns its bookmark. A read-only commit returns the current bookmark.
func (t *Tx) Commit(ctx context.Context) (domain.BookmarkSet, error) {
	if !t.wrote {
		if err := t.tx.Commit(); err != nil {
			return domain.BookmarkSet{}, classify(t.database, err)
		}
		seq, err := committedSeq(ctx, t.db)
		if err != nil {
			return domain.BookmarkSet{}, classify(t.database, err)
		}
		if seq == 0 {
			return domain.BookmarkSet{}, nil
		}
		return domain.NewBookmarkSet(formatBookmark(t.database, seq)), nil
	}

	res, err := t.tx.ExecContext(ctx, `INSERT INTO _commits DEFAULT VALUES`)
	if err != nil {
		t.tx.Rollback()
		return domain.BookmarkSet{}, commitConflict(t.database, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		t.tx.Rollback()
		return domain.BookmarkSet{}, fmt.Errorf("failed to read commit sequence: %w", err)
	}
	if err := t.tx.Commit(); err != nil {
		return domain.BookmarkSet{}, commitConflict(t.database, err)
	}
	return domain.NewBookmarkSet(formatBookmark(t.database, seq)), nil
}

// Rollback discards the transaction
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classify(t.database, err)
	}
	return nil
}
