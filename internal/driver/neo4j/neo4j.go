// Package neo4j implements driver.Driver on the official Neo4j Go driver.
//
// Every transaction runs in its own session seeded with the caller's
// bookmarks; the session's last bookmarks after commit are returned as the
// transaction's bookmarks.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"go.uber.org/zap"

	"bookmarksync/internal/domain"
	"bookmarksync/internal/driver"
)

// Config holds connection settings
type Config struct {
	URI              string
	Username         string
	Password         string
	MaxPoolSize      int
	AcquireTimeout   time.Duration
	ReachableTimeout time.Duration
}

// Driver wraps a neo4j.DriverWithContext
type Driver struct {
	drv neo4j.DriverWithContext
	cfg Config
	log *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New creates the underlying driver. It does not contact the server;
// use VerifyConnectivity for that.
func New(cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4j driver needs a uri")
	}
	if cfg.ReachableTimeout <= 0 {
		cfg.ReachableTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	drv, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *config.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
			if cfg.AcquireTimeout > 0 {
				c.ConnectionAcquisitionTimeout = cfg.AcquireTimeout
			}
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	return &Driver{drv: drv, cfg: cfg, log: logger.Named("driver.neo4j")}, nil
}

// VerifyConnectivity checks that the server answers
func (d *Driver) VerifyConnectivity(ctx context.Context) error {
	if err := d.drv.VerifyConnectivity(ctx); err != nil {
		return &domain.ConnectionError{Target: d.cfg.URI, Err: err}
	}
	return nil
}

// OpenTransaction opens a write session on database seeded with bookmarks
// and begins an explicit transaction in it
func (d *Driver) OpenTransaction(ctx context.Context, database string, bookmarks domain.BookmarkSet) (driver.Tx, error) {
	session := d.drv.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   neo4j.AccessModeWrite,
		Bookmarks:    neo4j.BookmarksFromRawValues(bookmarks.Values()...),
	})

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		closeSession(ctx, d.log, database, session)
		return nil, classify(database, phaseBegin, err)
	}

	return &Tx{database: database, session: session, tx: tx, log: d.log}, nil
}

// IsReachable runs a trivial query against database
func (d *Driver) IsReachable(ctx context.Context, database string) bool {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ReachableTimeout)
	defer cancel()

	_, err := neo4j.ExecuteQuery(ctx, d.drv, "RETURN 1", nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(database))
	if err != nil {
		d.log.Debug("database unreachable", zap.String("database", database), zap.Error(err))
		return false
	}
	return true
}

// Close closes the connection pool
func (d *Driver) Close(ctx context.Context) error {
	return d.drv.Close(ctx)
}

// Tx is an explicit transaction inside its own session
type Tx struct {
	database string
	session  neo4j.SessionWithContext
	tx       neo4j.ExplicitTransaction
	log      *zap.Logger
}

// Run executes a Cypher statement and collects its records
func (t *Tx) Run(ctx context.Context, statement string, params map[string]any) ([]driver.Record, error) {
	result, err := t.tx.Run(ctx, statement, params)
	if err != nil {
		return nil, classify(t.database, phaseRun, err)
	}
	rows, err := result.Collect(ctx)
	if err != nil {
		return nil, classify(t.database, phaseRun, err)
	}

	records := make([]driver.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, driver.Record(row.AsMap()))
	}
	return records, nil
}

// Commit commits and returns the session's bookmarks
func (t *Tx) Commit(ctx context.Context) (domain.BookmarkSet, error) {
	defer closeSession(ctx, t.log, t.database, t.session)

	if err := t.tx.Commit(ctx); err != nil {
		return domain.BookmarkSet{}, classify(t.database, phaseCommit, err)
	}
	return domain.NewBookmarkSet(neo4j.BookmarksToRawValues(t.session.LastBookmarks())...), nil
}

// Rollback rolls back and closes the session
func (t *Tx) Rollback(ctx context.Context) error {
	defer closeSession(ctx, t.log, t.database, t.session)

	if err := t.tx.Rollback(ctx); err != nil {
		return classify(t.database, phaseRollback, err)
	}
	return nil
}

// closeSession releases the session's connection; a failure only loses the connection
func closeSession(ctx context.Context, log *zap.Logger, database string, session neo4j.SessionWithContext) {
	if err := session.Close(ctx); err != nil {
		log.Debug("failed to close session", zap.String("database", database), zap.Error(err))
	}
}
