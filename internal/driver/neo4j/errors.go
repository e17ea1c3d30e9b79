package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"bookmarksync/internal/domain"
)

type phase string

const (
	phaseBegin    phase = "begin"
	phaseRun      phase = "run"
	phaseCommit   phase = "commit"
	phaseRollback phase = "rollback"
)

// Server status codes that mean the database name is wrong rather than the
// server being unhealthy
var selectionCodes = map[string]bool{
	"Neo.ClientError.Database.DatabaseNotFound":  true,
	"Neo.ClientError.Statement.UnknownDatabase":  true,
	"Neo.ClientError.Database.IllegalAliasChain": true,
}

// classify maps a driver failure during p on database to a domain error
func classify(database string, p phase, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || neo4j.IsConnectivityError(err) {
		return &domain.ConnectionError{Target: database, Err: err}
	}

	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) {
		if selectionCodes[nerr.Code] {
			return &domain.DatabaseSelectionError{Database: database, Err: err}
		}
		if strings.HasPrefix(nerr.Code, "Neo.TransientError.General.") {
			return &domain.ConnectionError{Target: database, Err: err}
		}
		if p == phaseCommit {
			return &domain.CommitConflictError{Database: database, Err: err}
		}
	}

	return fmt.Errorf("neo4j %s on %s: %w", p, database, err)
}
