package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"bookmarksync/internal/domain"
	"bookmarksync/internal/driver"
)

// ============================================================================
// Bookmark Helpers
// ============================================================================

const bookmarkScheme = "sqlite:"

// formatBookmark renders the bookmark of commit seq on database
func formatBookmark(database string, seq int64) string {
	return bookmarkScheme + database + ":" + strconv.FormatInt(seq, 10)
}

// parseBookmark extracts the commit sequence of a bookmark issued for
// database. Bookmarks of other databases or drivers report ok=false.
func parseBookmark(database, value string) (int64, bool) {
	rest, ok := strings.CutPrefix(value, bookmarkScheme+database+":")
	if !ok {
		return 0, false
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// highestSeq returns the newest commit of database named in bookmarks
func highestSeq(database string, bookmarks domain.BookmarkSet) int64 {
	var highest int64
	for _, b := range bookmarks.Values() {
		if seq, ok := parseBookmark(database, b); ok && seq > highest {
			highest = seq
		}
	}
	return highest
}

// ============================================================================
// Statement Helpers
// ============================================================================

// returnsRows reports whether statement produces a result set
func returnsRows(statement string) bool {
	s := strings.ToUpper(strings.TrimSpace(statement))
	for _, prefix := range []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return strings.Contains(s, " RETURNING ")
}

// namedArgs converts query parameters to sql.Named arguments
func namedArgs(params map[string]any) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, value))
	}
	return args
}

// scanRecords reads every row into a Record keyed by column name
func scanRecords(rows *sql.Rows) ([]driver.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var records []driver.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := make(driver.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// ============================================================================
// Error Classification
// ============================================================================

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, extended codes included
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// classify maps a SQLite failure on database to a domain error
func classify(database string, err error) error {
	switch {
	case err == nil:
		return nil
	case isBusy(err):
		return &domain.CommitConflictError{Database: database, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &domain.ConnectionError{Target: database, Err: err}
	}
	return fmt.Errorf("sqlite %s: %w", database, err)
}

// commitConflict maps any failure while committing to a conflict unless the
// context ran out first
func commitConflict(database string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.ConnectionError{Target: database, Err: err}
	}
	return &domain.CommitConflictError{Database: database, Err: err}
}
