package domain

import (
	"errors"
	"fmt"
)

// ErrTransactionClosed is returned when a transaction is used after it reached a terminal state
var ErrTransactionClosed = errors.New("transaction already closed")

// ConnectionError means the datastore or the bus was unreachable or timed out
type ConnectionError struct {
	Target string // the unreachable endpoint: database, URI, path or bus
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DatabaseSelectionError means the requested database does not exist or is not routable
type DatabaseSelectionError struct {
	Database string
	Err      error
}

func (e *DatabaseSelectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("database %q not available: %v", e.Database, e.Err)
	}
	return fmt.Sprintf("database %q not available", e.Database)
}

func (e *DatabaseSelectionError) Unwrap() error { return e.Err }

// CommitConflictError means the datastore rejected a commit
type CommitConflictError struct {
	Database string
	Err      error
}

func (e *CommitConflictError) Error() string {
	return fmt.Sprintf("commit rejected on %q: %v", e.Database, e.Err)
}

func (e *CommitConflictError) Unwrap() error { return e.Err }

// SerializationError means a broadcast payload could not be decoded
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("malformed bookmark payload: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PublishError means a broadcast could not be handed to the bus.
// It is logged and swallowed by the publisher.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// IsConnection reports whether err is, or wraps, a ConnectionError
func IsConnection(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsDatabaseSelection reports whether err is, or wraps, a DatabaseSelectionError
func IsDatabaseSelection(err error) bool {
	var target *DatabaseSelectionError
	return errors.As(err, &target)
}

// IsCommitConflict reports whether err is, or wraps, a CommitConflictError
func IsCommitConflict(err error) bool {
	var target *CommitConflictError
	return errors.As(err, &target)
}

// IsSerialization reports whether err is, or wraps, a SerializationError
func IsSerialization(err error) bool {
	var target *SerializationError
	return errors.As(err, &target)
}
