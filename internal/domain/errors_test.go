package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		conn      bool
		selection bool
		conflict  bool
		serial    bool
	}{
		{"connection", &ConnectionError{Target: "datastore", Err: cause}, true, false, false, false},
		{"selection", &DatabaseSelectionError{Database: "movies"}, false, true, false, false},
		{"conflict", &CommitConflictError{Database: "movies", Err: cause}, false, false, true, false},
		{"serialization", &SerializationError{Err: cause}, false, false, false, true},
		{"wrapped connection", fmt.Errorf("begin: %w", &ConnectionError{Target: "bus", Err: cause}), true, false, false, false},
		{"plain", cause, false, false, false, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnection(tt.err); got != tt.conn {
				t.Errorf("IsConnection = %v, want %v", got, tt.conn)
			}
			if got := IsDatabaseSelection(tt.err); got != tt.selection {
				t.Errorf("IsDatabaseSelection = %v, want %v", got, tt.selection)
			}
			if got := IsCommitConflict(tt.err); got != tt.conflict {
				t.Errorf("IsCommitConflict = %v, want %v", got, tt.conflict)
			}
			if got := IsSerialization(tt.err); got != tt.serial {
				t.Errorf("IsSerialization = %v, want %v", got, tt.serial)
			}
		})
	}
}

func TestErrorsUnwrapCause(t *testing.T) {
	err := &ConnectionError{Target: "datastore", Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("ConnectionError should unwrap to its cause")
	}

	sel := &DatabaseSelectionError{Database: "nope"}
	if sel.Error() != `database "nope" not available` {
		t.Errorf("unexpected message %q", sel.Error())
	}
}

func TestConnectionErrorNamesEndpoint(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"movies", "movies unreachable: refused"},
		{"neo4j://db.internal:7687", "neo4j://db.internal:7687 unreachable: refused"},
		{"/var/lib/bookmarksync/movies.db", "/var/lib/bookmarksync/movies.db unreachable: refused"},
		{"bus", "bus unreachable: refused"},
	}

	for _, tt := range tests {
		err := &ConnectionError{Target: tt.target, Err: errors.New("refused")}
		if err.Error() != tt.want {
			t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
		}
	}
}

func TestComposite(t *testing.T) {
	tests := []struct {
		in   []HealthStatus
		want HealthStatus
	}{
		{nil, HealthUnknown},
		{[]HealthStatus{HealthUp}, HealthUp},
		{[]HealthStatus{HealthUp, HealthUp}, HealthUp},
		{[]HealthStatus{HealthUp, HealthUnknown}, HealthUnknown},
		{[]HealthStatus{HealthUnknown, HealthDown}, HealthDown},
		{[]HealthStatus{HealthDown, HealthUp}, HealthDown},
	}

	for _, tt := range tests {
		if got := Composite(tt.in...); got != tt.want {
			t.Errorf("Composite(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTxStateIsTerminal(t *testing.T) {
	if TxOpen.IsTerminal() {
		t.Error("open should not be terminal")
	}
	for _, s := range []TxState{TxCommitted, TxRolledBack, TxFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
