package domain

// TxState is the lifecycle state of a transaction
type TxState string

// Transaction states. Open is the only non-terminal one.
const (
	TxOpen       TxState = "open"
	TxCommitted  TxState = "committed"
	TxRolledBack TxState = "rolled_back"
	TxFailed     TxState = "failed" // commit or statement rejected
)

// IsTerminal reports whether no further operation is allowed
func (s TxState) IsTerminal() bool {
	return s != TxOpen
}

// HealthStatus is the reachability of one database, or the composite of several
type HealthStatus string

const (
	HealthUp      HealthStatus = "UP"
	HealthDown    HealthStatus = "DOWN"
	HealthUnknown HealthStatus = "UNKNOWN"
)

// Composite folds per-database statuses: DOWN wins, then UNKNOWN, UP only if all are UP.
// An empty input is UNKNOWN.
func Composite(statuses ...HealthStatus) HealthStatus {
	if len(statuses) == 0 {
		return HealthUnknown
	}
	result := HealthUp
	for _, s := range statuses {
		switch s {
		case HealthDown:
			return HealthDown
		case HealthUp:
		default:
			result = HealthUnknown
		}
	}
	return result
}

// BookmarkEvent describes a change of a local bookmark set
type BookmarkEvent struct {
	Database  string   `json:"database"`
	Source    string   `json:"source"` // "local" for own commits, "peer" for broadcasts
	Origin    string   `json:"origin,omitempty"`
	Bookmarks []string `json:"bookmarks"`
}

// BookmarkEvent sources
const (
	// SourceLocal marks a merge of this instance's own commit
	SourceLocal = "local"
	// SourcePeer marks a merge of another instance's broadcast
	SourcePeer = "peer"
)
