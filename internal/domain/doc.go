// Package domain defines the core types of the bookmark synchronization layer.
//
// A Bookmark is an opaque causal token handed out by a causally-clustered
// datastore after a commit. Opening a transaction with a set of bookmarks
// guarantees the transaction observes every write those bookmarks stand for.
//
// # Bookmark Sets
//
// BookmarkSet is immutable. Merging two sets is a plain union: the layer has
// no way to order tokens without asking the datastore, so it keeps every
// token it has seen and accepts redundancy instead of risking the loss of a
// causally-required one. Union is commutative, associative and idempotent,
// which is what makes out-of-order and duplicate broadcasts harmless.
//
// # Errors
//
// The error kinds shared by every package live here:
//
//   - ConnectionError: datastore or bus unreachable, or a deadline expired
//   - DatabaseSelectionError: unknown or non-routable database name
//   - CommitConflictError: the datastore rejected a commit
//   - SerializationError: a broadcast payload could not be decoded
//   - PublishError: a broadcast could not be handed to the bus
//
// # Health
//
// HealthStatus and Composite describe per-database reachability and the
// folded status across all configured databases.
package domain
