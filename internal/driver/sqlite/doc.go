// Package sqlite implements driver.Driver on embedded SQLite files.
//
// Each logical database is one file, <dir>/<database>.db, opened in WAL mode
// so readers never block the writer. A _commits table numbers every writing
// transaction; the number is the bookmark:
//
//	sqlite:<database>:<seq>
//
// Opening a transaction with a bookmark waits until the file's commit
// sequence has caught up with it, which is what lets several processes that
// share the directory read their own and each other's writes.
//
// # Testing
//
// Tests run against files in t.TempDir().
package sqlite
