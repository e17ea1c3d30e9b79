// Package handler implements the HTTP surface of a bookmarksync instance.
//
// # Routes
//
//	GET  /api/databases                          configured databases and their bookmarks
//	GET  /api/databases/{db}/bookmarks           the local bookmark set of one database
//	POST /api/databases/{db}/transactions        run statements in one causally consistent transaction
//	GET  /events                                 Server-Sent Events stream of bookmark merges
//
// # Errors
//
// Errors are returned as JSON with an {error, details} structure. The status
// follows the error kind: 404 for an unknown database, 503 when the
// datastore cannot be reached, 409 on a commit conflict and 500 otherwise.
package handler
