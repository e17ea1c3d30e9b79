// Package service assembles one application instance's bookmark
// synchronization layer.
//
// A Service owns the bookmark registry and builds the transaction
// coordinator, the broadcast publisher, the subscriber and the health
// aggregator around it. Every dependency is passed in explicitly; there are
// no package-level stores.
//
// # Lifecycle
//
// New builds everything, Start begins listening and polling, Stop ends both.
// ApplyDatabases follows configuration changes while running: stores,
// subscriptions and health checks are added and dropped together.
//
// # Event System
//
// Every merge that grows a store, whether from a local commit or a peer
// broadcast, is published on the EventBus as EventBookmarksMerged. The SSE
// hub forwards these to connected clients.
//
// # Construction From Config
//
// OpenDriver, OpenBus and OptionsFromConfig turn the configuration file into
// Deps and Options.
package service
