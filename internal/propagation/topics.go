// Package propagation moves bookmarks between instances: the Publisher
// broadcasts bookmarks after local commits, the Subscriber merges peer
// broadcasts into the local stores.
package propagation

// DefaultTopicPrefix is used when no prefix is configured
const DefaultTopicPrefix = "neo4j-bookmark-exchange"

// Topics names the bus topic of each database. One topic per database keeps
// bookmarks of one database from ever reaching another database's store.
type Topics struct {
	Prefix string
}

// For returns the topic carrying broadcasts for database
func (t Topics) For(database string) string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "." + database
}
