package config

import (
	"strings"
	"time"
)

// EnvPrefix starts every environment override
const EnvPrefix = "BOOKMARKSYNC_"

// ApplyEnv overrides file values from the environment. getenv is os.Getenv
// outside tests.
//
//	BOOKMARKSYNC_INSTANCE              instance.name
//	BOOKMARKSYNC_HTTP_ADDR             http.addr
//	BOOKMARKSYNC_LOG_LEVEL             log.level
//	BOOKMARKSYNC_DATASTORE_URI         datastore.uri
//	BOOKMARKSYNC_DATASTORE_USERNAME    datastore.username
//	BOOKMARKSYNC_DATASTORE_PASSWORD    datastore.password
//	BOOKMARKSYNC_DATABASES             databases, comma separated
//	BOOKMARKSYNC_BUS_PUBLISH           bus.publish_endpoint
//	BOOKMARKSYNC_BUS_SUBSCRIBE         bus.subscribe_endpoint
//	BOOKMARKSYNC_TRANSACTION_TIMEOUT   transaction.timeout
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	set("INSTANCE", &c.Instance.Name)
	set("HTTP_ADDR", &c.HTTP.Addr)
	set("LOG_LEVEL", &c.Log.Level)
	set("DATASTORE_URI", &c.Datastore.URI)
	set("DATASTORE_USERNAME", &c.Datastore.Username)
	set("DATASTORE_PASSWORD", &c.Datastore.Password)
	set("BUS_PUBLISH", &c.Bus.PublishEndpoint)
	set("BUS_SUBSCRIBE", &c.Bus.SubscribeEndpoint)

	if v := getenv(EnvPrefix + "DATABASES"); v != "" {
		var names []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		c.Databases = names
	}

	if v := getenv(EnvPrefix + "TRANSACTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Transaction.Timeout = durationPtr(d)
		}
	}
}
