package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version     int               `yaml:"version"`
	Instance    InstanceConfig    `yaml:"instance"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
	Datastore   DatastoreConfig   `yaml:"datastore"`
	Databases   []string          `yaml:"databases"`
	Bus         BusConfig         `yaml:"bus"`
	Transaction TransactionConfig `yaml:"transaction"`
	Health      HealthConfig      `yaml:"health"`
}

// InstanceConfig identifies this process to its peers
type InstanceConfig struct {
	Name string `yaml:"name"` // origin in broadcast envelopes; defaults to the hostname
}

// HTTPConfig holds the API listener
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig selects zap's level and encoding
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Datastore drivers
const (
	DriverNeo4j  = "neo4j"
	DriverSQLite = "sqlite"
)

// DatastoreConfig selects and configures the datastore driver
type DatastoreConfig struct {
	Driver string `yaml:"driver"`

	// neo4j
	URI      string `yaml:"uri,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"` // prefer BOOKMARKSYNC_DATASTORE_PASSWORD
	MaxPool  int    `yaml:"max_pool,omitempty"`

	// sqlite
	Dir           string    `yaml:"dir,omitempty"`
	CreateMissing bool      `yaml:"create_missing,omitempty"`
	BookmarkWait  *Duration `yaml:"bookmark_wait,omitempty"`
}

// Bus kinds
const (
	BusZMQ   = "zmq"
	BusLocal = "local"
)

// BusConfig holds the broadcast transport
type BusConfig struct {
	Kind              string    `yaml:"kind"`
	PublishEndpoint   string    `yaml:"publish_endpoint,omitempty"`   // broker XSUB
	SubscribeEndpoint string    `yaml:"subscribe_endpoint,omitempty"` // broker XPUB
	TopicPrefix       string    `yaml:"topic_prefix"`
	Codec             string    `yaml:"codec"`
	PublishTimeout    *Duration `yaml:"publish_timeout,omitempty"`
}

// TransactionConfig holds coordinator options
type TransactionConfig struct {
	Timeout      *Duration `yaml:"timeout,omitempty"`
	PublishScope string    `yaml:"publish_scope"` // commit or store
}

// HealthConfig holds reachability polling options
type HealthConfig struct {
	Interval *Duration `yaml:"interval,omitempty"`
	Timeout  *Duration `yaml:"timeout,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Or returns d, or fallback when d is unset
func (d *Duration) Or(fallback time.Duration) time.Duration {
	if d == nil {
		return fallback
	}
	return time.Duration(*d)
}

func durationPtr(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}
