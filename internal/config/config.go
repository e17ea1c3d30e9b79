// Package config provides configuration management for bookmarksync.
//
// Config file locations (priority order):
//  1. $BOOKMARKSYNC_CONFIG
//  2. ./bookmarksync.yaml
//  3. <user config dir>/bookmarksync/bookmarksync.yaml (XDG_CONFIG_HOME or ~/.config on Linux)
//  4. /etc/bookmarksync/bookmarksync.yaml
//
// Secrets and per-host values can be overridden from the environment, see
// ApplyEnv.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"bookmarksync/internal/codec"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		cfg := DefaultConfig()
		cfg.ApplyEnv(os.Getenv)
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	cfg.ApplyEnv(os.Getenv)

	return cfg, path, nil
}

// Parse decodes YAML and fills in defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := ensureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a single-process setup: embedded SQLite, in-process bus
func DefaultConfig() *Config {
	cfg := &Config{
		Version:   1,
		Databases: []string{"neo4j"},
		Datastore: DatastoreConfig{
			Driver:        DriverSQLite,
			Dir:           "./data",
			CreateMissing: true,
		},
		Bus: BusConfig{Kind: BusLocal},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Instance.Name == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.Instance.Name = host
		} else {
			c.Instance.Name = "bookmarksync"
		}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Datastore.Driver == "" {
		c.Datastore.Driver = DriverNeo4j
	}
	if c.Datastore.BookmarkWait == nil {
		c.Datastore.BookmarkWait = durationPtr(5 * time.Second)
	}
	if c.Bus.Kind == "" {
		c.Bus.Kind = BusZMQ
	}
	if c.Bus.Codec == "" {
		c.Bus.Codec = codec.FormatMsgpack
	}
	if c.Bus.PublishTimeout == nil {
		c.Bus.PublishTimeout = durationPtr(2 * time.Second)
	}
	if c.Transaction.PublishScope == "" {
		c.Transaction.PublishScope = "commit"
	}
	if c.Health.Interval == nil {
		c.Health.Interval = durationPtr(10 * time.Second)
	}
	if c.Health.Timeout == nil {
		c.Health.Timeout = durationPtr(2 * time.Second)
	}
}

var databaseName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Validate reports every problem at once
func (c *Config) Validate() error {
	var errs []error

	switch c.Datastore.Driver {
	case DriverNeo4j:
		if c.Datastore.URI == "" {
			errs = append(errs, errors.New("datastore.uri is required for the neo4j driver"))
		}
	case DriverSQLite:
		if c.Datastore.Dir == "" {
			errs = append(errs, errors.New("datastore.dir is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("datastore.driver %q: want neo4j or sqlite", c.Datastore.Driver))
	}

	switch c.Bus.Kind {
	case BusLocal:
	case BusZMQ:
		if c.Bus.PublishEndpoint == "" || c.Bus.SubscribeEndpoint == "" {
			errs = append(errs, errors.New("bus.publish_endpoint and bus.subscribe_endpoint are required for zmq"))
		}
	default:
		errs = append(errs, fmt.Errorf("bus.kind %q: want zmq or local", c.Bus.Kind))
	}

	if _, err := codec.ForFormat(c.Bus.Codec); err != nil {
		errs = append(errs, fmt.Errorf("bus.codec: %w", err))
	}

	switch c.Transaction.PublishScope {
	case "commit", "store":
	default:
		errs = append(errs, fmt.Errorf("transaction.publish_scope %q: want commit or store", c.Transaction.PublishScope))
	}

	seen := make(map[string]bool, len(c.Databases))
	for _, name := range c.Databases {
		if !databaseName.MatchString(name) {
			errs = append(errs, fmt.Errorf("databases: invalid name %q", name))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("databases: %q listed twice", name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}

// Summary returns a one-line description for the startup log
func (c *Config) Summary() string {
	return fmt.Sprintf("instance=%s driver=%s bus=%s codec=%s databases=%v",
		c.Instance.Name, c.Datastore.Driver, c.Bus.Kind, c.Bus.Codec, c.Databases)
}
