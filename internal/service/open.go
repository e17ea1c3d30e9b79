package service

import (
	"fmt"

	"go.uber.org/zap"

	"bookmarksync/internal/bus"
	zmqbus "bookmarksync/internal/bus/zmq"
	"bookmarksync/internal/config"
	"bookmarksync/internal/driver"
	neo4jdriver "bookmarksync/internal/driver/neo4j"
	sqlitedriver "bookmarksync/internal/driver/sqlite"
	"bookmarksync/internal/health"
	"bookmarksync/internal/txn"
)

// OpenDriver creates the datastore driver named in cfg
func OpenDriver(cfg config.DatastoreConfig, logger *zap.Logger) (driver.Driver, error) {
	switch cfg.Driver {
	case config.DriverNeo4j:
		return neo4jdriver.New(neo4jdriver.Config{
			URI:         cfg.URI,
			Username:    cfg.Username,
			Password:    cfg.Password,
			MaxPoolSize: cfg.MaxPool,
		}, logger)
	case config.DriverSQLite:
		return sqlitedriver.New(sqlitedriver.Config{
			Dir:           cfg.Dir,
			CreateMissing: cfg.CreateMissing,
			BookmarkWait:  cfg.BookmarkWait.Or(0),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown datastore driver %q", cfg.Driver)
	}
}

// OpenBus creates the broadcast transport named in cfg
func OpenBus(cfg config.BusConfig, logger *zap.Logger) (bus.Bus, error) {
	switch cfg.Kind {
	case config.BusLocal:
		return bus.NewLocal(logger), nil
	case config.BusZMQ:
		return zmqbus.New(zmqbus.Config{
			PublishEndpoint:   cfg.PublishEndpoint,
			SubscribeEndpoint: cfg.SubscribeEndpoint,
			SendTimeout:       cfg.PublishTimeout.Or(0),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown bus kind %q", cfg.Kind)
	}
}

// OptionsFromConfig maps the configuration file onto Service options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Instance:       cfg.Instance.Name,
		Databases:      cfg.Databases,
		TopicPrefix:    cfg.Bus.TopicPrefix,
		PublishTimeout: cfg.Bus.PublishTimeout.Or(0),
		Transaction: txn.Options{
			Timeout:      cfg.Transaction.Timeout.Or(0),
			PublishScope: txn.PublishScope(cfg.Transaction.PublishScope),
		},
		Health: health.Options{
			Interval: cfg.Health.Interval.Or(0),
			Timeout:  cfg.Health.Timeout.Or(0),
		},
	}
}
