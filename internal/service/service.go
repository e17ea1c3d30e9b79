package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bookmarksync/internal/bookmark"
	"bookmarksync/internal/bus"
	"bookmarksync/internal/codec"
	"bookmarksync/internal/domain"
	"bookmarksync/internal/driver"
	"bookmarksync/internal/health"
	"bookmarksync/internal/propagation"
	"bookmarksync/internal/txn"
)

// Deps are the collaborators a Service runs on. The Service does not own
// them; closing is the caller's job.
type Deps struct {
	Driver driver.Driver
	Bus    bus.Bus
	Codec  codec.Codec
	Logger *zap.Logger
}

// Options configures a Service
type Options struct {
	Instance       string // origin stamped on broadcasts
	Databases      []string
	TopicPrefix    string
	PublishTimeout time.Duration
	Transaction    txn.Options
	Health         health.Options
}

// Service is one application instance's bookmark synchronization layer
type Service struct {
	registry    *bookmark.Registry
	coordinator *txn.Coordinator
	publisher   *propagation.Publisher
	subscriber  *propagation.Subscriber
	health      *health.Aggregator
	events      *EventBus
	log         *zap.Logger
}

// DatabaseInfo summarizes one configured database
type DatabaseInfo struct {
	Name      string              `json:"name"`
	Bookmarks []string            `json:"bookmarks"`
	Health    domain.HealthStatus `json:"health"`
	Watching  bool                `json:"watching"`
}

// New builds every component; nothing runs until Start
func New(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := deps.Codec
	if c == nil {
		c = codec.NewMsgpackCodec()
	}

	topics := propagation.Topics{Prefix: opts.TopicPrefix}
	registry := bookmark.NewRegistry(opts.Databases...)
	publisher := propagation.NewPublisher(deps.Bus, c, topics, propagation.PublisherOptions{
		Origin:  opts.Instance,
		Timeout: opts.PublishTimeout,
	}, logger)

	s := &Service{
		registry:    registry,
		coordinator: txn.New(deps.Driver, registry, publisher, opts.Transaction, logger),
		publisher:   publisher,
		subscriber:  propagation.NewSubscriber(deps.Bus, c, topics, registry, logger),
		health:      health.New(deps.Driver, opts.Health, logger),
		events:      NewEventBus(),
		log:         logger.With(zap.String("instance", opts.Instance)),
	}

	notify := func(e domain.BookmarkEvent) {
		s.events.Publish(Event{Type: EventBookmarksMerged, Payload: e})
	}
	s.coordinator.SetMergeObserver(notify)
	s.subscriber.SetMergeObserver(notify)

	for _, name := range registry.Names() {
		s.health.Register(name)
	}
	return s
}

// Start begins listening for peer broadcasts and polling health
func (s *Service) Start(ctx context.Context) error {
	if err := s.subscriber.Start(); err != nil {
		return fmt.Errorf("start subscriber: %w", err)
	}
	if err := s.health.Start(ctx); err != nil {
		s.subscriber.Stop()
		return fmt.Errorf("start health checks: %w", err)
	}
	s.log.Info("bookmark sync started", zap.Strings("databases", s.registry.Names()))
	return nil
}

// Stop ends the subscriber and the health loops
func (s *Service) Stop() {
	s.subscriber.Stop()
	s.health.Stop()
	s.log.Info("bookmark sync stopped")
}

// ApplyDatabases makes names the configured database set. New databases get
// an empty store, a subscription and health checks; dropped ones lose all three.
func (s *Service) ApplyDatabases(names []string) (added, removed []string, err error) {
	added, removed = s.registry.Sync(names)

	for _, name := range removed {
		s.subscriber.Unwatch(name)
		s.health.Unregister(name)
	}
	var errs []error
	for _, name := range added {
		s.health.Register(name)
		if werr := s.subscriber.Watch(name); werr != nil {
			errs = append(errs, werr)
		}
	}

	if len(added) > 0 || len(removed) > 0 {
		s.log.Info("databases changed", zap.Strings("added", added), zap.Strings("removed", removed))
		s.events.Publish(Event{
			Type:    EventDatabasesChanged,
			Payload: DatabasesChanged{Added: added, Removed: removed},
		})
	}
	if len(errs) > 0 {
		return added, removed, fmt.Errorf("watch new databases: %v", errs)
	}
	return added, removed, nil
}

// Bookmarks returns the current local set of database
func (s *Service) Bookmarks(database string) (domain.BookmarkSet, error) {
	store, ok := s.registry.Get(database)
	if !ok {
		return domain.BookmarkSet{}, &domain.DatabaseSelectionError{Database: database}
	}
	return store.Current(), nil
}

// Databases describes every configured database
func (s *Service) Databases() []DatabaseInfo {
	names := s.registry.Names()
	infos := make([]DatabaseInfo, 0, len(names))
	for _, name := range names {
		info := DatabaseInfo{
			Name:      name,
			Bookmarks: []string{},
			Health:    s.health.Status(name),
			Watching:  s.subscriber.Watching(name),
		}
		if store, ok := s.registry.Get(name); ok {
			info.Bookmarks = store.Current().Values()
		}
		infos = append(infos, info)
	}
	return infos
}

// HealthStatus returns the composite report, one entry per configured database
func (s *Service) HealthStatus() health.Report {
	return s.health.Report()
}

// Coordinator returns the transaction coordinator
func (s *Service) Coordinator() *txn.Coordinator { return s.coordinator }

// Registry returns the bookmark stores
func (s *Service) Registry() *bookmark.Registry { return s.registry }

// Subscriber returns the broadcast listener
func (s *Service) Subscriber() *propagation.Subscriber { return s.subscriber }

// Publisher returns the broadcast sender
func (s *Service) Publisher() *propagation.Publisher { return s.publisher }

// Events returns the in-process event bus
func (s *Service) Events() *EventBus { return s.events }
