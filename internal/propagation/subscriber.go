package propagation

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/glycerine/idem"
	"go.uber.org/zap"

	"bookmarksync/internal/bookmark"
	"bookmarksync/internal/bus"
	"bookmarksync/internal/codec"
	"bookmarksync/internal/domain"
)

// MergeObserver is told about every broadcast that grew a local store
type MergeObserver func(event domain.BookmarkEvent)

// SubscriberStats counts what the receive loops did with incoming payloads
type SubscriberStats struct {
	Received uint64
	Merged   uint64 // grew a store
	Dropped  uint64 // malformed, misrouted or for an unknown database
}

// Subscriber listens on one topic per database and merges peer broadcasts
// into the matching store. A bad payload costs one message, never the loop.
type Subscriber struct {
	bus      bus.Bus
	codec    codec.Codec
	topics   Topics
	registry *bookmark.Registry
	log      *zap.Logger

	mu       sync.Mutex
	loops    map[string]*listenLoop
	observer MergeObserver

	received atomic.Uint64
	merged   atomic.Uint64
	dropped  atomic.Uint64
}

type listenLoop struct {
	sub  bus.Subscription
	halt *idem.Halter
}

// NewSubscriber creates a subscriber feeding the stores in registry
func NewSubscriber(b bus.Bus, c codec.Codec, topics Topics, registry *bookmark.Registry, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		bus:      b,
		codec:    c,
		topics:   topics,
		registry: registry,
		loops:    make(map[string]*listenLoop),
		log:      logger.Named("subscriber"),
	}
}

// SetMergeObserver registers fn to be called after merges that grew a store
func (s *Subscriber) SetMergeObserver(fn MergeObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Start watches every database currently in the registry
func (s *Subscriber) Start() error {
	for _, name := range s.registry.Names() {
		if err := s.Watch(name); err != nil {
			return err
		}
	}
	return nil
}

// Watch subscribes to database's topic and starts its receive loop.
// Watching an already watched database is a no-op.
func (s *Subscriber) Watch(database string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loops[database]; ok {
		return nil
	}

	topic := s.topics.For(database)
	sub, err := s.bus.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	l := &listenLoop{sub: sub, halt: idem.NewHalter()}
	s.loops[database] = l
	go s.run(database, l)

	s.log.Info("listening for peer bookmarks", zap.String("database", database), zap.String("topic", topic))
	return nil
}

// Unwatch stops the receive loop of database
func (s *Subscriber) Unwatch(database string) {
	s.mu.Lock()
	l, ok := s.loops[database]
	delete(s.loops, database)
	s.mu.Unlock()

	if !ok {
		return
	}
	l.stop()
	s.log.Info("stopped listening", zap.String("database", database))
}

// Watching returns whether database has a running receive loop
func (s *Subscriber) Watching(database string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[database]
	return ok
}

// Stop ends every receive loop and waits for them
func (s *Subscriber) Stop() {
	s.mu.Lock()
	loops := s.loops
	s.loops = make(map[string]*listenLoop)
	s.mu.Unlock()

	for _, l := range loops {
		l.stop()
	}
}

// Stats returns the receive counters
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		Received: s.received.Load(),
		Merged:   s.merged.Load(),
		Dropped:  s.dropped.Load(),
	}
}

func (l *listenLoop) stop() {
	l.halt.ReqStop.Close()
	l.sub.Close()
	<-l.halt.Done.Chan
}

func (s *Subscriber) run(database string, l *listenLoop) {
	defer l.halt.Done.Close()

	for {
		select {
		case <-l.halt.ReqStop.Chan:
			return
		case payload, ok := <-l.sub.C():
			if !ok {
				return
			}
			if err := s.Handle(database, payload); err != nil {
				s.log.Warn("dropped peer broadcast", zap.String("database", database), zap.Error(err))
			}
		}
	}
}

// Handle decodes one payload received on database's topic and merges it.
// It holds no other logic; the loop only calls it.
func (s *Subscriber) Handle(database string, payload []byte) error {
	s.received.Add(1)

	env, err := s.codec.Decode(payload)
	if err != nil {
		s.dropped.Add(1)
		return err
	}
	if env.Database != database {
		s.dropped.Add(1)
		return fmt.Errorf("envelope for %q arrived on the topic of %q", env.Database, database)
	}

	store, ok := s.registry.Get(database)
	if !ok {
		s.dropped.Add(1)
		return &domain.DatabaseSelectionError{Database: database}
	}

	set := env.Set()
	if !store.Merge(set) {
		return nil
	}
	s.merged.Add(1)

	s.log.Debug("merged peer bookmarks",
		zap.String("database", database),
		zap.String("origin", env.Origin),
		zap.Strings("bookmarks", env.Bookmarks))

	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(domain.BookmarkEvent{
			Database:  database,
			Source:    domain.SourcePeer,
			Origin:    env.Origin,
			Bookmarks: store.Current().Values(),
		})
	}
	return nil
}
