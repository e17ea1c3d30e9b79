package propagation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookmarksync/internal/bus"
	"bookmarksync/internal/codec"
	"bookmarksync/internal/domain"
)

// PublisherStats counts broadcast outcomes
type PublisherStats struct {
	Published uint64
	Failed    uint64
}

// Publisher broadcasts bookmark sets on the bus. It is best-effort: failures
// are logged and swallowed, a committed write never fails because of it.
type Publisher struct {
	bus     bus.Bus
	codec   codec.Codec
	topics  Topics
	origin  string
	timeout time.Duration
	log     *zap.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// PublisherOptions configures a Publisher
type PublisherOptions struct {
	Origin  string        // identifies this instance in envelopes; random when empty
	Timeout time.Duration // upper bound for one publish; 0 means 2s
}

// NewPublisher creates a publisher on b
func NewPublisher(b bus.Bus, c codec.Codec, topics Topics, opts PublisherOptions, logger *zap.Logger) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		bus:     b,
		codec:   c,
		topics:  topics,
		origin:  opts.Origin,
		timeout: opts.Timeout,
		log:     logger.Named("publisher"),
	}
}

// Origin returns the identity stamped on outgoing envelopes
func (p *Publisher) Origin() string { return p.origin }

// Publish sends set to the database's topic. Empty sets are skipped.
func (p *Publisher) Publish(ctx context.Context, database string, set domain.BookmarkSet) {
	if set.IsEmpty() {
		return
	}
	topic := p.topics.For(database)

	data, err := p.codec.Encode(codec.NewEnvelope(database, p.origin, set))
	if err != nil {
		p.fail(&domain.PublishError{Topic: topic, Err: err}, database)
		return
	}

	// the commit already happened; its caller's cancellation must not stop propagation
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.bus.Publish(pctx, topic, data); err != nil {
		p.fail(&domain.PublishError{Topic: topic, Err: err}, database)
		return
	}

	p.published.Add(1)
	p.log.Debug("bookmarks published",
		zap.String("database", database),
		zap.String("topic", topic),
		zap.Strings("bookmarks", set.Values()))
}

// Stats returns the outcome counters
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{Published: p.published.Load(), Failed: p.failed.Load()}
}

func (p *Publisher) fail(err error, database string) {
	p.failed.Add(1)
	p.log.Warn("bookmark broadcast lost, peers catch up on a later one",
		zap.String("database", database),
		zap.Error(err))
}
