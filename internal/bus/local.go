package bus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"bookmarksync/internal/domain"
)

// ErrBusDown is the cause reported while a Local bus is marked down
var ErrBusDown = errors.New("bus is down")

// Local is an in-process bus. Several instances in one process (or one
// instance and its tests) can share it. Sends never block: a subscriber
// whose buffer is full misses the payload.
type Local struct {
	mu     sync.RWMutex
	subs   map[string]map[*localSub]struct{}
	down   bool
	closed bool
	buffer int
	log    *zap.Logger
}

// NewLocal creates an in-process bus
func NewLocal(logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		subs:   make(map[string]map[*localSub]struct{}),
		buffer: 256,
		log:    logger.Named("bus.local"),
	}
}

// SetDown simulates an outage: while down, Publish fails and nothing is delivered
func (b *Local) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

// Publish delivers a copy of payload to every subscriber of topic
func (b *Local) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return &domain.ConnectionError{Target: "bus", Err: err}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &domain.ConnectionError{Target: "bus", Err: errors.New("bus closed")}
	}
	if b.down {
		return &domain.ConnectionError{Target: "bus", Err: ErrBusDown}
	}

	for sub := range b.subs[topic] {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case sub.ch <- msg:
		default:
			b.log.Warn("subscriber is slow, dropping payload", zap.String("topic", topic))
		}
	}
	return nil
}

// Subscribe registers a new subscription on topic
func (b *Local) Subscribe(topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, &domain.ConnectionError{Target: "bus", Err: errors.New("bus closed")}
	}

	sub := &localSub{bus: b, topic: topic, ch: make(chan []byte, b.buffer)}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*localSub]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions on topic
func (b *Local) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close closes every subscription
func (b *Local) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.closeLocked()
		}
	}
	b.subs = make(map[string]map[*localSub]struct{})
	return nil
}

func (b *Local) remove(sub *localSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[sub.topic]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			sub.closeLocked()
		}
		if len(subs) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

type localSub struct {
	bus    *Local
	topic  string
	ch     chan []byte
	closed bool
}

func (s *localSub) C() <-chan []byte { return s.ch }

func (s *localSub) Topic() string { return s.topic }

func (s *localSub) Close() error {
	s.bus.remove(s)
	return nil
}

// closeLocked must be called with the bus write lock held
func (s *localSub) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
