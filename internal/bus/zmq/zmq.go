// Package zmq implements the bookmark bus on ZeroMQ PUB/SUB sockets.
//
// Every instance connects one PUB socket to the broker's XSUB endpoint and one
// SUB socket per subscribed topic to the broker's XPUB endpoint. Messages are
// two frames: topic, payload.
package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/glycerine/idem"
	zmq "github.com/pebbe/zmq4"
	"go.uber.org/zap"

	"bookmarksync/internal/bus"
	"bookmarksync/internal/domain"
)

// Config holds the broker endpoints
type Config struct {
	PublishEndpoint   string        // broker XSUB, e.g. tcp://broker:5557
	SubscribeEndpoint string        // broker XPUB, e.g. tcp://broker:5558
	SendTimeout       time.Duration // bounds a single send
	PollInterval      time.Duration // receive timeout between stop checks
}

// Bus is a ZeroMQ-backed bus.Bus
type Bus struct {
	cfg Config
	ctx *zmq.Context
	log *zap.Logger

	pubMu sync.Mutex // zmq sockets are not goroutine-safe
	pub   *zmq.Socket

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var _ bus.Bus = (*Bus)(nil)

// New connects the publishing socket. Connecting is asynchronous in ZeroMQ:
// an absent broker is not an error here, payloads are dropped until it shows up.
func New(cfg Config, logger *zap.Logger) (*Bus, error) {
	if cfg.PublishEndpoint == "" || cfg.SubscribeEndpoint == "" {
		return nil, errors.New("zmq bus needs both publish and subscribe endpoints")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create zmq context: %w", err)
	}

	pub, err := zctx.NewSocket(zmq.PUB)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("create PUB socket: %w", err)
	}
	pub.SetLinger(0)
	pub.SetSndtimeo(cfg.SendTimeout)
	if err := pub.Connect(cfg.PublishEndpoint); err != nil {
		pub.Close()
		zctx.Term()
		return nil, fmt.Errorf("connect PUB to %s: %w", cfg.PublishEndpoint, err)
	}

	b := &Bus{
		cfg:  cfg,
		ctx:  zctx,
		pub:  pub,
		subs: make(map[*subscription]struct{}),
		log:  logger.Named("bus.zmq"),
	}
	b.log.Info("connected to broker",
		zap.String("publish", cfg.PublishEndpoint),
		zap.String("subscribe", cfg.SubscribeEndpoint))
	return b, nil
}

// Publish sends [topic, payload] on the PUB socket
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return &domain.ConnectionError{Target: "bus", Err: err}
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if b.pub == nil {
		return &domain.ConnectionError{Target: "bus", Err: errors.New("bus closed")}
	}
	if _, err := b.pub.SendMessage(topic, payload); err != nil {
		return &domain.ConnectionError{Target: "bus", Err: err}
	}
	return nil
}

// Subscribe opens a SUB socket filtered on topic and starts its receive loop
func (b *Bus) Subscribe(topic string) (bus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, &domain.ConnectionError{Target: "bus", Err: errors.New("bus closed")}
	}

	sock, err := b.ctx.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("create SUB socket: %w", err)
	}
	sock.SetLinger(0)
	sock.SetRcvtimeo(b.cfg.PollInterval)
	if err := sock.SetSubscribe(topic); err != nil {
		sock.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	if err := sock.Connect(b.cfg.SubscribeEndpoint); err != nil {
		sock.Close()
		return nil, &domain.ConnectionError{Target: "bus", Err: err}
	}

	sub := &subscription{
		bus:   b,
		topic: topic,
		sock:  sock,
		ch:    make(chan []byte, 64),
		halt:  idem.NewHalter(),
		log:   b.log.With(zap.String("topic", topic)),
	}
	b.subs[sub] = struct{}{}
	go sub.recvLoop()
	return sub, nil
}

// Close stops all subscriptions and terminates the context
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	b.pubMu.Lock()
	if b.pub != nil {
		b.pub.Close()
		b.pub = nil
	}
	b.pubMu.Unlock()

	return b.ctx.Term()
}

func (b *Bus) forget(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

type subscription struct {
	bus   *Bus
	topic string
	sock  *zmq.Socket // owned by recvLoop
	ch    chan []byte
	halt  *idem.Halter
	log   *zap.Logger
}

func (s *subscription) C() <-chan []byte { return s.ch }

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Close() error {
	s.halt.ReqStop.Close()
	<-s.halt.Done.Chan
	s.bus.forget(s)
	return nil
}

func (s *subscription) recvLoop() {
	defer func() {
		s.sock.Close()
		close(s.ch)
		s.halt.Done.Close()
	}()

	for {
		select {
		case <-s.halt.ReqStop.Chan:
			return
		default:
		}

		parts, err := s.sock.RecvMessageBytes(0)
		if err != nil {
			switch zmq.AsErrno(err) {
			case zmq.Errno(syscall.EAGAIN):
				continue
			case zmq.ETERM:
				return
			}
			s.log.Warn("receive failed", zap.Error(err))
			continue
		}

		// SUB filters by prefix; require the exact topic
		if len(parts) < 2 || string(parts[0]) != s.topic {
			continue
		}

		select {
		case s.ch <- parts[1]:
		case <-s.halt.ReqStop.Chan:
			return
		}
	}
}
