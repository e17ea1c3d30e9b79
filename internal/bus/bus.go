// Package bus defines the pub/sub transport that carries bookmark broadcasts
// between instances. Delivery may be at-most-once or at-least-once and is
// not ordered; consumers must be idempotent.
package bus

import (
	"context"
)

// Bus publishes payloads to topics and hands out topic subscriptions
type Bus interface {
	// Publish sends payload to every current subscriber of topic.
	// A *domain.ConnectionError reports an unreachable bus.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe starts receiving payloads published to topic
	Subscribe(topic string) (Subscription, error)

	// Close releases the transport; open subscriptions are closed too
	Close() error
}

// Subscription is a stream of payloads for one topic
type Subscription interface {
	// C yields received payloads. It is closed after Close.
	C() <-chan []byte

	// Topic returns the subscribed topic
	Topic() string

	// Close stops delivery
	Close() error
}
