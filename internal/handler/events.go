package handler

import (
	"context"

	"bookmarksync/internal/service"
)

// Broadcaster is the SSE side of ForwardEvents
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// ForwardEvents relays every event published on events to b until ctx is done
func ForwardEvents(ctx context.Context, events *service.EventBus, b Broadcaster) {
	ch := make(chan service.Event, 100)
	events.Subscribe(ch)
	defer events.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			b.Broadcast(string(event.Type), event.Payload)
		}
	}
}
