package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client represents a connected SSE client
type Client struct {
	id     string
	events chan []byte
}

type message struct {
	event   string
	payload interface{}
}

// Hub manages SSE client connections
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	stopped    chan struct{}
	keepAlive  time.Duration
	log        *zap.Logger
}

// New creates a new Hub
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		stopped:    make(chan struct{}),
		keepAlive:  30 * time.Second,
		log:        logger.Named("hub"),
	}
}

// WithKeepAlive sets the interval between keep-alive comments
func (h *Hub) WithKeepAlive(d time.Duration) *Hub {
	h.keepAlive = d
	return h
}

// Run starts the hub's event loop and blocks until ctx is done.
// Every connected client is disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.events)
		}
		h.mu.Unlock()
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("SSE client connected", zap.String("client", client.id), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("SSE client disconnected", zap.String("client", client.id), zap.Int("total", total))

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.payload)
			if err != nil {
				h.log.Error("failed to marshal event", zap.String("event", msg.event), zap.Error(err))
				continue
			}

			frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", msg.event, data))

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- frame:
				default:
					h.log.Warn("SSE client is slow, skipping message", zap.String("client", client.id))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends payload to all connected clients as an event named event
func (h *Hub) Broadcast(event string, payload interface{}) {
	select {
	case h.broadcast <- message{event: event, payload: payload}:
	default:
		h.log.Warn("broadcast channel full, dropping event", zap.String("event", event))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		events: make(chan []byte, 64),
	}

	select {
	case h.register <- client:
	case <-h.stopped:
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.stopped:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
