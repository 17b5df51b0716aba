// Package hub is a channel-addressed pub/sub router. One Hub instance per
// process fans every broadcast message out to the live subscribers of its
// channel; slow subscribers are evicted rather than slowing publishers down.
package hub

import (
	"context"
	"log/slog"

	"github.com/kiranshivaraju/trainhub/internal/id"
)

const broadcastBuffer = 256

// Hub routes messages to subscribers. All membership state is owned by the
// Run loop; Register, Unregister and Broadcast are safe from any goroutine.
type Hub struct {
	gen *id.Generator

	subscribers map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	done chan struct{}
}

// New creates a Hub. The caller must start Run before using it.
func New(gen *id.Generator) *Hub {
	return &Hub{
		gen:         gen,
		subscribers: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, broadcastBuffer),
		done:        make(chan struct{}),
	}
}

// Run serializes all membership mutation and delivery. It returns when ctx
// is canceled; after that, Register/Unregister/Broadcast become no-ops.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for channel, clients := range h.subscribers {
				for c := range clients {
					close(c.send)
				}
				delete(h.subscribers, channel)
			}
			return

		case c := <-h.register:
			if h.subscribers[c.channel] == nil {
				h.subscribers[c.channel] = make(map[*Client]bool)
			}
			h.subscribers[c.channel][c] = true
			slog.Info("subscriber registered", "channel", c.channel, "subscribers", len(h.subscribers[c.channel]))

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.subscribers[msg.Channel] {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop it instead of blocking delivery
					// to everyone else.
					slog.Warn("evicting slow subscriber", "channel", msg.Channel)
					h.remove(c)
				}
			}
		}
	}
}

// remove drops a client from its channel set. Idempotent: a client already
// evicted by a broadcast is skipped when its pump later unregisters it.
func (h *Hub) remove(c *Client) {
	clients, ok := h.subscribers[c.channel]
	if !ok {
		return
	}
	if !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.subscribers, c.channel)
	}
	slog.Info("subscriber unregistered", "channel", c.channel)
}

// Register adds a client to its channel's subscriber set. The call returns
// once the Run loop has processed it, so a subsequent Broadcast sees the
// new subscriber.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client and closes its delivery queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast enqueues a message for every current subscriber of channel. A
// non-nil err forces the envelope type to "error" and carries its text.
func (h *Hub) Broadcast(channel, messageType string, data any, progress *Progress, err error) {
	msg := &Message{
		ID:       h.gen.Next(),
		Type:     messageType,
		Channel:  channel,
		Data:     data,
		Progress: progress,
	}
	if err != nil {
		msg.Type = "error"
		msg.Error = err.Error()
	}

	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}
