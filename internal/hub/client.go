package hub

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024

	// Outbound queue capacity per subscriber. A subscriber that falls this
	// far behind is evicted by the hub.
	sendQueueSize = 64
)

// Client is one subscriber connection, bound to a single channel for its
// lifetime.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	channel string
	send    chan *Message
}

// NewClient wraps an upgraded connection as a subscriber of channel.
func NewClient(h *Hub, conn *websocket.Conn, channel string) *Client {
	return &Client{
		hub:     h,
		conn:    conn,
		channel: channel,
		send:    make(chan *Message, sendQueueSize),
	}
}

// Channel returns the channel this client is subscribed to.
func (c *Client) Channel() string {
	return c.channel
}

// Start registers the client with the hub and launches the read and write
// pumps. Either pump ending unregisters the client and closes the socket.
func (c *Client) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// writePump drains the outbound queue onto the wire and keeps the
// connection alive with pings. It exits when the hub closes the send queue
// or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the queue: evicted or shutting down.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Warn("subscriber write failed", "channel", c.channel, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound control frames until the peer disconnects.
// Inbound payloads are discarded; the read side exists only for liveness
// and close detection.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("subscriber read failed", "channel", c.channel, "error", err)
			}
			return
		}
	}
}
