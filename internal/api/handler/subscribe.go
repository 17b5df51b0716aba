package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/kiranshivaraju/trainhub/internal/api/response"
	"github.com/kiranshivaraju/trainhub/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens gate access, not origins; browser clients connect from
	// arbitrary front-end hosts.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewSubscribeHandler returns an http.HandlerFunc for GET /api/v1/ws. It
// upgrades the connection and binds it to the requested channel for the
// lifetime of the socket. Authentication happens in middleware before the
// upgrade, so a rejected client gets a proper HTTP status.
func NewSubscribeHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"channel query parameter is required", nil)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			slog.Warn("websocket upgrade failed", "channel", channel, "error", err)
			return
		}

		client := hub.NewClient(h, conn, channel)
		client.Start()
	}
}
