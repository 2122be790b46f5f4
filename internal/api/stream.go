package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool, any origin
	},
}

// Stream handles GET /stream: every engine notification is pushed to the
// client as JSON, in engine order. A client too slow to keep up with its
// buffer misses notifications rather than stalling the engine.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "notification stream disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().Warn("STREAM_UPGRADE_FAILED", slog.Any("error", err))
		return
	}
	defer conn.Close()

	notes, unsubscribe := h.Bus.Subscribe(h.StreamBuffer)
	defer unsubscribe()

	h.logger().Info("STREAM_CLIENT_CONNECTED", slog.String("remote", r.RemoteAddr))

	// Reader: detect disconnects; client messages are ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.logger().Info("STREAM_CLIENT_DISCONNECTED", slog.String("remote", r.RemoteAddr))
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case n, ok := <-notes:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(newNotificationDTO(n)); err != nil {
				h.logger().Warn("STREAM_WRITE_FAILED", slog.Any("error", err))
				return
			}
		}
	}
}
