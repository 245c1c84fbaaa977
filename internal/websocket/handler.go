package websocket

import (
	"context"

	"art-curator-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

// Registry attaches clients to a session. Subscribe must deliver the current
// snapshot to the client before any later mutation reaches it.
type Registry interface {
	Subscribe(ctx context.Context, sessionID string, client *Client) error
	Unsubscribe(sessionID string, client *Client)
}

// ServeWs runs one session channel until the peer disconnects.
func ServeWs(registry Registry, conn *websocket.Conn, sessionID string, onMessage InboundHandler, log logger.ILogger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(sessionID, conn, onMessage, log)
	if err := registry.Subscribe(ctx, sessionID, client); err != nil {
		log.Error("ServeWs", "Subscribe failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		conn.Close()
		return
	}
	defer registry.Unsubscribe(sessionID, client)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump(ctx)
}
