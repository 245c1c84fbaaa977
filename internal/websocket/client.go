package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"art-curator-be/internal/dto"
	"art-curator-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// InboundHandler processes a message a client sent on its session channel.
type InboundHandler func(ctx context.Context, sessionID string, msg dto.InboundMessage) error

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	SessionID string

	// The websocket connection. Nil for in-process subscribers.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	mu     sync.Mutex
	closed bool

	onMessage InboundHandler
	logger    logger.ILogger
}

func NewClient(sessionID string, conn *websocket.Conn, onMessage InboundHandler, log logger.ILogger) *Client {
	return &Client{
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		onMessage: onMessage,
		logger:    log,
	}
}

func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) reply(env dto.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.trySend(data)
}

// readPump pumps messages from the websocket connection to the inbound handler.
func (c *Client) readPump(ctx context.Context) {
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Client", "Unexpected close", map[string]interface{}{"session_id": c.SessionID, "error": err.Error()})
			}
			return
		}
		c.handleMessage(ctx, raw)
	}
}

func (c *Client) handleMessage(ctx context.Context, raw []byte) {
	var msg dto.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(dto.ErrorEnvelope("Invalid message format", err))
		return
	}

	switch msg.Type {
	case dto.InboundQuery:
		if c.onMessage == nil {
			c.reply(dto.ErrorEnvelope("Queries are not accepted on this channel", nil))
			return
		}
		if err := c.onMessage(ctx, c.SessionID, msg); err != nil {
			c.reply(dto.ErrorEnvelope("Failed to process query", err))
		}
	default:
		c.reply(dto.ErrorEnvelope("Unknown message type: "+msg.Type, nil))
	}
}

// writePump pumps messages from the hub to the websocket connection. One
// envelope per frame so clients can JSON.parse each message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
