package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"art-curator-be/internal/dto"
	"art-curator-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	relayChannel = "session_events"

	// Broadcast runs under the caller's session lock; a stalled redis must
	// not hold it longer than this.
	defaultRelayTimeout = 2 * time.Second
)

// Hub is the subscriber registry: session id -> connected clients. Delivery
// to one client never blocks or fails another.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}

	// Redis connection for cross-instance relay; nil runs single-instance.
	rdb          *redis.Client
	instanceID   string
	relayTimeout time.Duration

	logger logger.ILogger
}

type relayMessage struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		sessions:     make(map[string]map[*Client]struct{}),
		rdb:          rdb,
		instanceID:   uuid.NewString(),
		relayTimeout: defaultRelayTimeout,
		logger:       log,
	}
}

// Run relays events published by other instances until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()
		return
	}

	pubsub := h.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var relay relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &relay); err != nil {
				h.logger.Warn("Hub", "Relay message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if relay.Origin == h.instanceID {
				continue
			}
			h.deliver(relay.SessionID, relay.Message)
		}
	}
}

func (h *Hub) Subscribe(sessionID string, client *Client) {
	h.mu.Lock()
	clients, ok := h.sessions[sessionID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.sessions[sessionID] = clients
	}
	clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("Hub", "Client subscribed", map[string]interface{}{"session_id": sessionID})
}

// Unsubscribe removes the client and closes its send buffer. Safe to call
// more than once.
func (h *Hub) Unsubscribe(sessionID string, client *Client) {
	h.mu.Lock()
	if clients, ok := h.sessions[sessionID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	h.mu.Unlock()

	client.close()
	h.logger.Info("Hub", "Client unsubscribed", map[string]interface{}{"session_id": sessionID})
}

// SubscriberCount is the number of live clients for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Broadcast sends env to every client subscribed to sessionID, here and on
// other instances.
func (h *Hub) Broadcast(sessionID string, env dto.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode envelope", map[string]interface{}{"error": err.Error(), "type": env.Type})
		return
	}

	h.deliver(sessionID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(relayMessage{Origin: h.instanceID, SessionID: sessionID, Message: data})
		ctx, cancel := context.WithTimeout(context.Background(), h.relayTimeout)
		defer cancel()
		if err := h.rdb.Publish(ctx, relayChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Relay publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// SendTo delivers env to a single client, used for connect-time snapshots.
func (h *Hub) SendTo(client *Client, env dto.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		return false
	}
	if client.trySend(data) {
		return true
	}
	h.Unsubscribe(client.SessionID, client)
	return false
}

func (h *Hub) deliver(sessionID string, data []byte) {
	var failed []*Client

	h.mu.RLock()
	for client := range h.sessions[sessionID] {
		if !client.trySend(data) {
			failed = append(failed, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range failed {
		h.logger.Warn("Hub", "Client send buffer full, dropping client", map[string]interface{}{"session_id": sessionID})
		h.Unsubscribe(sessionID, client)
	}
}
