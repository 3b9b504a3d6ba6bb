package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/escrowpay/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WSHub fans escrow lifecycle events out to websocket subscribers. A
// connection may watch a single escrow (?escrow_id=...) or everything.
type WSHub struct {
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	// keyed by escrow id; the empty key holds firehose subscribers
	connections map[string][]*websocket.Conn
}

func NewWSHub(subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamEscrow, func(event events.Event) {
		h.broadcast(event)
	})
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	escrowID, _ := event.Payload["escrow_id"].(string)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[""] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	if escrowID != "" {
		for _, conn := range h.connections[escrowID] {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	key := conn.Query("escrow_id")

	// Register
	h.mu.Lock()
	h.connections[key] = append(h.connections[key], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[key]
		for i, c := range conns {
			if c == conn {
				h.connections[key] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[key]) == 0 {
			delete(h.connections, key)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
