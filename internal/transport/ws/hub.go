package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection represents a staff monitor connection
type Connection struct {
	StaffID string
	Send    chan []byte
}

// Hub fans monitor events out to every connected staff member.
type Hub struct {
	conns map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	quit       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		conns:      make(map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan []byte, 256),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "ws_hub")),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.conns[conn] = struct{}{}
			h.logger.Info("monitor connected", zap.String("staff", conn.StaffID), zap.Int("monitors", len(h.conns)))

		case conn := <-h.unregister:
			if _, ok := h.conns[conn]; ok {
				delete(h.conns, conn)
				close(conn.Send)
				h.logger.Info("monitor disconnected", zap.String("staff", conn.StaffID))
			}

		case data := <-h.broadcast:
			for conn := range h.conns {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}

		case <-h.quit:
			for conn := range h.conns {
				delete(h.conns, conn)
				close(conn.Send)
			}
			return
		}
	}
}

// Register adds a connection. It reports false once the hub is closed.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast sends an event to all monitors (implements service.Broadcaster)
func (h *Hub) Broadcast(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode monitor event", zap.String("event", event), zap.Error(err))
		return
	}
	data, _ := json.Marshal(&Message{Type: event, Payload: raw})

	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.logger.Warn("monitor queue full, event dropped", zap.String("event", event))
	}
}

// Close stops the loop and closes every connection's send channel.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done
}
