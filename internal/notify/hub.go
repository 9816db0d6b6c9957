package notify

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Conn is the minimal websocket connection surface the hub needs. Both
// gorilla and fasthttp-based connections satisfy it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// 1 is the websocket text frame opcode in both implementations.
const textMessage = 1

// Message is the envelope pushed to every connected client.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub fans UI state updates out to every connected client. Slow or broken
// connections are dropped on write failure; the write path never blocks on
// a single client.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[Conn]chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[Conn]chan []byte),
	}
}

// Register adds a connection and starts its write pump. The returned
// function detaches the connection; callers run it when the read side ends.
func (h *Hub) Register(conn Conn) func() {
	send := make(chan []byte, 64)

	h.mu.Lock()
	h.clients[conn] = send
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("hub.client_joined", zap.Int("clients", count))

	go func() {
		for data := range send {
			if err := conn.WriteMessage(textMessage, data); err != nil {
				h.remove(conn)
				return
			}
		}
		_ = conn.Close()
	}()

	return func() { h.remove(conn) }
}

func (h *Hub) remove(conn Conn) {
	h.mu.Lock()
	send, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(send)
		h.logger.Debug("hub.client_left", zap.Int("clients", count))
	}
}

// Broadcast pushes a typed payload to every client. A client whose buffer
// is full is dropped rather than stalling the rest.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("hub.marshal_failed",
			zap.String("type", msgType),
			zap.Error(err))
		return
	}
	frame, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("hub.marshal_failed",
			zap.String("type", msgType),
			zap.Error(err))
		return
	}

	h.mu.Lock()
	var stalled []Conn
	for conn, send := range h.clients {
		select {
		case send <- frame:
		default:
			stalled = append(stalled, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range stalled {
		h.logger.Warn("hub.client_stalled")
		h.remove(conn)
	}
}

// ClientCount returns the number of attached connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
