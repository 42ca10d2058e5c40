package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"TradeGate/entity"
)

// ClientMessageHandler handles incoming websocket messages from staff
// clients.
type ClientMessageHandler interface {
	HandleMarkRead(username, sessionID string) error
}

// Event is one push to connected staff clients. Delivery is
// best-effort: a slow or disconnected client never blocks message
// processing, and clients re-fetch state on reconnect.
type Event struct {
	Type string      `json:"type"` // "new_message", "session_update", "status"
	Data interface{} `json:"data"`
}

// Hub maintains the set of active staff connections and fans events
// out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	handler    ClientMessageHandler
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastMessage pushes a newly appended message to staff clients.
func (h *Hub) BroadcastMessage(msg *entity.Message) {
	h.broadcast <- &Event{
		Type: "new_message",
		Data: msg,
	}
}

// BroadcastSession pushes a session state change (created, escalated,
// assigned, closed).
func (h *Hub) BroadcastSession(session *entity.Session) {
	h.broadcast <- &Event{
		Type: "session_update",
		Data: session,
	}
}

// BroadcastStatus pushes adapter or queue status changes.
func (h *Hub) BroadcastStatus(data interface{}) {
	h.broadcast <- &Event{
		Type: "status",
		Data: data,
	}
}

type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses and dispatches an incoming message from a
// staff client.
func (h *Hub) HandleClientMessage(username string, raw []byte) {
	if h.handler == nil {
		return
	}

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("failed to parse client ws message", slog.String("error", err.Error()))
		return
	}

	switch event.Type {
	case "mark_read":
		var data struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.SessionID == "" {
			return
		}
		if err := h.handler.HandleMarkRead(username, data.SessionID); err != nil {
			h.log.Error("failed to handle mark_read",
				slog.String("username", username),
				slog.String("session_id", data.SessionID),
				slog.String("error", err.Error()),
			)
		}
	}
}
