package webchat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"TradeGate/entity"
	"TradeGate/internal/lib/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Adapter is the in-process web chat transport. Visitors connect over
// a websocket; each connection is one sender identified by a visitor
// id the widget persists between page loads.
type Adapter struct {
	log      *slog.Logger
	visitors map[string]*visitor
	mu       sync.RWMutex
	events   chan<- entity.InboundEvent
	status   atomic.Value
}

type visitor struct {
	conn *websocket.Conn
	send chan []byte
}

func New(log *slog.Logger) *Adapter {
	a := &Adapter{
		log:      log.With(sl.Module("channel.webchat")),
		visitors: make(map[string]*visitor),
	}
	a.status.Store(entity.AdapterConfigured)
	return a
}

func (a *Adapter) Name() entity.ChannelType {
	return entity.ChannelWebChat
}

func (a *Adapter) Status() entity.AdapterStatus {
	return a.status.Load().(entity.AdapterStatus)
}

func (a *Adapter) Start(_ context.Context, events chan<- entity.InboundEvent) error {
	a.events = events
	a.status.Store(entity.AdapterConnected)
	return nil
}

func (a *Adapter) Stop() {
	a.mu.Lock()
	for id, v := range a.visitors {
		close(v.send)
		delete(a.visitors, id)
	}
	a.mu.Unlock()
	a.status.Store(entity.AdapterDisconnected)
}

type wireMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Send delivers to a connected visitor. A visitor who navigated away
// is a transport failure; the queue retries until they reconnect.
func (a *Adapter) Send(_ context.Context, recipient, content string) error {
	a.mu.RLock()
	v, ok := a.visitors[recipient]
	a.mu.RUnlock()
	if !ok {
		return entity.ErrTransport
	}

	data, err := json.Marshal(wireMessage{Type: "message", Content: content})
	if err != nil {
		return err
	}

	select {
	case v.send <- data:
		return nil
	default:
		return entity.ErrTransport
	}
}

// ServeVisitor upgrades a widget connection. The visitor id comes from
// the widget's local storage via query param; first-time visitors get
// a fresh one back in the hello frame.
func (a *Adapter) ServeVisitor(w http.ResponseWriter, r *http.Request) {
	visitorID := r.URL.Query().Get("visitor")
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Error("webchat upgrade failed", sl.Err(err))
		return
	}

	v := &visitor{
		conn: conn,
		send: make(chan []byte, 64),
	}

	a.mu.Lock()
	if old, ok := a.visitors[visitorID]; ok {
		close(old.send)
	}
	a.visitors[visitorID] = v
	a.mu.Unlock()

	hello, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Visitor string `json:"visitor"`
	}{Type: "hello", Visitor: visitorID})
	v.send <- hello

	go a.writePump(visitorID, v)
	go a.readPump(visitorID, v)
}

func (a *Adapter) readPump(visitorID string, v *visitor) {
	defer func() {
		a.mu.Lock()
		if a.visitors[visitorID] == v {
			delete(a.visitors, visitorID)
		}
		a.mu.Unlock()
		v.conn.Close()
	}()

	v.conn.SetReadLimit(maxMessageSize)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := v.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "message" || msg.Content == "" {
			continue
		}

		if a.events == nil {
			continue
		}
		a.events <- entity.InboundEvent{
			Channel:    entity.ChannelWebChat,
			SenderID:   visitorID,
			Content:    msg.Content,
			ReceivedAt: time.Now().UTC(),
		}
	}
}

func (a *Adapter) writePump(visitorID string, v *visitor) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case message, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Connected reports whether a visitor currently holds a live socket.
func (a *Adapter) Connected(visitorID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.visitors[visitorID]
	return ok
}
