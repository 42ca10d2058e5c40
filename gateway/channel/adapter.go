package channel

import (
	"context"
	"log/slog"
	"sync"

	"TradeGate/entity"
	"TradeGate/internal/lib/sl"
)

// Adapter is the uniform contract every transport implements. Adapters
// normalize provider payloads into entity.InboundEvent and never
// assume connectivity: Send against a disconnected transport returns
// entity.ErrTransport and the caller's item stays queued.
type Adapter interface {
	Name() entity.ChannelType
	Send(ctx context.Context, recipient, content string) error
	Status() entity.AdapterStatus
	Start(ctx context.Context, events chan<- entity.InboundEvent) error
	Stop()
}

// Manager owns the adapter set and the shared inbound event stream.
// It is the lifecycle boundary: adapters are started and stopped here,
// never globally.
type Manager struct {
	adapters map[entity.ChannelType]Adapter
	events   chan entity.InboundEvent
	mu       sync.RWMutex
	log      *slog.Logger
}

func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		adapters: make(map[entity.ChannelType]Adapter),
		events:   make(chan entity.InboundEvent, 256),
		log:      log.With(sl.Module("channel.manager")),
	}
}

func (m *Manager) Register(a Adapter) {
	m.mu.Lock()
	m.adapters[a.Name()] = a
	m.mu.Unlock()
	m.log.Info("channel adapter registered", slog.String("channel", string(a.Name())))
}

func (m *Manager) Get(channel entity.ChannelType) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[channel]
	return a, ok
}

// Events is the merged inbound stream all adapters feed.
func (m *Manager) Events() <-chan entity.InboundEvent {
	return m.events
}

// StartAll starts every registered adapter. A failed adapter is logged
// and skipped; the gateway runs with the transports it has.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.adapters {
		if err := a.Start(ctx, m.events); err != nil {
			m.log.With(
				slog.String("channel", string(a.Name())),
			).Error("starting channel adapter", sl.Err(err))
			continue
		}
		m.log.Info("channel adapter started", slog.String("channel", string(a.Name())))
	}
}

func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.adapters {
		a.Stop()
	}
}

// Statuses reports the current state of every adapter.
func (m *Manager) Statuses() map[entity.ChannelType]entity.AdapterStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[entity.ChannelType]entity.AdapterStatus, len(m.adapters))
	for name, a := range m.adapters {
		out[name] = a.Status()
	}
	return out
}

// Send routes an outbound send to the adapter for the channel.
func (m *Manager) Send(ctx context.Context, channel entity.ChannelType, recipient, content string) error {
	a, ok := m.Get(channel)
	if !ok {
		return entity.ErrTransport
	}
	return a.Send(ctx, recipient, content)
}
