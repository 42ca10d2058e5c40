package core

import (
	"context"
	"log/slog"
	"time"

	"TradeGate/entity"
	"TradeGate/internal/lib/sl"
)

type Repository interface {
	CheckApiKey(key string) (*entity.StaffAuth, error)
	GenerateApiKey(username, role string) (string, error)

	ResolveOpenSession(ev entity.InboundEvent) (*entity.Session, bool, error)
	GetSession(id string) (*entity.Session, error)
	UpdateSessionStatus(id string, from []entity.SessionStatus, to entity.SessionStatus, assignedTo string) error
	CloseIdleSessions(cutoff time.Time) (int64, error)
	ListSessions(status entity.SessionStatus, channel entity.ChannelType) ([]entity.SessionSummary, error)

	AppendMessage(msg *entity.Message) error
	GetMessages(sessionID string) ([]entity.Message, error)
	MarkMessagesRead(username, sessionID string) error

	EnqueueOutbound(item *entity.Outbound) error
	ListOutbound(status entity.OutboundStatus) ([]entity.Outbound, error)

	InsertLead(lead *entity.Lead) error
	GetLead(id string) (*entity.Lead, error)
	ListLeads(status entity.LeadStatus, channel entity.ChannelType) ([]entity.Lead, error)
	UpdateLeadStatus(id string, from, to entity.LeadStatus) error

	MarkChaseResponseSeenByContact(contact string) error

	GetAnalyticsSummary(since time.Time) (*entity.AnalyticsSummary, error)
}

// Assistant composes replies for sessions the bot still owns.
type Assistant interface {
	ComposeReply(ctx context.Context, session *entity.Session, history []entity.Message) (*entity.AssistantReply, error)
}

// Alerter pushes operational alerts to the admin chat.
type Alerter interface {
	SendAlert(text string)
}

// Broadcaster fans conversation events out to connected staff clients.
type Broadcaster interface {
	BroadcastMessage(msg *entity.Message)
	BroadcastSession(session *entity.Session)
	BroadcastStatus(data interface{})
}

// Channels reports adapter connection state for the status endpoint.
type Channels interface {
	Statuses() map[entity.ChannelType]entity.AdapterStatus
}

type Core struct {
	repo      Repository
	assistant Assistant
	alerter   Alerter
	hub       Broadcaster
	channels  Channels
	scheduler Scheduler
	certs     CertRegistry
	invoices  InvoiceStore
	idleClose time.Duration
	log       *slog.Logger
}

func New(log *slog.Logger, idleCloseHours int) *Core {
	return &Core{
		idleClose: time.Duration(idleCloseHours) * time.Hour,
		log:       log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetAssistant(assistant Assistant) {
	c.assistant = assistant
}

func (c *Core) SetAlerter(alerter Alerter) {
	c.alerter = alerter
}

func (c *Core) SetBroadcaster(hub Broadcaster) {
	c.hub = hub
}

func (c *Core) SetChannels(channels Channels) {
	c.channels = channels
}

// Run consumes normalized inbound events until ctx is done. Each event
// is routed in its own goroutine; ordering within a session is restored
// by the per-session dispatch lock and the message seq counter.
func (c *Core) Run(ctx context.Context, events <-chan entity.InboundEvent) {
	go c.idleCloser(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			go func(ev entity.InboundEvent) {
				if err := c.HandleInbound(ctx, ev); err != nil {
					c.log.With(
						slog.String("channel", string(ev.Channel)),
						slog.String("sender", ev.SenderID),
					).Error("handle inbound", sl.Err(err))
				}
			}(ev)
		}
	}
}

// idleCloser sweeps open sessions with no activity past the idle bound.
func (c *Core) idleCloser(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := c.repo.CloseIdleSessions(time.Now().UTC().Add(-c.idleClose))
			if err != nil {
				c.log.Error("close idle sessions", sl.Err(err))
				continue
			}
			if closed > 0 {
				c.log.With(slog.Int64("closed", closed)).Info("idle sessions closed")
			}
		}
	}
}

// ChannelStatuses reports adapter state for the staff status endpoint.
func (c *Core) ChannelStatuses() map[entity.ChannelType]entity.AdapterStatus {
	if c.channels == nil {
		return map[entity.ChannelType]entity.AdapterStatus{}
	}
	return c.channels.Statuses()
}
