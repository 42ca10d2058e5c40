package core

import (
	"fmt"
	"time"

	"TradeGate/entity"
)

// SendStaffReply appends a staff-authored message to the session and
// queues it for delivery on the session's channel.
func (c *Core) SendStaffReply(sessionID, username, content string) error {
	session, err := c.repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session.IsClosed() {
		return entity.ErrSessionClosed
	}

	return c.enqueueReply(session, content, entity.SenderStaff)
}

func (c *Core) GetSessions(status entity.SessionStatus, channel entity.ChannelType) ([]entity.SessionSummary, error) {
	return c.repo.ListSessions(status, channel)
}

func (c *Core) GetSession(id string) (*entity.Session, error) {
	return c.repo.GetSession(id)
}

func (c *Core) GetSessionMessages(sessionID string) ([]entity.Message, error) {
	return c.repo.GetMessages(sessionID)
}

// HandleMarkRead records that a staff member has read a session's
// inbound messages and pushes the updated state to the hub.
func (c *Core) HandleMarkRead(username, sessionID string) error {
	if err := c.repo.MarkMessagesRead(username, sessionID); err != nil {
		return err
	}

	session, err := c.repo.GetSession(sessionID)
	if err != nil {
		return err
	}
	if c.hub != nil {
		c.hub.BroadcastSession(session)
	}
	return nil
}

// AuthenticateByToken backs both the API middleware and the staff
// websocket handshake.
func (c *Core) AuthenticateByToken(token string) (*entity.StaffAuth, error) {
	return c.repo.CheckApiKey(token)
}

func (c *Core) GenerateApiKey(username, role string) (string, error) {
	return c.repo.GenerateApiKey(username, role)
}

func (c *Core) GetLeads(status entity.LeadStatus, channel entity.ChannelType) ([]entity.Lead, error) {
	return c.repo.ListLeads(status, channel)
}

// UpdateLeadStatus moves a lead forward through its pipeline. Backward
// moves and moves out of terminal states are rejected.
func (c *Core) UpdateLeadStatus(id string, to entity.LeadStatus) error {
	lead, err := c.repo.GetLead(id)
	if err != nil {
		return err
	}
	return c.repo.UpdateLeadStatus(id, lead.Status, to)
}

func (c *Core) GetOutbound(status entity.OutboundStatus) ([]entity.Outbound, error) {
	return c.repo.ListOutbound(status)
}

// CreateOutbound queues an arbitrary staff-composed message, optionally
// scheduled for the future.
func (c *Core) CreateOutbound(recipient string, channel entity.ChannelType, msgType, content string, scheduledFor time.Time) (*entity.Outbound, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
	if msgType == "" {
		msgType = entity.OutboundTypeReply
	}

	item := entity.NewOutbound(recipient, channel, msgType, content, scheduledFor)
	if err := c.repo.EnqueueOutbound(item); err != nil {
		return nil, fmt.Errorf("enqueue outbound: %w", err)
	}
	return item, nil
}

func (c *Core) GetAnalyticsSummary(since time.Time) (*entity.AnalyticsSummary, error) {
	return c.repo.GetAnalyticsSummary(since)
}
