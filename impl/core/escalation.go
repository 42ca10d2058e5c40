package core

import (
	"errors"
	"fmt"
	"log/slog"

	"TradeGate/entity"
	"TradeGate/internal/lib/sl"
)

// EscalateSession hands an active session to the staff pool. Escalating
// an already escalated or assigned session is a no-op, not a failure:
// several triggers may fire off the same inbound message.
func (c *Core) EscalateSession(sessionID, reason string) error {
	err := c.repo.UpdateSessionStatus(
		sessionID,
		[]entity.SessionStatus{entity.SessionActive},
		entity.SessionEscalated,
		"",
	)
	if err != nil {
		if errors.Is(err, entity.ErrStaleState) {
			return nil
		}
		return fmt.Errorf("escalate session: %w", err)
	}

	note := entity.NewOutboundMessage(sessionID, entity.SenderSystem, "escalated to human: "+reason)
	if err = c.repo.AppendMessage(note); err != nil {
		c.log.With(slog.String("session", sessionID)).
			Error("append escalation note", sl.Err(err))
	}

	session, err := c.repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("load escalated session: %w", err)
	}

	if c.hub != nil {
		c.hub.BroadcastSession(session)
	}
	if c.alerter != nil {
		c.alerter.SendAlert(fmt.Sprintf(
			"Session escalated\nChannel: %s\nSender: %s\nReason: %s",
			session.Channel, session.SenderID, reason,
		))
	}

	c.log.With(
		slog.String("session", sessionID),
		slog.String("reason", reason),
	).Info("session escalated")
	return nil
}

// AssignSession gives one staff member ownership of an escalated or
// active session. The assistant stops replying from this point on.
func (c *Core) AssignSession(sessionID, username string) error {
	err := c.repo.UpdateSessionStatus(
		sessionID,
		[]entity.SessionStatus{entity.SessionActive, entity.SessionEscalated},
		entity.SessionAssigned,
		username,
	)
	if err != nil {
		return fmt.Errorf("assign session: %w", err)
	}

	session, err := c.repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("load assigned session: %w", err)
	}
	if c.hub != nil {
		c.hub.BroadcastSession(session)
	}
	return nil
}

// CloseSession ends a conversation. The next inbound message from the
// same sender opens a fresh session.
func (c *Core) CloseSession(sessionID string) error {
	err := c.repo.UpdateSessionStatus(
		sessionID,
		[]entity.SessionStatus{entity.SessionActive, entity.SessionEscalated, entity.SessionAssigned},
		entity.SessionClosed,
		"",
	)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	session, err := c.repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("load closed session: %w", err)
	}
	if c.hub != nil {
		c.hub.BroadcastSession(session)
	}
	return nil
}
