package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"TradeGate/entity"
	"TradeGate/internal/lib/sl"
)

// emergencyTerms shortcut the assistant entirely. A customer reporting
// any of these gets the safety reply and a human straight away.
var emergencyTerms = []string{
	"gas leak",
	"smell gas",
	"smell of gas",
	"carbon monoxide",
	"co alarm",
}

const emergencyReply = `If you can smell gas: open doors and windows, do not operate electrical switches, and call the National Gas Emergency line on 0800 111 999 immediately. One of our team has been notified and will contact you as soon as possible.`

// HandleInbound routes one normalized inbound event: resolve the open
// session for the sender, append the message to the ledger, then hand
// the session to the assistant or leave it with its staff owner.
func (c *Core) HandleInbound(ctx context.Context, ev entity.InboundEvent) error {
	if !ev.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", ev.Channel)
	}

	session, created, err := c.repo.ResolveOpenSession(ev)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	msg := entity.NewInboundMessage(session.ID, ev)
	if err = c.repo.AppendMessage(msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if c.hub != nil {
		c.hub.BroadcastMessage(msg)
		if created {
			c.hub.BroadcastSession(session)
		}
	}

	// Any reply from a chased contact counts as a response, whatever
	// the content.
	if err := c.repo.MarkChaseResponseSeenByContact(ev.SenderID); err != nil {
		c.log.With(slog.String("sender", ev.SenderID)).
			Error("mark chase response", sl.Err(err))
	}

	if isEmergency(ev.Content) {
		return c.handleEmergency(ctx, session, ev)
	}

	if session.OwnedByStaff() || session.Status == entity.SessionEscalated {
		// Assistant is muted; staff see the message on the hub.
		return nil
	}

	c.dispatchAssistant(ctx, session)
	return nil
}

func isEmergency(content string) bool {
	lowered := strings.ToLower(content)
	for _, term := range emergencyTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

func (c *Core) handleEmergency(ctx context.Context, session *entity.Session, ev entity.InboundEvent) error {
	c.log.With(
		slog.String("session", session.ID),
		slog.String("sender", ev.SenderID),
	).Warn("emergency keyword detected")

	if err := c.enqueueReply(session, emergencyReply, entity.SenderSystem); err != nil {
		c.log.With(slog.String("session", session.ID)).
			Error("queue emergency reply", sl.Err(err))
	}

	reason := fmt.Sprintf("emergency reported by %s on %s: %s",
		ev.SenderID, ev.Channel, truncate(ev.Content, 200))
	return c.EscalateSession(session.ID, reason)
}

// enqueueReply persists the outbound side of a reply on the ledger and
// queues it for delivery.
func (c *Core) enqueueReply(session *entity.Session, content, sender string) error {
	msg := entity.NewOutboundMessage(session.ID, sender, content)
	if err := c.repo.AppendMessage(msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if c.hub != nil {
		c.hub.BroadcastMessage(msg)
	}

	item := entity.NewOutbound(session.SenderID, session.Channel, entity.OutboundTypeReply, content, msg.CreatedAt)
	item.SessionID = session.ID
	if err := c.repo.EnqueueOutbound(item); err != nil {
		return fmt.Errorf("enqueue outbound: %w", err)
	}
	return nil
}

// truncate caps s at n bytes, backing up so a multi-byte rune is never
// cut in half.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
