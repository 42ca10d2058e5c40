package core

import (
	"context"
	"log/slog"

	"TradeGate/entity"
	"TradeGate/internal/lib/sl"
)

const fallbackReply = `Sorry, I can't help with that right now. A member of our team will pick this up shortly.`

// dispatchAssistant runs the tool loop for a session the assistant
// owns and queues whatever it composed. Ownership is re-checked after
// the loop: a session closed or claimed by staff mid-flight discards
// the reply rather than talking over a human.
func (c *Core) dispatchAssistant(ctx context.Context, session *entity.Session) {
	history, err := c.repo.GetMessages(session.ID)
	if err != nil {
		c.log.With(slog.String("session", session.ID)).
			Error("load history", sl.Err(err))
		return
	}

	reply, err := c.assistant.ComposeReply(ctx, session, history)
	if err != nil {
		c.log.With(slog.String("session", session.ID)).
			Error("compose reply", sl.Err(err))
		// Tools may have run before the failure. Record them so the
		// ledger shows every side effect even on a failed turn.
		if reply != nil && len(reply.ToolCalls) > 0 {
			msg := entity.NewOutboundMessage(session.ID, entity.SenderAssistant, "")
			msg.ToolCalls = reply.ToolCalls
			if appendErr := c.repo.AppendMessage(msg); appendErr != nil {
				c.log.With(slog.String("session", session.ID)).
					Error("append tool-call record", sl.Err(appendErr))
			}
		}
		c.failAssistant(session, err.Error())
		return
	}

	current, err := c.repo.GetSession(session.ID)
	if err != nil {
		c.log.With(slog.String("session", session.ID)).
			Error("recheck session", sl.Err(err))
		return
	}
	if current.IsClosed() || current.OwnedByStaff() {
		c.log.With(
			slog.String("session", session.ID),
			slog.String("status", string(current.Status)),
		).Info("assistant reply discarded")
		return
	}

	if reply.Text != "" {
		msg := entity.NewOutboundMessage(session.ID, entity.SenderAssistant, reply.Text)
		msg.ToolCalls = reply.ToolCalls
		if err = c.repo.AppendMessage(msg); err != nil {
			c.log.With(slog.String("session", session.ID)).
				Error("append assistant message", sl.Err(err))
			return
		}
		if c.hub != nil {
			c.hub.BroadcastMessage(msg)
		}

		item := entity.NewOutbound(session.SenderID, session.Channel, entity.OutboundTypeReply, reply.Text, msg.CreatedAt)
		item.SessionID = session.ID
		if err = c.repo.EnqueueOutbound(item); err != nil {
			c.log.With(slog.String("session", session.ID)).
				Error("enqueue assistant reply", sl.Err(err))
		}
	} else if len(reply.ToolCalls) > 0 {
		// No text but actions were taken: keep the audit trail.
		msg := entity.NewOutboundMessage(session.ID, entity.SenderAssistant, "")
		msg.ToolCalls = reply.ToolCalls
		if err = c.repo.AppendMessage(msg); err != nil {
			c.log.With(slog.String("session", session.ID)).
				Error("append tool-call record", sl.Err(err))
		}
	}

	if reply.Escalate {
		if err = c.EscalateSession(session.ID, reply.EscalateReason); err != nil {
			c.log.With(slog.String("session", session.ID)).
				Error("escalate session", sl.Err(err))
		}
	}
}

// failAssistant handles a total dispatcher failure: the customer gets
// the fallback line and the session goes to a human.
func (c *Core) failAssistant(session *entity.Session, reason string) {
	if err := c.enqueueReply(session, fallbackReply, entity.SenderSystem); err != nil {
		c.log.With(slog.String("session", session.ID)).
			Error("queue fallback reply", sl.Err(err))
	}
	if err := c.EscalateSession(session.ID, "assistant failure: "+reason); err != nil {
		c.log.With(slog.String("session", session.ID)).
			Error("escalate session", sl.Err(err))
	}
}
