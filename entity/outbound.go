package entity

import (
	"time"

	"github.com/google/uuid"
)

type OutboundStatus string

const (
	OutboundPending OutboundStatus = "pending"
	OutboundSending OutboundStatus = "sending"
	OutboundSent    OutboundStatus = "sent"
	OutboundFailed  OutboundStatus = "failed"
)

const (
	OutboundTypeReply        = "reply"
	OutboundTypeReminder     = "reminder"
	OutboundTypeConfirmation = "confirmation"
)

// Outbound is a durable queued message awaiting delivery through a
// channel adapter. Never sent before ScheduledFor; per-recipient order
// on a channel follows (scheduled_for, seq). ScheduledFor is immutable
// after enqueue: retry backoff defers delivery through NotBefore so a
// failing item keeps its place in the recipient's queue.
type Outbound struct {
	ID           string         `json:"id" bson:"_id"`
	Recipient    string         `json:"recipient" bson:"recipient"`
	Channel      ChannelType    `json:"channel" bson:"channel"`
	MsgType      string         `json:"msg_type" bson:"msg_type"`
	Content      string         `json:"content" bson:"content"`
	SessionID    string         `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Status       OutboundStatus `json:"status" bson:"status"`
	Attempts     int            `json:"attempts" bson:"attempts"`
	LastError    string         `json:"last_error,omitempty" bson:"last_error,omitempty"`
	Seq          int64          `json:"seq" bson:"seq"`
	ScheduledFor time.Time      `json:"scheduled_for" bson:"scheduled_for"`
	NotBefore    time.Time      `json:"not_before" bson:"not_before"`
	SentAt       time.Time      `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
}

func NewOutbound(recipient string, channel ChannelType, msgType, content string, scheduledFor time.Time) *Outbound {
	now := time.Now().UTC()
	if scheduledFor.IsZero() {
		scheduledFor = now
	}
	return &Outbound{
		ID:           uuid.NewString(),
		Recipient:    recipient,
		Channel:      channel,
		MsgType:      msgType,
		Content:      content,
		Status:       OutboundPending,
		ScheduledFor: scheduledFor,
		NotBefore:    scheduledFor,
		CreatedAt:    now,
	}
}
