package entity

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus tracks ownership of a conversation.
type SessionStatus string

const (
	// SessionActive — the assistant owns replies.
	SessionActive SessionStatus = "active"
	// SessionEscalated — awaiting a staff claim, assistant muted.
	SessionEscalated SessionStatus = "escalated"
	// SessionAssigned — a staff member owns replies.
	SessionAssigned SessionStatus = "assigned"
	// SessionClosed — terminal; a new inbound message opens a new session.
	SessionClosed SessionStatus = "closed"
)

// Session is one continuous conversation with one sender on one channel.
// At most one open session exists per (channel, sender) pair, enforced by
// a unique partial index on the sessions collection.
type Session struct {
	ID           string        `json:"id" bson:"_id"`
	Channel      ChannelType   `json:"channel" bson:"channel"`
	SenderID     string        `json:"sender_id" bson:"sender_id"`
	SenderName   string        `json:"sender_name" bson:"sender_name"`
	CustomerRef  string        `json:"customer_ref,omitempty" bson:"customer_ref,omitempty"`
	Status       SessionStatus `json:"status" bson:"status"`
	Open         bool          `json:"open" bson:"open"`
	AssignedTo   string        `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	MsgSeq       int64         `json:"-" bson:"msg_seq"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	LastActivity time.Time     `json:"last_activity" bson:"last_activity"`
}

func NewSession(ev InboundEvent) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.NewString(),
		Channel:      ev.Channel,
		SenderID:     ev.SenderID,
		SenderName:   ev.SenderName,
		Status:       SessionActive,
		Open:         true,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// OwnedByStaff reports whether replies are a human responsibility.
func (s *Session) OwnedByStaff() bool {
	return s.Status == SessionAssigned
}

func (s *Session) IsClosed() bool {
	return s.Status == SessionClosed
}

// SessionSummary is the list-view projection with unread counts.
type SessionSummary struct {
	Session     `bson:",inline"`
	LastMessage string `json:"last_message" bson:"last_message"`
	Unread      int    `json:"unread" bson:"unread"`
}
