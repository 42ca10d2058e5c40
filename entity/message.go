package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	SenderCustomer  = "customer"
	SenderAssistant = "assistant"
	SenderStaff     = "staff"
	SenderSystem    = "system"
)

// Message is one unit of conversation content. Messages are immutable
// once persisted; ordering within a session is (created_at, seq) with
// seq taken from the session's counter at append time.
type Message struct {
	ID        string     `json:"id" bson:"_id"`
	SessionID string     `json:"session_id" bson:"session_id"`
	Direction string     `json:"direction" bson:"direction"`
	Sender    string     `json:"sender" bson:"sender"`
	Content   string     `json:"content" bson:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty" bson:"tool_calls,omitempty"`
	Seq       int64      `json:"seq" bson:"seq"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	ReadBy    []string   `json:"read_by,omitempty" bson:"read_by,omitempty"`
}

// ToolCall is an audit entry of one structured action the assistant took
// while composing a reply. Recorded whether it succeeded or failed.
type ToolCall struct {
	Name   string    `json:"name" bson:"name"`
	Args   string    `json:"args" bson:"args"`
	Result string    `json:"result,omitempty" bson:"result,omitempty"`
	Error  string    `json:"error,omitempty" bson:"error,omitempty"`
	At     time.Time `json:"at" bson:"at"`
}

func NewInboundMessage(sessionID string, ev InboundEvent) *Message {
	return &Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Direction: DirectionInbound,
		Sender:    SenderCustomer,
		Content:   ev.Content,
		CreatedAt: time.Now().UTC(),
	}
}

func NewOutboundMessage(sessionID, sender, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Direction: DirectionOutbound,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
