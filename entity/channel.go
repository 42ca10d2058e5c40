package entity

import "time"

// ChannelType identifies a messaging transport.
type ChannelType string

const (
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelSMS      ChannelType = "sms"
	ChannelEmail    ChannelType = "email"
	ChannelWebChat  ChannelType = "webchat"
)

func (c ChannelType) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail, ChannelWebChat:
		return true
	}
	return false
}

// AdapterStatus is the reported connection state of a channel adapter.
type AdapterStatus string

const (
	AdapterConnected    AdapterStatus = "connected"
	AdapterDisconnected AdapterStatus = "disconnected"
	AdapterError        AdapterStatus = "error"
	AdapterConfigured   AdapterStatus = "configured"
)

// InboundEvent is the normalized form of a provider-specific inbound
// message. Every adapter produces these regardless of transport.
type InboundEvent struct {
	Channel    ChannelType `json:"channel"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	Content    string      `json:"content"`
	ReceivedAt time.Time   `json:"received_at"`
}
