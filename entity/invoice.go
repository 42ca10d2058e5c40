package entity

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

// Invoice mirrors the ledger record the gateway chases and reconciles.
type Invoice struct {
	ID         string        `json:"id" bson:"_id"`
	Number     string        `json:"number" bson:"number"`
	CustomerID string        `json:"customer_id" bson:"customer_id"`
	JobID      string        `json:"job_id,omitempty" bson:"job_id,omitempty"`
	Phone      string        `json:"phone" bson:"phone"`
	Email      string        `json:"email" bson:"email"`
	Total      float64       `json:"total" bson:"total"`
	AmountPaid float64       `json:"amount_paid" bson:"amount_paid"`
	Status     InvoiceStatus `json:"status" bson:"status"`
	DueDate    time.Time     `json:"due_date" bson:"due_date"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
}

func (i *Invoice) Outstanding() float64 {
	return i.Total - i.AmountPaid
}

// ChaseEntry is one reminder sent against an overdue invoice. Sequence
// numbers per invoice are 1..n with no gaps; at most one entry exists
// per (invoice, offset).
type ChaseEntry struct {
	ID              string      `json:"id" bson:"_id"`
	InvoiceID       string      `json:"invoice_id" bson:"invoice_id"`
	Seq             int         `json:"seq" bson:"seq"`
	OffsetDays      int         `json:"offset_days" bson:"offset_days"`
	Channel         ChannelType `json:"channel" bson:"channel"`
	Content         string      `json:"content" bson:"content"`
	SentAt          time.Time   `json:"sent_at" bson:"sent_at"`
	ResponseSeen    bool        `json:"response_seen" bson:"response_seen"`
	PaymentReceived bool        `json:"payment_received" bson:"payment_received"`
}

func NewChaseEntry(invoiceID string, seq, offsetDays int, channel ChannelType, content string) *ChaseEntry {
	return &ChaseEntry{
		ID:         uuid.NewString(),
		InvoiceID:  invoiceID,
		Seq:        seq,
		OffsetDays: offsetDays,
		Channel:    channel,
		Content:    content,
		SentAt:     time.Now().UTC(),
	}
}

// PaymentEvent is one applied payment-provider webhook. EventID is the
// provider's globally unique id and doubles as the idempotency key: the
// same event id never produces two payment records.
type PaymentEvent struct {
	ID        string    `json:"id" bson:"_id"`
	EventID   string    `json:"event_id" bson:"event_id"`
	Type      string    `json:"type" bson:"type"`
	InvoiceID string    `json:"invoice_id" bson:"invoice_id"`
	Amount    float64   `json:"amount" bson:"amount"`
	Method    string    `json:"method" bson:"method"`
	AppliedAt time.Time `json:"applied_at" bson:"applied_at"`
}

func NewPaymentEvent(eventID, eventType, invoiceID, method string, amount float64) *PaymentEvent {
	return &PaymentEvent{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Type:      eventType,
		InvoiceID: invoiceID,
		Amount:    amount,
		Method:    method,
		AppliedAt: time.Now().UTC(),
	}
}

// PaymentLink ties a provider checkout session to an invoice so the
// webhook can resolve its target.
type PaymentLink struct {
	ID                string    `json:"id" bson:"_id"`
	InvoiceID         string    `json:"invoice_id" bson:"invoice_id"`
	ProviderSessionID string    `json:"provider_session_id" bson:"provider_session_id"`
	URL               string    `json:"url" bson:"url"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}
