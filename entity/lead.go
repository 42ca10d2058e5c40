package entity

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus moves forward through new → contacted → qualified → converted,
// or sideways to lost from any non-terminal state. Never backward.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadConverted LeadStatus = "converted"
	LeadLost      LeadStatus = "lost"
)

var leadRank = map[LeadStatus]int{
	LeadNew:       0,
	LeadContacted: 1,
	LeadQualified: 2,
	LeadConverted: 3,
}

const (
	UrgencyRoutine   = "routine"
	UrgencySoon      = "soon"
	UrgencyEmergency = "emergency"
)

// Lead is a prospective-customer record captured from a conversation
// or produced by the certificate renewal watch.
type Lead struct {
	ID          string      `json:"id" bson:"_id"`
	Name        string      `json:"name" bson:"name" validate:"required"`
	Phone       string      `json:"phone" bson:"phone" validate:"omitempty"`
	Email       string      `json:"email" bson:"email" validate:"omitempty,email"`
	Postcode    string      `json:"postcode" bson:"postcode" validate:"omitempty"`
	ServiceType string      `json:"service_type" bson:"service_type"`
	Urgency     string      `json:"urgency" bson:"urgency"`
	Notes       string      `json:"notes,omitempty" bson:"notes,omitempty"`
	Status      LeadStatus  `json:"status" bson:"status"`
	Channel     ChannelType `json:"channel" bson:"channel"`
	SessionID   string      `json:"session_id,omitempty" bson:"session_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
}

func NewLead(name, phone, email, postcode, serviceType, urgency string, channel ChannelType, sessionID string) *Lead {
	if urgency == "" {
		urgency = UrgencyRoutine
	}
	return &Lead{
		ID:          uuid.NewString(),
		Name:        name,
		Phone:       phone,
		Email:       email,
		Postcode:    postcode,
		ServiceType: serviceType,
		Urgency:     urgency,
		Status:      LeadNew,
		Channel:     channel,
		SessionID:   sessionID,
		CreatedAt:   time.Now().UTC(),
	}
}

// CanTransition enforces monotonic forward movement; lost is reachable
// from any non-terminal state.
func (s LeadStatus) CanTransition(to LeadStatus) bool {
	if s == LeadConverted || s == LeadLost {
		return false
	}
	if to == LeadLost {
		return true
	}
	from, ok := leadRank[s]
	if !ok {
		return false
	}
	target, ok := leadRank[to]
	if !ok {
		return false
	}
	return target > from
}

func (l *Lead) IsEmergency() bool {
	return l.Urgency == UrgencyEmergency
}
