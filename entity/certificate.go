package entity

import "time"

// Certificate is an installation certificate from the registry whose
// next-inspection date drives renewal reminders.
type Certificate struct {
	ID             string    `json:"id" bson:"_id"`
	CustomerID     string    `json:"customer_id" bson:"customer_id"`
	PropertyID     string    `json:"property_id" bson:"property_id"`
	CustomerName   string    `json:"customer_name" bson:"customer_name"`
	Phone          string    `json:"phone" bson:"phone"`
	Email          string    `json:"email" bson:"email"`
	CertType       string    `json:"cert_type" bson:"cert_type"`
	IssuedAt       time.Time `json:"issued_at" bson:"issued_at"`
	NextInspection time.Time `json:"next_inspection" bson:"next_inspection"`
}

// RenewalWindowKey identifies the reminder window for a certificate so
// the watch job reminds at most once per window.
func (c *Certificate) RenewalWindowKey() string {
	return c.ID + ":" + c.NextInspection.UTC().Format("2006-01-02")
}

// RenewalReminder records that a certificate triggered a reminder in
// its current window.
type RenewalReminder struct {
	WindowKey     string    `json:"window_key" bson:"_id"`
	CertificateID string    `json:"certificate_id" bson:"certificate_id"`
	LeadID        string    `json:"lead_id,omitempty" bson:"lead_id,omitempty"`
	SentAt        time.Time `json:"sent_at" bson:"sent_at"`
}
