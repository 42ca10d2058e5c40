package entity

import "time"

// Customer comes from the external customer/job/property store. Read
// through the records client, never written by the gateway directly.
type Customer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
}

// Job is a work order in the external store.
type Job struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	EngineerID  string    `json:"engineer_id,omitempty"`
}

// TimeSlot is an open appointment window from the calendar store.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Appointment is a confirmed booking.
type Appointment struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	JobID      string    `json:"job_id,omitempty"`
	Start      time.Time `json:"start"`
	Status     string    `json:"status,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}
