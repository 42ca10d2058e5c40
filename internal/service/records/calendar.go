package records

import (
	"fmt"
	"time"

	"TradeGate/entity"
)

// GetAvailableSlots lists open appointment windows between from and to.
func (s *Service) GetAvailableSlots(from, to time.Time) ([]entity.TimeSlot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var slots []entity.TimeSlot

	resp, err := s.client.R().
		SetQueryParams(map[string]string{
			"from": from.UTC().Format(time.RFC3339),
			"to":   to.UTC().Format(time.RFC3339),
		}).
		SetResult(&slots).
		Get("/calendar/slots")
	if err != nil {
		return nil, fmt.Errorf("calendar slots: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return slots, nil
}

// BookAppointment reserves a slot for a customer.
func (s *Service) BookAppointment(customerID, jobID string, start time.Time, notes string) (*entity.Appointment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var appointment entity.Appointment

	resp, err := s.client.R().
		SetBody(map[string]string{
			"customer_id": customerID,
			"job_id":      jobID,
			"start":       start.UTC().Format(time.RFC3339),
			"notes":       notes,
		}).
		SetResult(&appointment).
		Post("/calendar/appointments")
	if err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return &appointment, nil
}

// RescheduleAppointment moves an existing booking to a new start time.
func (s *Service) RescheduleAppointment(appointmentID string, start time.Time) (*entity.Appointment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var appointment entity.Appointment

	resp, err := s.client.R().
		SetBody(map[string]string{
			"start": start.UTC().Format(time.RFC3339),
		}).
		SetResult(&appointment).
		Post("/calendar/appointments/" + appointmentID + "/reschedule")
	if err != nil {
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, entity.ErrNotFound
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return &appointment, nil
}

// CancelAppointment releases a booking back to the calendar.
func (s *Service) CancelAppointment(appointmentID, reason string) error {
	if err := s.ready(); err != nil {
		return err
	}

	resp, err := s.client.R().
		SetBody(map[string]string{"reason": reason}).
		Post("/calendar/appointments/" + appointmentID + "/cancel")
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if resp.StatusCode() == 404 {
		return entity.ErrNotFound
	}
	if resp.IsError() {
		return statusError(resp)
	}

	return nil
}

// GetUpcomingAppointments lists a customer's future bookings.
func (s *Service) GetUpcomingAppointments(customerID string) ([]entity.Appointment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var appointments []entity.Appointment

	resp, err := s.client.R().
		SetQueryParam("from", time.Now().UTC().Format(time.RFC3339)).
		SetResult(&appointments).
		Get("/customers/" + customerID + "/appointments")
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return appointments, nil
}
