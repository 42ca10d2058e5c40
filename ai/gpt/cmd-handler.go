package gpt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"TradeGate/entity"
)

var validate = validator.New()

// handleCommand executes one tool invocation against the business
// records. The registry is closed: unknown names are a typed error,
// never silently ignored.
func (d *Dispatcher) handleCommand(ctx context.Context, session *entity.Session, name, args string) (string, error) {
	d.log.With(
		slog.String("session", session.ID),
		slog.String("tool", name),
		slog.String("args", args),
	).Debug("handling tool call")

	switch name {
	case toolGetSlots:
		return d.handleGetSlots(args)
	case toolBookAppointment:
		return d.handleBookAppointment(args)
	case toolReschedule:
		return d.handleReschedule(args)
	case toolCancelAppointment:
		return d.handleCancelAppointment(args)
	case toolUpcomingAppointments:
		return d.handleUpcomingAppointments(args)
	case toolLookupCustomer:
		return d.handleLookupCustomer(args)
	case toolCustomerJobs:
		return d.handleCustomerJobs(args)
	case toolJobStatus:
		return d.handleJobStatus(args)
	case toolCustomerCerts:
		return d.handleCustomerCerts(args)
	case toolGetInvoice:
		return d.handleGetInvoice(args)
	case toolInvoiceHistory:
		return d.handleInvoiceHistory(args)
	case toolCreatePaymentLink:
		return d.handleCreatePaymentLink(args)
	case toolInvoiceReminders:
		return d.handleInvoiceReminders(args)
	case toolSendEmail:
		return d.handleSendEmail(session, args)
	case toolCaptureLead:
		return d.handleCaptureLead(session, args)
	case toolRequestQuote:
		return d.handleRequestQuote(session, args)
	case toolEscalate:
		// The dispatcher loop reads the escalation flag; the model
		// just needs an acknowledgement.
		return "A staff member has been notified and will take over this conversation.", nil
	case toolOpeningHours:
		return "Monday to Friday 08:00-18:00, Saturday 09:00-13:00. Emergency call-outs 24/7.", nil
	case toolServiceArea:
		return "We cover the greater metropolitan area: postcodes starting M, SK, WA and OL.", nil
	case toolServices:
		return "Boiler servicing and repair, central heating installation, landlord safety certificates, power flushing, radiator and thermostat work.", nil
	case toolCalloutFee:
		return "Standard call-out fee is 45.00 including the first half hour, then 65.00 per hour. Emergency call-outs 85.00.", nil
	case toolEmergency:
		return "If you smell gas: open windows and doors, do not operate switches, turn off the meter if safe, leave the property and call the National Gas Emergency line on 0800 111 999.", nil
	case toolPaymentMethods:
		return "We accept card payments via secure payment link, bank transfer, and cash or card on completion. We do not accept cheques.", nil
	case toolCancellationPolicy:
		return "Appointments can be rescheduled or cancelled free of charge up to 24 hours before the slot. Later cancellations and no-shows incur the standard call-out fee.", nil
	case toolWarrantyPolicy:
		return "All repair work carries a 12 month labour guarantee. Parts carry the manufacturer's warranty, typically 1-10 years for boilers depending on the model and registration.", nil
	case toolCertificateInfo:
		return "A Landlord Gas Safety Record (CP12) is a legal requirement for rented properties, renewed every 12 months. It covers every gas appliance, the pipework and flues. We send renewal reminders about 90 days before expiry.", nil
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func decodeArgs(args string, into interface{}) error {
	if err := json.Unmarshal([]byte(args), into); err != nil {
		return fmt.Errorf("malformed tool arguments: %w", err)
	}
	return nil
}

func asJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *Dispatcher) handleGetSlots(args string) (string, error) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return "", fmt.Errorf("bad from date: %w", err)
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return "", fmt.Errorf("bad to date: %w", err)
	}

	slots, err := d.records.GetAvailableSlots(from, to)
	if err != nil {
		return "", err
	}
	return asJSON(slots)
}

func (d *Dispatcher) handleBookAppointment(args string) (string, error) {
	var req struct {
		CustomerID string `json:"customer_id"`
		JobID      string `json:"job_id"`
		Start      string `json:"start"`
		Notes      string `json:"notes"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return "", fmt.Errorf("bad start time: %w", err)
	}

	appointment, err := d.records.BookAppointment(req.CustomerID, req.JobID, start, req.Notes)
	if err != nil {
		return "", err
	}
	return asJSON(appointment)
}

func (d *Dispatcher) handleReschedule(args string) (string, error) {
	var req struct {
		AppointmentID string `json:"appointment_id"`
		Start         string `json:"start"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return "", fmt.Errorf("bad start time: %w", err)
	}

	appointment, err := d.records.RescheduleAppointment(req.AppointmentID, start)
	if err != nil {
		if err == entity.ErrNotFound {
			return "No appointment found with that id.", nil
		}
		return "", err
	}
	return asJSON(appointment)
}

func (d *Dispatcher) handleCancelAppointment(args string) (string, error) {
	var req struct {
		AppointmentID string `json:"appointment_id"`
		Reason        string `json:"reason"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	if err := d.records.CancelAppointment(req.AppointmentID, req.Reason); err != nil {
		if err == entity.ErrNotFound {
			return "No appointment found with that id.", nil
		}
		return "", err
	}
	return "Appointment cancelled.", nil
}

func (d *Dispatcher) handleUpcomingAppointments(args string) (string, error) {
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	appointments, err := d.records.GetUpcomingAppointments(req.CustomerID)
	if err != nil {
		return "", err
	}
	return asJSON(appointments)
}

func (d *Dispatcher) handleLookupCustomer(args string) (string, error) {
	var req struct {
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Phone == "" && req.Email == "" {
		return "", fmt.Errorf("phone or email required")
	}

	customer, err := d.records.FindCustomer(req.Phone, req.Email)
	if err != nil {
		if err == entity.ErrNotFound {
			return "No matching customer record found.", nil
		}
		return "", err
	}
	return asJSON(customer)
}

func (d *Dispatcher) handleCustomerJobs(args string) (string, error) {
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	jobs, err := d.records.GetCustomerJobs(req.CustomerID)
	if err != nil {
		return "", err
	}
	return asJSON(jobs)
}

func (d *Dispatcher) handleJobStatus(args string) (string, error) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	job, err := d.records.GetJob(req.JobID)
	if err != nil {
		return "", err
	}
	return asJSON(job)
}

func (d *Dispatcher) handleCustomerCerts(args string) (string, error) {
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	certs, err := d.records.GetCustomerCertificates(req.CustomerID)
	if err != nil {
		return "", err
	}
	return asJSON(certs)
}

func (d *Dispatcher) handleGetInvoice(args string) (string, error) {
	var req struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	invoice, err := d.repo.GetInvoice(req.InvoiceID)
	if err != nil {
		return "", err
	}
	return asJSON(invoice)
}

func (d *Dispatcher) handleInvoiceHistory(args string) (string, error) {
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	invoices, err := d.repo.ListCustomerInvoices(req.CustomerID)
	if err != nil {
		return "", err
	}
	return asJSON(invoices)
}

func (d *Dispatcher) handleCreatePaymentLink(args string) (string, error) {
	var req struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	link, err := d.payments.CreatePaymentLink(req.InvoiceID)
	if err != nil {
		return "", err
	}
	return asJSON(link)
}

func (d *Dispatcher) handleInvoiceReminders(args string) (string, error) {
	var req struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	entries, err := d.repo.ListChaseEntries(req.InvoiceID)
	if err != nil {
		return "", err
	}
	return asJSON(entries)
}

func (d *Dispatcher) handleSendEmail(session *entity.Session, args string) (string, error) {
	var req struct {
		To      string `json:"to" validate:"required,email"`
		Content string `json:"content" validate:"required"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	if err := validate.Struct(&req); err != nil {
		return "", fmt.Errorf("invalid email request: %w", err)
	}

	item := entity.NewOutbound(req.To, entity.ChannelEmail, entity.OutboundTypeConfirmation, req.Content, time.Time{})
	item.SessionID = session.ID
	if err := d.queue.EnqueueOutbound(item); err != nil {
		return "", err
	}
	return "Email queued for delivery.", nil
}

func (d *Dispatcher) handleCaptureLead(session *entity.Session, args string) (string, error) {
	var req struct {
		Name        string `json:"name" validate:"required"`
		Phone       string `json:"phone"`
		Email       string `json:"email" validate:"omitempty,email"`
		Postcode    string `json:"postcode"`
		ServiceType string `json:"service_type" validate:"required"`
		Urgency     string `json:"urgency" validate:"omitempty,oneof=routine soon emergency"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	if err := validate.Struct(&req); err != nil {
		return "", fmt.Errorf("invalid lead: %w", err)
	}

	lead := entity.NewLead(req.Name, req.Phone, req.Email, req.Postcode, req.ServiceType, req.Urgency, session.Channel, session.ID)
	if err := d.repo.InsertLead(lead); err != nil {
		return "", err
	}

	d.log.With(
		slog.String("lead", lead.ID),
		slog.String("service", lead.ServiceType),
		slog.String("urgency", lead.Urgency),
	).Info("lead captured")

	return fmt.Sprintf("Lead recorded with id %s.", lead.ID), nil
}

// handleRequestQuote is lead capture for priced work: the office follows
// up with a written quote instead of a booking.
func (d *Dispatcher) handleRequestQuote(session *entity.Session, args string) (string, error) {
	var req struct {
		Name        string `json:"name" validate:"required"`
		Phone       string `json:"phone"`
		Email       string `json:"email" validate:"omitempty,email"`
		Postcode    string `json:"postcode"`
		ServiceType string `json:"service_type" validate:"required"`
		Details     string `json:"details" validate:"required"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	if err := validate.Struct(&req); err != nil {
		return "", fmt.Errorf("invalid quote request: %w", err)
	}

	lead := entity.NewLead(req.Name, req.Phone, req.Email, req.Postcode, req.ServiceType, entity.UrgencyRoutine, session.Channel, session.ID)
	lead.Notes = req.Details
	if err := d.repo.InsertLead(lead); err != nil {
		return "", err
	}

	d.log.With(
		slog.String("lead", lead.ID),
		slog.String("service", lead.ServiceType),
	).Info("quote request captured")

	return fmt.Sprintf("Quote request recorded with id %s. The office will be in touch with a written quote.", lead.ID), nil
}
