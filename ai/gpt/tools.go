package gpt

import (
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool names. The registry is closed: an unknown name coming back from
// the model fails fast in handleCommand instead of propagating.
const (
	// booking / calendar
	toolGetSlots             = "get_available_slots"
	toolBookAppointment      = "book_appointment"
	toolReschedule           = "reschedule_appointment"
	toolCancelAppointment    = "cancel_appointment"
	toolUpcomingAppointments = "get_upcoming_appointments"

	// customer / job lookup
	toolLookupCustomer = "lookup_customer"
	toolCustomerJobs   = "get_customer_jobs"
	toolJobStatus      = "get_job_status"

	// certificates
	toolCustomerCerts = "get_customer_certificates"

	// invoicing / payment
	toolGetInvoice        = "get_invoice"
	toolInvoiceHistory    = "get_invoice_history"
	toolCreatePaymentLink = "create_payment_link"
	toolInvoiceReminders  = "get_invoice_reminders"

	// email
	toolSendEmail = "send_followup_email"

	// lead capture / routing
	toolCaptureLead  = "capture_lead"
	toolRequestQuote = "request_quote"
	toolEscalate     = "escalate_to_human"

	// informational
	toolOpeningHours       = "get_opening_hours"
	toolServiceArea        = "get_service_area"
	toolServices           = "get_services_offered"
	toolCalloutFee         = "get_callout_fee"
	toolEmergency          = "get_emergency_guidance"
	toolPaymentMethods     = "get_accepted_payment_methods"
	toolCancellationPolicy = "get_cancellation_policy"
	toolWarrantyPolicy     = "get_warranty_policy"
	toolCertificateInfo    = "get_certificate_info"
)

func strProp(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: desc}
}

func objectSchema(required []string, props map[string]jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: props,
		Required:   required,
	}
}

func fn(name, description string, params jsonschema.Definition) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

func toolDefinitions() []openai.Tool {
	return []openai.Tool{
		fn(toolGetSlots,
			"List open appointment slots between two dates.",
			objectSchema([]string{"from", "to"}, map[string]jsonschema.Definition{
				"from": strProp("Start date, YYYY-MM-DD"),
				"to":   strProp("End date, YYYY-MM-DD"),
			})),
		fn(toolBookAppointment,
			"Book an appointment slot for a known customer.",
			objectSchema([]string{"customer_id", "start"}, map[string]jsonschema.Definition{
				"customer_id": strProp("Customer record id"),
				"job_id":      strProp("Related job id, if any"),
				"start":       strProp("Slot start, RFC3339"),
				"notes":       strProp("Notes for the engineer"),
			})),
		fn(toolReschedule,
			"Move an existing appointment to a new start time.",
			objectSchema([]string{"appointment_id", "start"}, map[string]jsonschema.Definition{
				"appointment_id": strProp("Appointment id"),
				"start":          strProp("New slot start, RFC3339"),
			})),
		fn(toolCancelAppointment,
			"Cancel an existing appointment.",
			objectSchema([]string{"appointment_id"}, map[string]jsonschema.Definition{
				"appointment_id": strProp("Appointment id"),
				"reason":         strProp("Why the customer is cancelling"),
			})),
		fn(toolUpcomingAppointments,
			"List a customer's upcoming appointments.",
			objectSchema([]string{"customer_id"}, map[string]jsonschema.Definition{
				"customer_id": strProp("Customer record id"),
			})),
		fn(toolLookupCustomer,
			"Find an existing customer record by phone or email.",
			objectSchema(nil, map[string]jsonschema.Definition{
				"phone": strProp("Customer phone number"),
				"email": strProp("Customer email address"),
			})),
		fn(toolCustomerJobs,
			"List jobs for a customer.",
			objectSchema([]string{"customer_id"}, map[string]jsonschema.Definition{
				"customer_id": strProp("Customer record id"),
			})),
		fn(toolJobStatus,
			"Get the current status of one job.",
			objectSchema([]string{"job_id"}, map[string]jsonschema.Definition{
				"job_id": strProp("Job id"),
			})),
		fn(toolCustomerCerts,
			"List installation certificates held for a customer, including next inspection dates.",
			objectSchema([]string{"customer_id"}, map[string]jsonschema.Definition{
				"customer_id": strProp("Customer record id"),
			})),
		fn(toolGetInvoice,
			"Get an invoice with its total, amount paid and status.",
			objectSchema([]string{"invoice_id"}, map[string]jsonschema.Definition{
				"invoice_id": strProp("Invoice id"),
			})),
		fn(toolInvoiceHistory,
			"List a customer's past invoices, newest first.",
			objectSchema([]string{"customer_id"}, map[string]jsonschema.Definition{
				"customer_id": strProp("Customer record id"),
			})),
		fn(toolCreatePaymentLink,
			"Create a secure payment link for an outstanding invoice.",
			objectSchema([]string{"invoice_id"}, map[string]jsonschema.Definition{
				"invoice_id": strProp("Invoice id"),
			})),
		fn(toolInvoiceReminders,
			"List reminders already sent for an invoice.",
			objectSchema([]string{"invoice_id"}, map[string]jsonschema.Definition{
				"invoice_id": strProp("Invoice id"),
			})),
		fn(toolSendEmail,
			"Queue a follow-up email to the customer, e.g. a booking confirmation.",
			objectSchema([]string{"to", "content"}, map[string]jsonschema.Definition{
				"to":      strProp("Recipient email address"),
				"content": strProp("Email body"),
			})),
		fn(toolCaptureLead,
			"Record a new sales lead from this conversation.",
			objectSchema([]string{"name", "service_type"}, map[string]jsonschema.Definition{
				"name":         strProp("Lead name"),
				"phone":        strProp("Lead phone"),
				"email":        strProp("Lead email"),
				"postcode":     strProp("Property postcode"),
				"service_type": strProp("Requested service, e.g. boiler_service, repair, installation"),
				"urgency": jsonschema.Definition{
					Type:        jsonschema.String,
					Description: "How urgent the request is",
					Enum:        []string{"routine", "soon", "emergency"},
				},
			})),
		fn(toolRequestQuote,
			"Record a request for a written quote, e.g. a boiler replacement or full installation.",
			objectSchema([]string{"name", "service_type", "details"}, map[string]jsonschema.Definition{
				"name":         strProp("Customer name"),
				"phone":        strProp("Customer phone"),
				"email":        strProp("Customer email"),
				"postcode":     strProp("Property postcode"),
				"service_type": strProp("Work to be quoted, e.g. boiler_installation"),
				"details":      strProp("What the customer described, property details, preferences"),
			})),
		fn(toolEscalate,
			"Hand this conversation to a human staff member. Use for emergencies, complaints, or anything you cannot resolve.",
			objectSchema([]string{"reason"}, map[string]jsonschema.Definition{
				"reason": strProp("Why a human is needed"),
			})),
		fn(toolOpeningHours, "Get the company's opening hours.", objectSchema(nil, nil)),
		fn(toolServiceArea, "Get the postcodes and areas the company covers.", objectSchema(nil, nil)),
		fn(toolServices, "List the services the company offers.", objectSchema(nil, nil)),
		fn(toolCalloutFee, "Get the standard call-out fee and hourly rates.", objectSchema(nil, nil)),
		fn(toolEmergency, "Get safety guidance for a suspected gas leak or carbon monoxide alarm.", objectSchema(nil, nil)),
		fn(toolPaymentMethods, "List the payment methods the company accepts.", objectSchema(nil, nil)),
		fn(toolCancellationPolicy, "Get the appointment cancellation and no-show policy.", objectSchema(nil, nil)),
		fn(toolWarrantyPolicy, "Get the parts and labour warranty terms.", objectSchema(nil, nil)),
		fn(toolCertificateInfo, "Explain landlord gas safety certificates (CP12): what they cover and when they are due.", objectSchema(nil, nil)),
	}
}
