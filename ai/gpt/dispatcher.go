package gpt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"TradeGate/entity"
	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

// chatClient is the slice of the OpenAI client the dispatcher uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// RecordsService reads the external business-record collaborators.
type RecordsService interface {
	FindCustomer(phone, email string) (*entity.Customer, error)
	GetCustomerJobs(customerID string) ([]entity.Job, error)
	GetJob(jobID string) (*entity.Job, error)
	GetAvailableSlots(from, to time.Time) ([]entity.TimeSlot, error)
	BookAppointment(customerID, jobID string, start time.Time, notes string) (*entity.Appointment, error)
	RescheduleAppointment(appointmentID string, start time.Time) (*entity.Appointment, error)
	CancelAppointment(appointmentID, reason string) error
	GetUpcomingAppointments(customerID string) ([]entity.Appointment, error)
	GetCustomerCertificates(customerID string) ([]entity.Certificate, error)
}

// Repository is the slice of the store the tools write to.
type Repository interface {
	GetInvoice(id string) (*entity.Invoice, error)
	ListCustomerInvoices(customerID string) ([]entity.Invoice, error)
	ListChaseEntries(invoiceID string) ([]entity.ChaseEntry, error)
	InsertLead(lead *entity.Lead) error
}

// PaymentService issues customer-facing payment links.
type PaymentService interface {
	CreatePaymentLink(invoiceID string) (*entity.PaymentLink, error)
}

// Queue enqueues outbound messages the assistant composes outside the
// current conversation (e.g. a follow-up email).
type Queue interface {
	EnqueueOutbound(item *entity.Outbound) error
}

// Dispatcher drives the tool-calling assistant for one session at a
// time. Every tool invocation is recorded on the result whether it
// succeeds or fails; the loop is bounded so a confused model cannot
// spin forever.
type Dispatcher struct {
	client   chatClient
	model    string
	maxTurns int
	askTO    time.Duration
	toolTO   time.Duration
	system   string
	records  RecordsService
	repo     Repository
	payments PaymentService
	queue    Queue
	locker   *LockSessions
	log      *slog.Logger
}

// LockSessions serializes dispatch per session so interleaved inbound
// messages from one sender produce replies in order.
type LockSessions struct {
	mutex    sync.Mutex
	sessions map[string]*sync.Mutex
}

func (l *LockSessions) Lock(sessionID string) {
	l.mutex.Lock()
	m, exists := l.sessions[sessionID]
	if !exists {
		m = &sync.Mutex{}
		l.sessions[sessionID] = m
	}
	l.mutex.Unlock()
	m.Lock()
}

func (l *LockSessions) Unlock(sessionID string) {
	l.mutex.Lock()
	m, exists := l.sessions[sessionID]
	l.mutex.Unlock()
	if exists {
		m.Unlock()
	}
}

func NewDispatcher(conf *config.Config, logger *slog.Logger) *Dispatcher {
	system := conf.OpenAI.SystemMsg
	if system == "" {
		system = defaultSystemPrompt
	}
	return &Dispatcher{
		client:   openai.NewClient(conf.OpenAI.ApiKey),
		model:    conf.OpenAI.Model,
		maxTurns: conf.OpenAI.MaxTurns,
		askTO:    time.Duration(conf.OpenAI.AskSec) * time.Second,
		toolTO:   time.Duration(conf.OpenAI.ToolSec) * time.Second,
		system:   system,
		locker:   &LockSessions{sessions: make(map[string]*sync.Mutex)},
		log:      logger.With(sl.Module("dispatcher")),
	}
}

func (d *Dispatcher) SetRecordsService(records RecordsService) {
	d.records = records
}

func (d *Dispatcher) SetRepository(repo Repository) {
	d.repo = repo
}

func (d *Dispatcher) SetPaymentService(payments PaymentService) {
	d.payments = payments
}

func (d *Dispatcher) SetQueue(queue Queue) {
	d.queue = queue
}

const defaultSystemPrompt = `You are the customer assistant for a gas and heating services company. ` +
	`You help customers book appointments, check job and certificate status, and pay invoices. ` +
	`Use the provided tools for every action; never invent bookings, prices or payment links. ` +
	`If the customer reports a gas leak or any emergency, use escalate_to_human immediately.`

// ComposeReply runs the assistant over the session history until it
// produces a final reply or exhausts the iteration bound. The bound is
// a safety property: exhaustion escalates rather than looping.
func (d *Dispatcher) ComposeReply(ctx context.Context, session *entity.Session, history []entity.Message) (*entity.AssistantReply, error) {
	d.locker.Lock(session.ID)
	defer d.locker.Unlock(session.ID)

	result := &entity.AssistantReply{}
	messages := d.buildContext(session, history)

	for turn := 0; turn < d.maxTurns; turn++ {
		askCtx, cancel := context.WithTimeout(ctx, d.askTO)
		resp, err := d.client.CreateChatCompletion(askCtx, openai.ChatCompletionRequest{
			Model:    d.model,
			Messages: messages,
			Tools:    toolDefinitions(),
		})
		cancel()
		if err != nil {
			return result, fmt.Errorf("%w: %v", entity.ErrAssistantUnavailable, err)
		}
		if len(resp.Choices) == 0 {
			return result, fmt.Errorf("%w: empty response", entity.ErrAssistantUnavailable)
		}

		choice := resp.Choices[0].Message

		if len(choice.ToolCalls) == 0 {
			result.Text = choice.Content
			return result, nil
		}

		messages = append(messages, choice)

		for _, call := range choice.ToolCalls {
			record := entity.ToolCall{
				Name: call.Function.Name,
				Args: call.Function.Arguments,
				At:   time.Now().UTC(),
			}

			toolCtx, cancelTool := context.WithTimeout(ctx, d.toolTO)
			output, err := d.handleCommand(toolCtx, session, call.Function.Name, call.Function.Arguments)
			cancelTool()

			if err != nil {
				// Recorded and surfaced to the model, not swallowed:
				// the assistant can apologize or escalate.
				record.Error = err.Error()
				output = fmt.Sprintf("Error executing %s: %v", call.Function.Name, err)
				d.log.With(
					slog.String("session", session.ID),
					slog.String("tool", call.Function.Name),
				).Error("tool execution", sl.Err(err))
			} else {
				record.Result = output
			}
			result.ToolCalls = append(result.ToolCalls, record)

			if call.Function.Name == toolEscalate {
				result.Escalate = true
				result.EscalateReason = record.Args
			}
			if call.Function.Name == toolCaptureLead && record.Error == "" && emergencyLead(record.Args) {
				result.Escalate = true
				result.EscalateReason = "emergency lead captured"
			}

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	result.Escalate = true
	result.EscalateReason = "assistant exceeded tool-call iteration bound"
	return result, nil
}

// emergencyLead reports whether captured lead arguments carry emergency
// urgency, which warrants a human regardless of what the model does next.
func emergencyLead(args string) bool {
	var req struct {
		Urgency string `json:"urgency"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return false
	}
	return req.Urgency == entity.UrgencyEmergency
}

func (d *Dispatcher) buildContext(session *entity.Session, history []entity.Message) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("%s\nChannel: %s. Sender: %s.",
				d.system, session.Channel, session.SenderName),
		},
	}

	for _, msg := range history {
		role := openai.ChatMessageRoleAssistant
		switch msg.Sender {
		case entity.SenderCustomer:
			role = openai.ChatMessageRoleUser
		case entity.SenderSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	return messages
}
