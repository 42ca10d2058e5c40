package gpt

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"TradeGate/entity"
)

type fakeChat struct {
	responses []openai.ChatCompletionResponse
	calls     int
	err       error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.calls >= len(f.responses) {
		// Repeat the last response so a bounded loop can exhaust.
		f.calls++
		return f.responses[len(f.responses)-1], nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func toolResponse(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					ID:       "call-1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: name, Arguments: args},
				}},
			}},
		},
	}
}

func testDispatcher(client chatClient, maxTurns int) *Dispatcher {
	return &Dispatcher{
		client:   client,
		model:    "test-model",
		maxTurns: maxTurns,
		askTO:    1e9,
		toolTO:   1e9,
		system:   defaultSystemPrompt,
		locker:   &LockSessions{sessions: make(map[string]*sync.Mutex)},
		log:      slog.Default(),
	}
}

func testSession() *entity.Session {
	return &entity.Session{
		ID:       "session-1",
		Channel:  entity.ChannelWebChat,
		SenderID: "visitor-1",
		Status:   entity.SessionActive,
		Open:     true,
	}
}

func TestComposeReplyPlainAnswer(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		textResponse("We open at 8am."),
	}}
	d := testDispatcher(client, 10)

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "We open at 8am." {
		t.Errorf("text = %q", reply.Text)
	}
	if reply.Escalate {
		t.Error("plain answer must not escalate")
	}
	if len(reply.ToolCalls) != 0 {
		t.Errorf("tool calls = %d, want 0", len(reply.ToolCalls))
	}
}

func TestComposeReplyRecordsToolCalls(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolOpeningHours, "{}"),
		textResponse("We open Monday to Friday at 8am."),
	}}
	d := testDispatcher(client, 10)

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(reply.ToolCalls))
	}
	record := reply.ToolCalls[0]
	if record.Name != toolOpeningHours {
		t.Errorf("tool name = %q", record.Name)
	}
	if record.Result == "" {
		t.Error("tool result not recorded")
	}
	if record.Error != "" {
		t.Errorf("unexpected tool error %q", record.Error)
	}
}

func TestComposeReplyRecordsFailedToolCall(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse("no_such_tool", "{}"),
		textResponse("Sorry, something went wrong."),
	}}
	d := testDispatcher(client, 10)

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(reply.ToolCalls))
	}
	if reply.ToolCalls[0].Error == "" {
		t.Error("failed call must record its error")
	}
}

func TestComposeReplyEscalateTool(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolEscalate, `{"reason":"customer asked for a human"}`),
		textResponse("Connecting you with a colleague now."),
	}}
	d := testDispatcher(client, 10)

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Escalate {
		t.Fatal("escalate tool must set the escalation flag")
	}
	if reply.Text == "" {
		t.Error("final text should still be returned")
	}
}

type fakeToolRepo struct {
	leads    []*entity.Lead
	invoices []entity.Invoice
}

func (f *fakeToolRepo) GetInvoice(string) (*entity.Invoice, error) {
	return nil, entity.ErrNotFound
}

func (f *fakeToolRepo) ListCustomerInvoices(customerID string) ([]entity.Invoice, error) {
	var out []entity.Invoice
	for _, inv := range f.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeToolRepo) ListChaseEntries(string) ([]entity.ChaseEntry, error) {
	return nil, nil
}

func (f *fakeToolRepo) InsertLead(lead *entity.Lead) error {
	f.leads = append(f.leads, lead)
	return nil
}

type fakeRecords struct {
	rescheduled map[string]time.Time
	cancelled   []string
	upcoming    []entity.Appointment
}

func (f *fakeRecords) FindCustomer(string, string) (*entity.Customer, error) {
	return nil, entity.ErrNotFound
}

func (f *fakeRecords) GetCustomerJobs(string) ([]entity.Job, error) { return nil, nil }

func (f *fakeRecords) GetJob(string) (*entity.Job, error) { return nil, entity.ErrNotFound }

func (f *fakeRecords) GetAvailableSlots(time.Time, time.Time) ([]entity.TimeSlot, error) {
	return nil, nil
}

func (f *fakeRecords) BookAppointment(customerID, jobID string, start time.Time, notes string) (*entity.Appointment, error) {
	return &entity.Appointment{ID: "apt-1", CustomerID: customerID, JobID: jobID, Start: start, Notes: notes}, nil
}

func (f *fakeRecords) RescheduleAppointment(appointmentID string, start time.Time) (*entity.Appointment, error) {
	if f.rescheduled == nil {
		f.rescheduled = make(map[string]time.Time)
	}
	f.rescheduled[appointmentID] = start
	return &entity.Appointment{ID: appointmentID, Start: start}, nil
}

func (f *fakeRecords) CancelAppointment(appointmentID, _ string) error {
	f.cancelled = append(f.cancelled, appointmentID)
	return nil
}

func (f *fakeRecords) GetUpcomingAppointments(string) ([]entity.Appointment, error) {
	return f.upcoming, nil
}

func (f *fakeRecords) GetCustomerCertificates(string) ([]entity.Certificate, error) {
	return nil, nil
}

func TestComposeReplyReschedulesAppointment(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolReschedule, `{"appointment_id":"apt-1","start":"2026-09-03T09:00:00Z"}`),
		textResponse("Moved you to Thursday 9am."),
	}}
	records := &fakeRecords{}
	d := testDispatcher(client, 10)
	d.records = records

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC)
	if got, ok := records.rescheduled["apt-1"]; !ok || !got.Equal(want) {
		t.Errorf("rescheduled = %v, want apt-1 at %v", records.rescheduled, want)
	}
	if len(reply.ToolCalls) != 1 || reply.ToolCalls[0].Error != "" {
		t.Errorf("tool calls = %+v", reply.ToolCalls)
	}
}

func TestComposeReplyCancelsAppointment(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolCancelAppointment, `{"appointment_id":"apt-2","reason":"customer away"}`),
		textResponse("That's cancelled for you."),
	}}
	records := &fakeRecords{}
	d := testDispatcher(client, 10)
	d.records = records

	if _, err := d.ComposeReply(context.Background(), testSession(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records.cancelled) != 1 || records.cancelled[0] != "apt-2" {
		t.Errorf("cancelled = %v", records.cancelled)
	}
}

func TestComposeReplyQuoteRequestCapturesLead(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolRequestQuote, `{"name":"Pat Webb","phone":"07700900001","service_type":"boiler_installation","details":"3-bed semi, combi boiler, current unit 15 years old"}`),
		textResponse("We'll send a written quote over shortly."),
	}}
	repo := &fakeToolRepo{}
	d := testDispatcher(client, 10)
	d.repo = repo

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(repo.leads))
	}
	lead := repo.leads[0]
	if lead.ServiceType != "boiler_installation" {
		t.Errorf("service type = %q", lead.ServiceType)
	}
	if lead.Notes == "" {
		t.Error("quote details must land on the lead notes")
	}
	if reply.Escalate {
		t.Error("a routine quote request must not escalate")
	}
}

func TestToolDefinitionsCoverRegistry(t *testing.T) {
	defs := toolDefinitions()
	if len(defs) != 26 {
		t.Fatalf("registry = %d tools, want 26", len(defs))
	}
	seen := make(map[string]bool)
	for _, def := range defs {
		if seen[def.Function.Name] {
			t.Errorf("duplicate tool %q", def.Function.Name)
		}
		seen[def.Function.Name] = true
	}
}

func TestComposeReplyEmergencyLeadEscalates(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolCaptureLead, `{"name":"Pat Webb","phone":"07700900001","service_type":"boiler_repair","urgency":"emergency"}`),
		textResponse("An engineer will call you right away."),
	}}
	repo := &fakeToolRepo{}
	d := testDispatcher(client, 10)
	d.repo = repo

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(repo.leads))
	}
	if !reply.Escalate {
		t.Error("emergency lead must escalate")
	}
}

func TestComposeReplyRoutineLeadDoesNotEscalate(t *testing.T) {
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolCaptureLead, `{"name":"Pat Webb","service_type":"boiler_service","urgency":"routine"}`),
		textResponse("Thanks, we will be in touch to book you in."),
	}}
	repo := &fakeToolRepo{}
	d := testDispatcher(client, 10)
	d.repo = repo

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Escalate {
		t.Error("routine lead must not escalate")
	}
}

func TestComposeReplyIterationBound(t *testing.T) {
	// The model keeps calling tools forever; the loop must stop at the
	// bound and escalate instead of spinning.
	client := &fakeChat{responses: []openai.ChatCompletionResponse{
		toolResponse(toolOpeningHours, "{}"),
	}}
	d := testDispatcher(client, 3)

	reply, err := d.ComposeReply(context.Background(), testSession(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Escalate {
		t.Fatal("exhausted loop must escalate")
	}
	if client.calls != 3 {
		t.Errorf("model calls = %d, want 3", client.calls)
	}
	if len(reply.ToolCalls) != 3 {
		t.Errorf("recorded tool calls = %d, want 3", len(reply.ToolCalls))
	}
}

func TestComposeReplyModelFailure(t *testing.T) {
	client := &fakeChat{err: errors.New("rate limited")}
	d := testDispatcher(client, 10)

	_, err := d.ComposeReply(context.Background(), testSession(), nil)
	if !errors.Is(err, entity.ErrAssistantUnavailable) {
		t.Fatalf("err = %v, want ErrAssistantUnavailable", err)
	}
}

func TestBuildContextRoles(t *testing.T) {
	d := testDispatcher(&fakeChat{}, 10)
	history := []entity.Message{
		{Sender: entity.SenderCustomer, Content: "hi"},
		{Sender: entity.SenderAssistant, Content: "hello"},
		{Sender: entity.SenderSystem, Content: "escalated to human: x"},
		{Sender: entity.SenderStaff, Content: "taking over"},
	}

	messages := d.buildContext(testSession(), history)
	if len(messages) != 5 {
		t.Fatalf("messages = %d, want 5", len(messages))
	}
	wantRoles := []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleAssistant,
	}
	for i, role := range wantRoles {
		if messages[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, messages[i].Role, role)
		}
	}
}
