package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"TradeGate/entity"
)

type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]*entity.Session
	messages []*entity.Message
	outbound []*entity.Outbound
	leads    []*entity.Lead
	seq      int64

	chaseContacts []string
	resolveErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string]*entity.Session)}
}

func (f *fakeRepo) CheckApiKey(string) (*entity.StaffAuth, error) {
	return &entity.StaffAuth{Username: "tester", Role: entity.RoleStaff}, nil
}

func (f *fakeRepo) GenerateApiKey(username, role string) (string, error) {
	return "key", nil
}

func (f *fakeRepo) ResolveOpenSession(ev entity.InboundEvent) (*entity.Session, bool, error) {
	if f.resolveErr != nil {
		return nil, false, f.resolveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.Open && s.Channel == ev.Channel && s.SenderID == ev.SenderID {
			return s, false, nil
		}
	}
	s := entity.NewSession(ev)
	f.sessions[s.ID] = s
	return s, true, nil
}

func (f *fakeRepo) GetSession(id string) (*entity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeRepo) UpdateSessionStatus(id string, from []entity.SessionStatus, to entity.SessionStatus, assignedTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return entity.ErrNotFound
	}
	matched := false
	for _, status := range from {
		if s.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return entity.ErrStaleState
	}
	s.Status = to
	if assignedTo != "" {
		s.AssignedTo = assignedTo
	}
	if to == entity.SessionClosed {
		s.Open = false
	}
	return nil
}

func (f *fakeRepo) CloseIdleSessions(time.Time) (int64, error) { return 0, nil }

func (f *fakeRepo) ListSessions(entity.SessionStatus, entity.ChannelType) ([]entity.SessionSummary, error) {
	return nil, nil
}

func (f *fakeRepo) AppendMessage(msg *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	msg.Seq = f.seq
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeRepo) GetMessages(sessionID string) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkMessagesRead(string, string) error { return nil }

func (f *fakeRepo) EnqueueOutbound(item *entity.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbound = append(f.outbound, item)
	return nil
}

func (f *fakeRepo) ListOutbound(entity.OutboundStatus) ([]entity.Outbound, error) {
	return nil, nil
}

func (f *fakeRepo) InsertLead(lead *entity.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, lead)
	return nil
}

func (f *fakeRepo) GetLead(string) (*entity.Lead, error) { return nil, entity.ErrNotFound }

func (f *fakeRepo) ListLeads(entity.LeadStatus, entity.ChannelType) ([]entity.Lead, error) {
	return nil, nil
}

func (f *fakeRepo) UpdateLeadStatus(string, entity.LeadStatus, entity.LeadStatus) error { return nil }

func (f *fakeRepo) MarkChaseResponseSeenByContact(contact string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chaseContacts = append(f.chaseContacts, contact)
	return nil
}

func (f *fakeRepo) GetAnalyticsSummary(time.Time) (*entity.AnalyticsSummary, error) {
	return &entity.AnalyticsSummary{}, nil
}

type fakeAssistant struct {
	reply *entity.AssistantReply
	err   error

	before func() // runs before returning, to race staff actions
}

func (f *fakeAssistant) ComposeReply(context.Context, *entity.Session, []entity.Message) (*entity.AssistantReply, error) {
	if f.before != nil {
		f.before()
	}
	return f.reply, f.err
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlerter) SendAlert(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, text)
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func testCore(repo *fakeRepo, assistant Assistant) (*Core, *fakeAlerter) {
	alerter := &fakeAlerter{}
	c := New(slog.Default(), 24)
	c.SetRepository(repo)
	c.SetAssistant(assistant)
	c.SetAlerter(alerter)
	return c, alerter
}

func inboundEvent(content string) entity.InboundEvent {
	return entity.InboundEvent{
		Channel:    entity.ChannelSMS,
		SenderID:   "07700900000",
		SenderName: "Jo",
		Content:    content,
		ReceivedAt: time.Now().UTC(),
	}
}

func TestHandleInboundCreatesSessionAndReplies(t *testing.T) {
	repo := newFakeRepo()
	assistant := &fakeAssistant{reply: &entity.AssistantReply{Text: "Hello!"}}
	c, _ := testCore(repo, assistant)

	if err := c.HandleInbound(context.Background(), inboundEvent("hi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(repo.sessions))
	}
	// One inbound message plus the assistant reply on the ledger.
	if len(repo.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(repo.messages))
	}
	if repo.messages[0].Direction != entity.DirectionInbound {
		t.Error("first message should be the inbound one")
	}
	if repo.messages[1].Sender != entity.SenderAssistant {
		t.Errorf("second message sender = %q", repo.messages[1].Sender)
	}
	if len(repo.outbound) != 1 {
		t.Fatalf("outbound = %d, want 1", len(repo.outbound))
	}
	if repo.outbound[0].Content != "Hello!" {
		t.Errorf("outbound content = %q", repo.outbound[0].Content)
	}
	if len(repo.chaseContacts) != 1 || repo.chaseContacts[0] != "07700900000" {
		t.Errorf("chase response contact = %v", repo.chaseContacts)
	}
}

func TestHandleInboundReusesOpenSession(t *testing.T) {
	repo := newFakeRepo()
	assistant := &fakeAssistant{reply: &entity.AssistantReply{Text: "ok"}}
	c, _ := testCore(repo, assistant)

	_ = c.HandleInbound(context.Background(), inboundEvent("first"))
	_ = c.HandleInbound(context.Background(), inboundEvent("second"))

	if len(repo.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1 (same sender, same channel)", len(repo.sessions))
	}
}

func TestHandleInboundAssignedSessionMutesAssistant(t *testing.T) {
	repo := newFakeRepo()
	assistant := &fakeAssistant{reply: &entity.AssistantReply{Text: "should not appear"}}
	c, _ := testCore(repo, assistant)

	_ = c.HandleInbound(context.Background(), inboundEvent("hi"))
	var sessionID string
	for id := range repo.sessions {
		sessionID = id
	}
	if err := c.AssignSession(sessionID, "agent1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	before := len(repo.outbound)
	_ = c.HandleInbound(context.Background(), inboundEvent("are you there?"))
	if len(repo.outbound) != before {
		t.Error("assistant replied on an assigned session")
	}
}

func TestHandleInboundEmergencyEscalates(t *testing.T) {
	repo := newFakeRepo()
	assistant := &fakeAssistant{reply: &entity.AssistantReply{Text: "ignored"}}
	c, alerter := testCore(repo, assistant)

	if err := c.HandleInbound(context.Background(), inboundEvent("I can smell gas in the kitchen")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var session *entity.Session
	for _, s := range repo.sessions {
		session = s
	}
	if session.Status != entity.SessionEscalated {
		t.Errorf("status = %q, want escalated", session.Status)
	}
	if alerter.count() == 0 {
		t.Error("emergency must alert staff")
	}
	if len(repo.outbound) != 1 {
		t.Fatalf("outbound = %d, want the safety reply only", len(repo.outbound))
	}
}

func TestAssistantEscalationFlag(t *testing.T) {
	repo := newFakeRepo()
	assistant := &fakeAssistant{reply: &entity.AssistantReply{
		Text:           "Let me get a colleague.",
		Escalate:       true,
		EscalateReason: "customer asked for a human",
	}}
	c, alerter := testCore(repo, assistant)

	_ = c.HandleInbound(context.Background(), inboundEvent("can I talk to a person"))

	var session *entity.Session
	for _, s := range repo.sessions {
		session = s
	}
	if session.Status != entity.SessionEscalated {
		t.Errorf("status = %q, want escalated", session.Status)
	}
	if alerter.count() == 0 {
		t.Error("escalation must alert staff")
	}
}

func TestAssistantFailureEscalatesWithFallback(t *testing.T) {
	repo := newFakeRepo()
	assistant := &fakeAssistant{err: entity.ErrAssistantUnavailable}
	c, _ := testCore(repo, assistant)

	_ = c.HandleInbound(context.Background(), inboundEvent("hello"))

	var session *entity.Session
	for _, s := range repo.sessions {
		session = s
	}
	if session.Status != entity.SessionEscalated {
		t.Errorf("status = %q, want escalated", session.Status)
	}
	if len(repo.outbound) != 1 {
		t.Fatalf("outbound = %d, want the fallback reply", len(repo.outbound))
	}
	if repo.outbound[0].Content != fallbackReply {
		t.Errorf("outbound content = %q", repo.outbound[0].Content)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short ascii untouched", "gas leak", 200, "gas leak"},
		{"ascii cut", "abcdef", 3, "abc…"},
		{"cut lands mid-rune", "abécd", 3, "ab…"}, // é spans bytes 2-3
		{"cut on rune boundary", "abécd", 4, "abé…"},
		{"exact length untouched", "abé", 4, "abé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
			}
		})
	}
}

func TestAssistantFailureKeepsToolCallRecord(t *testing.T) {
	repo := newFakeRepo()
	// The dispatcher ran a side-effecting tool, then the model call died.
	assistant := &fakeAssistant{
		reply: &entity.AssistantReply{ToolCalls: []entity.ToolCall{{
			Name:   "book_appointment",
			Args:   `{"customer_id":"cus-1"}`,
			Result: `{"id":"apt-1"}`,
			At:     time.Now().UTC(),
		}}},
		err: entity.ErrAssistantUnavailable,
	}
	c, _ := testCore(repo, assistant)

	_ = c.HandleInbound(context.Background(), inboundEvent("book me in"))

	// Inbound message plus the tool-call audit record.
	if len(repo.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(repo.messages))
	}
	audit := repo.messages[1]
	if audit.Sender != entity.SenderAssistant {
		t.Errorf("audit sender = %q", audit.Sender)
	}
	if len(audit.ToolCalls) != 1 || audit.ToolCalls[0].Name != "book_appointment" {
		t.Errorf("audit tool calls = %+v", audit.ToolCalls)
	}
	// The failure path still runs: fallback reply and escalation.
	if len(repo.outbound) != 1 || repo.outbound[0].Content != fallbackReply {
		t.Fatalf("outbound = %+v, want the fallback reply", repo.outbound)
	}
	var session *entity.Session
	for _, s := range repo.sessions {
		session = s
	}
	if session.Status != entity.SessionEscalated {
		t.Errorf("status = %q, want escalated", session.Status)
	}
}

func TestAssistantReplyDiscardedWhenStaffTakesOver(t *testing.T) {
	repo := newFakeRepo()
	c, _ := testCore(repo, nil)

	assistant := &fakeAssistant{reply: &entity.AssistantReply{Text: "late reply"}}
	assistant.before = func() {
		// Staff claims the session while the model is thinking.
		for id := range repo.sessions {
			_ = c.AssignSession(id, "agent1")
		}
	}
	c.SetAssistant(assistant)

	_ = c.HandleInbound(context.Background(), inboundEvent("hello"))

	if len(repo.outbound) != 0 {
		t.Errorf("outbound = %d, late assistant reply must be discarded", len(repo.outbound))
	}
}

func TestEscalateTwiceIsNoop(t *testing.T) {
	repo := newFakeRepo()
	c, alerter := testCore(repo, &fakeAssistant{reply: &entity.AssistantReply{}})

	_ = c.HandleInbound(context.Background(), inboundEvent("hello"))
	var sessionID string
	for id := range repo.sessions {
		sessionID = id
	}

	if err := c.EscalateSession(sessionID, "first"); err != nil {
		t.Fatalf("first escalate: %v", err)
	}
	if err := c.EscalateSession(sessionID, "second"); err != nil {
		t.Fatalf("second escalate should be a no-op, got %v", err)
	}
	if alerter.count() != 1 {
		t.Errorf("alerts = %d, want 1", alerter.count())
	}
}

func TestCloseSessionThenNewInboundOpensFresh(t *testing.T) {
	repo := newFakeRepo()
	c, _ := testCore(repo, &fakeAssistant{reply: &entity.AssistantReply{Text: "ok"}})

	_ = c.HandleInbound(context.Background(), inboundEvent("hello"))
	var sessionID string
	for id := range repo.sessions {
		sessionID = id
	}
	if err := c.CloseSession(sessionID); err != nil {
		t.Fatalf("close: %v", err)
	}

	_ = c.HandleInbound(context.Background(), inboundEvent("hello again"))
	if len(repo.sessions) != 2 {
		t.Fatalf("sessions = %d, want 2 after close", len(repo.sessions))
	}
}

func TestSendStaffReplyOnClosedSession(t *testing.T) {
	repo := newFakeRepo()
	c, _ := testCore(repo, &fakeAssistant{reply: &entity.AssistantReply{Text: "ok"}})

	_ = c.HandleInbound(context.Background(), inboundEvent("hello"))
	var sessionID string
	for id := range repo.sessions {
		sessionID = id
	}
	_ = c.CloseSession(sessionID)

	err := c.SendStaffReply(sessionID, "agent1", "too late")
	if !errors.Is(err, entity.ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
}

func TestHandleInboundUnknownChannel(t *testing.T) {
	repo := newFakeRepo()
	c, _ := testCore(repo, &fakeAssistant{})

	ev := inboundEvent("hi")
	ev.Channel = "carrier-pigeon"
	if err := c.HandleInbound(context.Background(), ev); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
