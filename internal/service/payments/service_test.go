package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"

	"TradeGate/entity"
)

type fakePaymentRepo struct {
	applied  map[string]*entity.PaymentEvent
	links    map[string]*entity.PaymentLink
	invoices map[string]*entity.Invoice
	applyErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		applied:  make(map[string]*entity.PaymentEvent),
		links:    make(map[string]*entity.PaymentLink),
		invoices: make(map[string]*entity.Invoice),
	}
}

func (f *fakePaymentRepo) HasPaymentEvent(eventID string) (bool, error) {
	_, ok := f.applied[eventID]
	return ok, nil
}

func (f *fakePaymentRepo) ApplyPaymentEvent(event *entity.PaymentEvent) (*entity.Invoice, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	if _, ok := f.applied[event.EventID]; ok {
		return nil, entity.ErrDuplicateEvent
	}
	f.applied[event.EventID] = event

	invoice, ok := f.invoices[event.InvoiceID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	invoice.AmountPaid += event.Amount
	if invoice.Outstanding() <= 0 {
		invoice.Status = entity.InvoicePaid
	} else {
		invoice.Status = entity.InvoicePartial
	}
	return invoice, nil
}

func (f *fakePaymentRepo) GetPaymentLinkBySession(sessionID string) (*entity.PaymentLink, error) {
	link, ok := f.links[sessionID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return link, nil
}

func (f *fakePaymentRepo) InsertPaymentLink(link *entity.PaymentLink) error {
	f.links[link.ProviderSessionID] = link
	return nil
}

func (f *fakePaymentRepo) GetInvoice(id string) (*entity.Invoice, error) {
	invoice, ok := f.invoices[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return invoice, nil
}

type fakePayAlerter struct {
	alerts []string
}

func (f *fakePayAlerter) SendAlert(text string) { f.alerts = append(f.alerts, text) }

const testSecret = "whsec_test"

func testPayService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		secret: []byte(testSecret),
		seen:   cache.New(24*time.Hour, time.Hour),
		log:    slog.Default(),
	}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func completedEvent(eventID, sessionID string, amountPence int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"checkout.session.completed","data":{"object":{"id":%q,"amount_total":%d,"currency":"gbp","payment_method":"card"}}}`,
		eventID, sessionID, amountPence))
}

func TestVerifySignature(t *testing.T) {
	s := testPayService(newFakePaymentRepo())
	body := []byte(`{"id":"evt_1"}`)

	if err := s.VerifySignature(body, sign(body)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	if err := s.VerifySignature(body, "deadbeef"); !errors.Is(err, entity.ErrSignatureInvalid) {
		t.Errorf("bad signature error = %v, want ErrSignatureInvalid", err)
	}
	if err := s.VerifySignature([]byte("tampered"), sign(body)); !errors.Is(err, entity.ErrSignatureInvalid) {
		t.Errorf("tampered body error = %v, want ErrSignatureInvalid", err)
	}
}

func TestVerifySignatureNoSecretConfigured(t *testing.T) {
	s := testPayService(newFakePaymentRepo())
	s.secret = nil

	err := s.VerifySignature([]byte("{}"), sign([]byte("{}")))
	if !errors.Is(err, entity.ErrSignatureInvalid) {
		t.Errorf("error = %v, want ErrSignatureInvalid when secret missing", err)
	}
}

func TestHandleWebhookAppliesPayment(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.invoices["inv-1"] = &entity.Invoice{ID: "inv-1", Total: 240, Status: entity.InvoiceOverdue}
	repo.links["cs_abc"] = &entity.PaymentLink{ID: "pl-1", InvoiceID: "inv-1", ProviderSessionID: "cs_abc"}
	s := testPayService(repo)

	if err := s.HandleWebhook(completedEvent("evt_1", "cs_abc", 24000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := repo.applied["evt_1"]
	if event == nil {
		t.Fatal("payment event not recorded")
	}
	if event.Amount != 240 {
		t.Errorf("amount = %.2f, want 240.00 (pence converted)", event.Amount)
	}
	if event.Method != "card" {
		t.Errorf("method = %q", event.Method)
	}
	if repo.invoices["inv-1"].Status != entity.InvoicePaid {
		t.Errorf("invoice status = %q, want paid", repo.invoices["inv-1"].Status)
	}
}

func TestHandleWebhookPartialPayment(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.invoices["inv-1"] = &entity.Invoice{ID: "inv-1", Total: 240, Status: entity.InvoiceOverdue}
	repo.links["cs_abc"] = &entity.PaymentLink{ID: "pl-1", InvoiceID: "inv-1", ProviderSessionID: "cs_abc"}
	s := testPayService(repo)

	if err := s.HandleWebhook(completedEvent("evt_1", "cs_abc", 10000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.invoices["inv-1"].Status != entity.InvoicePartial {
		t.Errorf("invoice status = %q, want partial", repo.invoices["inv-1"].Status)
	}
}

func TestHandleWebhookReplayIsNoop(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.invoices["inv-1"] = &entity.Invoice{ID: "inv-1", Total: 240, Status: entity.InvoiceOverdue}
	repo.links["cs_abc"] = &entity.PaymentLink{ID: "pl-1", InvoiceID: "inv-1", ProviderSessionID: "cs_abc"}
	s := testPayService(repo)

	body := completedEvent("evt_1", "cs_abc", 24000)
	for i := 0; i < 3; i++ {
		if err := s.HandleWebhook(body); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if got := repo.invoices["inv-1"].AmountPaid; got != 240 {
		t.Errorf("amount paid = %.2f after 3 deliveries, want 240.00", got)
	}
	if len(repo.applied) != 1 {
		t.Errorf("events recorded = %d, want 1", len(repo.applied))
	}
}

func TestHandleWebhookReplaySurvivesCacheMiss(t *testing.T) {
	// The in-memory cache may have been evicted or the process
	// restarted; the durable event record still blocks the replay.
	repo := newFakePaymentRepo()
	repo.invoices["inv-1"] = &entity.Invoice{ID: "inv-1", Total: 240, Status: entity.InvoiceOverdue}
	repo.links["cs_abc"] = &entity.PaymentLink{ID: "pl-1", InvoiceID: "inv-1", ProviderSessionID: "cs_abc"}
	s := testPayService(repo)

	body := completedEvent("evt_1", "cs_abc", 24000)
	if err := s.HandleWebhook(body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	s.seen.Flush()
	if err := s.HandleWebhook(body); err != nil {
		t.Fatalf("replay after cache flush: %v", err)
	}
	if got := repo.invoices["inv-1"].AmountPaid; got != 240 {
		t.Errorf("amount paid = %.2f, want 240.00", got)
	}
}

func TestHandleWebhookConcurrentDuplicateSwallowed(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.links["cs_abc"] = &entity.PaymentLink{ID: "pl-1", InvoiceID: "inv-1", ProviderSessionID: "cs_abc"}
	repo.applyErr = entity.ErrDuplicateEvent
	s := testPayService(repo)

	if err := s.HandleWebhook(completedEvent("evt_1", "cs_abc", 24000)); err != nil {
		t.Errorf("duplicate race should return nil, got %v", err)
	}
}

func TestHandleWebhookIgnoresOtherEventTypes(t *testing.T) {
	repo := newFakePaymentRepo()
	s := testPayService(repo)

	body := []byte(`{"id":"evt_2","type":"payment_intent.created","data":{"object":{"id":"cs_abc"}}}`)
	if err := s.HandleWebhook(body); err != nil {
		t.Errorf("ignored event type should return nil, got %v", err)
	}
	if len(repo.applied) != 0 {
		t.Errorf("events recorded = %d, want 0", len(repo.applied))
	}
}

func TestHandleWebhookMissingEventID(t *testing.T) {
	s := testPayService(newFakePaymentRepo())
	if err := s.HandleWebhook([]byte(`{"type":"checkout.session.completed"}`)); err == nil {
		t.Error("expected error for payload without event id")
	}
}

func TestHandleWebhookUnknownSession(t *testing.T) {
	s := testPayService(newFakePaymentRepo())
	if err := s.HandleWebhook(completedEvent("evt_1", "cs_missing", 100)); err == nil {
		t.Error("expected error for unknown provider session")
	}
}

func TestHandleWebhookAlertsOnReconciliationFailure(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.links["cs_abc"] = &entity.PaymentLink{ID: "pl-1", InvoiceID: "inv-1", ProviderSessionID: "cs_abc"}
	repo.applyErr = errors.New("write conflict")
	alerter := &fakePayAlerter{}
	s := testPayService(repo)
	s.SetAlerter(alerter)

	if err := s.HandleWebhook(completedEvent("evt_1", "cs_abc", 24000)); err == nil {
		t.Fatal("expected error when apply fails")
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(alerter.alerts))
	}
}

func TestCreatePaymentLink(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.invoices["inv-1"] = &entity.Invoice{ID: "inv-1", Total: 240, Status: entity.InvoiceOverdue}
	s := testPayService(repo)

	link, err := s.CreatePaymentLink("inv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.InvoiceID != "inv-1" {
		t.Errorf("invoice id = %q", link.InvoiceID)
	}
	if link.ProviderSessionID == "" || link.URL == "" {
		t.Error("link missing session id or url")
	}
	if repo.links[link.ProviderSessionID] == nil {
		t.Error("link not recorded against its session id")
	}
}

func TestCreatePaymentLinkSettledInvoiceRejected(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.invoices["inv-1"] = &entity.Invoice{ID: "inv-1", Total: 240, AmountPaid: 240, Status: entity.InvoicePaid}
	s := testPayService(repo)

	if _, err := s.CreatePaymentLink("inv-1"); err == nil {
		t.Error("expected error for settled invoice")
	}
}
