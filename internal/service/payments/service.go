package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"TradeGate/entity"
	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

type Repository interface {
	HasPaymentEvent(eventID string) (bool, error)
	ApplyPaymentEvent(event *entity.PaymentEvent) (*entity.Invoice, error)
	GetPaymentLinkBySession(providerSessionID string) (*entity.PaymentLink, error)
	InsertPaymentLink(link *entity.PaymentLink) error
	GetInvoice(id string) (*entity.Invoice, error)
}

type Alerter interface {
	SendAlert(text string)
}

// Service verifies and applies payment-provider webhooks and issues
// checkout links for invoices.
type Service struct {
	repo    Repository
	alerter Alerter
	secret  []byte
	seen    *cache.Cache
	log     *slog.Logger
}

func New(conf *config.Config, repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		secret: []byte(conf.Payments.WebhookSecret),
		seen:   cache.New(24*time.Hour, 1*time.Hour),
		log:    logger.With(sl.Module("payments")),
	}
}

func (s *Service) SetAlerter(alerter Alerter) {
	s.alerter = alerter
}

// webhookEvent is the provider envelope. EventID is globally unique on
// the provider side and is our idempotency key.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID          string `json:"id"`
			AmountTotal int64  `json:"amount_total"`
			Currency    string `json:"currency"`
			Method      string `json:"payment_method"`
		} `json:"object"`
	} `json:"data"`
}

// VerifySignature checks the HMAC-SHA256 of the raw body against the
// shared webhook secret with a constant-time compare. Verification runs
// over the exact bytes received, before any parsing.
func (s *Service) VerifySignature(body []byte, signature string) error {
	if len(s.secret) == 0 {
		return fmt.Errorf("%w: no webhook secret configured", entity.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return entity.ErrSignatureInvalid
	}
	return nil
}

// HandleWebhook applies one verified payment event exactly once.
// Replays of an already-applied event id return nil with no side
// effects so the provider stops retrying.
func (s *Service) HandleWebhook(body []byte) error {
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("parse webhook payload: %w", err)
	}
	if ev.ID == "" {
		return fmt.Errorf("webhook payload missing event id")
	}

	if ev.Type != "checkout.session.completed" {
		s.log.With(slog.String("type", ev.Type)).Debug("webhook event ignored")
		return nil
	}

	// Fast path for provider retry storms; the durable check below is
	// what actually guarantees exactly-once.
	if _, hit := s.seen.Get(ev.ID); hit {
		return nil
	}

	applied, err := s.repo.HasPaymentEvent(ev.ID)
	if err != nil {
		return fmt.Errorf("check payment event: %w", err)
	}
	if applied {
		s.seen.SetDefault(ev.ID, struct{}{})
		return nil
	}

	link, err := s.repo.GetPaymentLinkBySession(ev.Data.Object.ID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("no payment link for session %s", ev.Data.Object.ID)
		}
		return fmt.Errorf("resolve payment link: %w", err)
	}

	amount := float64(ev.Data.Object.AmountTotal) / 100
	method := ev.Data.Object.Method
	if method == "" {
		method = "card"
	}

	event := entity.NewPaymentEvent(ev.ID, ev.Type, link.InvoiceID, method, amount)
	invoice, err := s.repo.ApplyPaymentEvent(event)
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateEvent) {
			// Lost a race against a concurrent delivery of the same
			// event; the other writer applied it.
			s.seen.SetDefault(ev.ID, struct{}{})
			return nil
		}
		if s.alerter != nil {
			s.alerter.SendAlert(fmt.Sprintf(
				"Payment reconciliation failed\nEvent: %s\nInvoice: %s\nError: %v",
				ev.ID, link.InvoiceID, err,
			))
		}
		return fmt.Errorf("apply payment event: %w", err)
	}

	s.seen.SetDefault(ev.ID, struct{}{})
	s.log.With(
		slog.String("invoice", invoice.ID),
		slog.String("status", string(invoice.Status)),
		slog.Float64("amount", amount),
	).Info("payment applied")
	return nil
}

// CreatePaymentLink issues a checkout link for an invoice and records
// the provider session id so the completion webhook can find its way
// back.
func (s *Service) CreatePaymentLink(invoiceID string) (*entity.PaymentLink, error) {
	invoice, err := s.repo.GetInvoice(invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	if invoice.Outstanding() <= 0 {
		return nil, fmt.Errorf("invoice %s has no outstanding balance", invoiceID)
	}

	sessionID := "cs_" + uuid.NewString()
	link := &entity.PaymentLink{
		ID:                uuid.NewString(),
		InvoiceID:         invoice.ID,
		ProviderSessionID: sessionID,
		URL:               "https://pay.tradegate.example/c/" + sessionID,
		CreatedAt:         time.Now().UTC(),
	}
	if err = s.repo.InsertPaymentLink(link); err != nil {
		return nil, fmt.Errorf("record payment link: %w", err)
	}
	return link, nil
}
