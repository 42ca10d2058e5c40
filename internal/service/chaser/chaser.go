package chaser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"TradeGate/entity"
	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

type Repository interface {
	GetInvoice(id string) (*entity.Invoice, error)
	ListOverdueInvoices(now time.Time) ([]entity.Invoice, error)
	ListChaseEntries(invoiceID string) ([]entity.ChaseEntry, error)
	InsertChaseEntry(entry *entity.ChaseEntry) error
	EnqueueOutbound(item *entity.Outbound) error

	InsertRenewalReminder(reminder *entity.RenewalReminder) error
	InsertLead(lead *entity.Lead) error
}

// Certificates is the registry slice the renewal watch reads.
type Certificates interface {
	ListExpiringCertificates(before time.Time) ([]entity.Certificate, error)
}

// Service runs the daily revenue jobs: overdue-invoice chasing and the
// certificate renewal watch. Both are idempotent and safe to re-run.
type Service struct {
	repo    Repository
	certs   Certificates
	offsets []int
	hourUTC int
	horizon time.Duration
	log     *slog.Logger
}

func New(conf *config.Config, repo Repository, certs Certificates, logger *slog.Logger) (*Service, error) {
	offsets := conf.Gateway.ChaseOffsets
	if err := validateOffsets(offsets); err != nil {
		return nil, fmt.Errorf("chase offsets: %w", err)
	}
	return &Service{
		repo:    repo,
		certs:   certs,
		offsets: offsets,
		hourUTC: conf.Gateway.ChaseHourUTC,
		horizon: time.Duration(conf.Gateway.CertHorizonDays) * 24 * time.Hour,
		log:     logger.With(sl.Module("chaser")),
	}, nil
}

func validateOffsets(offsets []int) error {
	if len(offsets) == 0 {
		return fmt.Errorf("none configured")
	}
	last := 0
	for _, n := range offsets {
		if n <= last {
			return fmt.Errorf("must be strictly increasing, got %v", offsets)
		}
		last = n
	}
	return nil
}

// Start schedules both jobs once a day at the configured hour.
func (s *Service) Start(ctx context.Context) {
	go func() {
		for {
			next := nextRunAt(time.Now().UTC(), s.hourUTC)
			s.log.With(slog.Time("next", next)).Info("next revenue automation run")

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
			}

			s.RunChase(ctx)
			s.RunCertWatch(ctx)
		}
	}()
}

func nextRunAt(now time.Time, hourUTC int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// NextChaseOffsets returns the offsets due for an invoice: every
// configured offset at or past the days-overdue mark that has no entry
// yet, in ascending order. Payment or a settled invoice stops the
// sequence entirely.
func NextChaseOffsets(invoice *entity.Invoice, existing []entity.ChaseEntry, offsets []int, now time.Time) []int {
	if invoice.Status == entity.InvoicePaid || invoice.Outstanding() <= 0 {
		return nil
	}

	sent := make(map[int]bool, len(existing))
	for _, entry := range existing {
		if entry.PaymentReceived {
			return nil
		}
		sent[entry.OffsetDays] = true
	}

	daysOverdue := int(now.Sub(invoice.DueDate).Hours() / 24)
	if daysOverdue < 0 {
		return nil
	}

	var due []int
	for _, offset := range offsets {
		if offset <= daysOverdue && !sent[offset] {
			due = append(due, offset)
		}
	}
	return due
}

// RunChase walks every overdue invoice and sends each missed reminder.
// A catch-up run after downtime emits all the offsets that fell due in
// the gap, in sequence.
func (s *Service) RunChase(ctx context.Context) {
	now := time.Now().UTC()

	invoices, err := s.repo.ListOverdueInvoices(now)
	if err != nil {
		s.log.Error("list overdue invoices", sl.Err(err))
		return
	}

	for _, invoice := range invoices {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.chaseInvoice(&invoice, now); err != nil {
			s.log.With(slog.String("invoice", invoice.ID)).
				Error("chase invoice", sl.Err(err))
		}
	}
}

// ChaseInvoiceByID runs the chase sequence for one invoice on demand,
// with the same idempotence as the scheduled run.
func (s *Service) ChaseInvoiceByID(id string) error {
	invoice, err := s.repo.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}
	return s.chaseInvoice(invoice, time.Now().UTC())
}

func (s *Service) chaseInvoice(invoice *entity.Invoice, now time.Time) error {
	existing, err := s.repo.ListChaseEntries(invoice.ID)
	if err != nil {
		return fmt.Errorf("list chase entries: %w", err)
	}

	due := NextChaseOffsets(invoice, existing, s.offsets, now)
	if len(due) == 0 {
		return nil
	}

	seq := len(existing)
	for _, offset := range due {
		seq++
		channel, recipient := chaseRoute(invoice)
		if recipient == "" {
			return fmt.Errorf("invoice %s has no contact details", invoice.ID)
		}

		content := chaseContent(invoice, seq, len(s.offsets))
		entry := entity.NewChaseEntry(invoice.ID, seq, offset, channel, content)

		err = s.repo.InsertChaseEntry(entry)
		if err != nil {
			if errors.Is(err, entity.ErrDuplicateEvent) {
				// Another run already covered this offset.
				continue
			}
			return fmt.Errorf("record chase entry: %w", err)
		}

		item := entity.NewOutbound(recipient, channel, entity.OutboundTypeReminder, content, time.Time{})
		if err = s.repo.EnqueueOutbound(item); err != nil {
			return fmt.Errorf("queue chase reminder: %w", err)
		}

		s.log.With(
			slog.String("invoice", invoice.ID),
			slog.Int("offset", offset),
			slog.Int("seq", seq),
		).Info("chase reminder queued")
	}
	return nil
}

// chaseRoute prefers SMS when the invoice carries a phone number,
// falling back to email.
func chaseRoute(invoice *entity.Invoice) (entity.ChannelType, string) {
	if invoice.Phone != "" {
		return entity.ChannelSMS, invoice.Phone
	}
	if invoice.Email != "" {
		return entity.ChannelEmail, invoice.Email
	}
	return "", ""
}

func chaseContent(invoice *entity.Invoice, seq, total int) string {
	outstanding := invoice.Outstanding()
	if seq >= total {
		return fmt.Sprintf(
			"Final reminder: invoice %s for £%.2f remains unpaid since %s. "+
				"Please settle the balance today or contact us to arrange payment.",
			invoice.Number, outstanding, invoice.DueDate.Format("2 January 2006"))
	}
	return fmt.Sprintf(
		"Reminder: invoice %s has an outstanding balance of £%.2f, due %s. "+
			"Reply to this message if you have any questions or need a payment link.",
		invoice.Number, outstanding, invoice.DueDate.Format("2 January 2006"))
}
