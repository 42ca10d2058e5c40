package chaser

import (
	"log/slog"
	"testing"
	"time"

	"TradeGate/entity"
)

var testOffsets = []int{3, 7, 14, 30}

func overdueInvoice(now time.Time, daysOverdue int) *entity.Invoice {
	return &entity.Invoice{
		ID:      "inv-1",
		Number:  "INV-1001",
		Phone:   "07700900000",
		Email:   "jo@example.com",
		Total:   240,
		Status:  entity.InvoiceOverdue,
		DueDate: now.AddDate(0, 0, -daysOverdue),
	}
}

func TestNextChaseOffsets(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name     string
		invoice  *entity.Invoice
		existing []entity.ChaseEntry
		want     []int
	}{
		{
			name:    "not yet due for first reminder",
			invoice: overdueInvoice(now, 2),
			want:    nil,
		},
		{
			name:    "first offset due",
			invoice: overdueInvoice(now, 3),
			want:    []int{3},
		},
		{
			name:    "catch-up after downtime emits all missed offsets",
			invoice: overdueInvoice(now, 20),
			want:    []int{3, 7, 14},
		},
		{
			name:    "everything due",
			invoice: overdueInvoice(now, 45),
			want:    []int{3, 7, 14, 30},
		},
		{
			name:    "already sent offsets skipped",
			invoice: overdueInvoice(now, 20),
			existing: []entity.ChaseEntry{
				{InvoiceID: "inv-1", Seq: 1, OffsetDays: 3},
				{InvoiceID: "inv-1", Seq: 2, OffsetDays: 7},
			},
			want: []int{14},
		},
		{
			name:    "payment received halts the sequence",
			invoice: overdueInvoice(now, 45),
			existing: []entity.ChaseEntry{
				{InvoiceID: "inv-1", Seq: 1, OffsetDays: 3, PaymentReceived: true},
			},
			want: nil,
		},
		{
			name: "paid invoice never chased",
			invoice: &entity.Invoice{
				ID: "inv-2", Total: 100, AmountPaid: 100,
				Status:  entity.InvoicePaid,
				DueDate: now.AddDate(0, 0, -45),
			},
			want: nil,
		},
		{
			name: "settled balance never chased even if status lags",
			invoice: &entity.Invoice{
				ID: "inv-3", Total: 100, AmountPaid: 100,
				Status:  entity.InvoiceOverdue,
				DueDate: now.AddDate(0, 0, -10),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextChaseOffsets(tt.invoice, tt.existing, testOffsets, now)
			if len(got) != len(tt.want) {
				t.Fatalf("offsets = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("offsets = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

type fakeChaseRepo struct {
	invoice  *entity.Invoice
	existing []entity.ChaseEntry
	inserted []*entity.ChaseEntry
	queued   []*entity.Outbound
	dup      bool // report every insert as a duplicate offset
}

func (f *fakeChaseRepo) GetInvoice(string) (*entity.Invoice, error) { return f.invoice, nil }

func (f *fakeChaseRepo) ListOverdueInvoices(time.Time) ([]entity.Invoice, error) {
	return []entity.Invoice{*f.invoice}, nil
}

func (f *fakeChaseRepo) ListChaseEntries(string) ([]entity.ChaseEntry, error) {
	return f.existing, nil
}

func (f *fakeChaseRepo) InsertChaseEntry(entry *entity.ChaseEntry) error {
	if f.dup {
		return entity.ErrDuplicateEvent
	}
	f.inserted = append(f.inserted, entry)
	return nil
}

func (f *fakeChaseRepo) EnqueueOutbound(item *entity.Outbound) error {
	f.queued = append(f.queued, item)
	return nil
}

func (f *fakeChaseRepo) InsertRenewalReminder(*entity.RenewalReminder) error { return nil }
func (f *fakeChaseRepo) InsertLead(*entity.Lead) error                       { return nil }

func testService(repo *fakeChaseRepo) *Service {
	return &Service{
		repo:    repo,
		offsets: testOffsets,
		hourUTC: 9,
		horizon: 90 * 24 * time.Hour,
		log:     slog.Default(),
	}
}

func TestChaseInvoiceSequenceNumbers(t *testing.T) {
	repo := &fakeChaseRepo{invoice: overdueInvoice(time.Now().UTC(), 20)}
	s := testService(repo)

	if err := s.chaseInvoice(repo.invoice, time.Now().UTC()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.inserted) != 3 {
		t.Fatalf("entries = %d, want 3 (offsets 3, 7, 14)", len(repo.inserted))
	}
	for i, entry := range repo.inserted {
		if entry.Seq != i+1 {
			t.Errorf("entry %d seq = %d, want %d", i, entry.Seq, i+1)
		}
	}
	if repo.inserted[0].OffsetDays != 3 || repo.inserted[2].OffsetDays != 14 {
		t.Errorf("offsets = [%d %d %d]", repo.inserted[0].OffsetDays,
			repo.inserted[1].OffsetDays, repo.inserted[2].OffsetDays)
	}
	if len(repo.queued) != 3 {
		t.Fatalf("queued reminders = %d, want 3", len(repo.queued))
	}
	if repo.queued[0].Channel != entity.ChannelSMS {
		t.Errorf("channel = %q, phone contact should route to sms", repo.queued[0].Channel)
	}
	if repo.queued[0].MsgType != entity.OutboundTypeReminder {
		t.Errorf("msg type = %q", repo.queued[0].MsgType)
	}
}

func TestChaseInvoiceSeqContinuesFromExisting(t *testing.T) {
	repo := &fakeChaseRepo{
		invoice: overdueInvoice(time.Now().UTC(), 20),
		existing: []entity.ChaseEntry{
			{InvoiceID: "inv-1", Seq: 1, OffsetDays: 3},
		},
	}
	s := testService(repo)

	if err := s.chaseInvoice(repo.invoice, time.Now().UTC()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.inserted) != 2 {
		t.Fatalf("entries = %d, want 2", len(repo.inserted))
	}
	if repo.inserted[0].Seq != 2 || repo.inserted[1].Seq != 3 {
		t.Errorf("seqs = [%d %d], want [2 3]", repo.inserted[0].Seq, repo.inserted[1].Seq)
	}
}

func TestChaseInvoiceDuplicateOffsetSkipsReminder(t *testing.T) {
	// A concurrent run already claimed the offset: no second reminder
	// may be queued for it.
	repo := &fakeChaseRepo{invoice: overdueInvoice(time.Now().UTC(), 3), dup: true}
	s := testService(repo)

	if err := s.chaseInvoice(repo.invoice, time.Now().UTC()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.queued) != 0 {
		t.Errorf("queued = %d, want 0 on duplicate offsets", len(repo.queued))
	}
}

func TestChaseRouteFallsBackToEmail(t *testing.T) {
	invoice := overdueInvoice(time.Now().UTC(), 3)
	invoice.Phone = ""
	channel, recipient := chaseRoute(invoice)
	if channel != entity.ChannelEmail || recipient != "jo@example.com" {
		t.Errorf("route = (%s, %s), want email", channel, recipient)
	}
}

func TestChaseInvoiceNoContactDetails(t *testing.T) {
	invoice := overdueInvoice(time.Now().UTC(), 3)
	invoice.Phone = ""
	invoice.Email = ""
	repo := &fakeChaseRepo{invoice: invoice}
	s := testService(repo)

	if err := s.chaseInvoice(invoice, time.Now().UTC()); err == nil {
		t.Fatal("expected error for invoice without contact details")
	}
}

func TestValidateOffsets(t *testing.T) {
	if err := validateOffsets([]int{3, 7, 14, 30}); err != nil {
		t.Errorf("valid offsets rejected: %v", err)
	}
	if err := validateOffsets(nil); err == nil {
		t.Error("empty offsets accepted")
	}
	if err := validateOffsets([]int{7, 3}); err == nil {
		t.Error("non-increasing offsets accepted")
	}
	if err := validateOffsets([]int{0, 3}); err == nil {
		t.Error("zero offset accepted")
	}
}

func TestNextRunAt(t *testing.T) {
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	next := nextRunAt(now, 9)
	if next.Day() != 10 || next.Hour() != 9 {
		t.Errorf("next = %v, want same day 09:00", next)
	}

	late := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	next = nextRunAt(late, 9)
	if next.Day() != 11 {
		t.Errorf("next = %v, want next day 09:00", next)
	}
}
