package chaser

import (
	"context"
	"testing"
	"time"

	"TradeGate/entity"
	"TradeGate/internal/service/records"
)

type fakeCertRepo struct {
	fakeChaseRepo
	reminders map[string]*entity.RenewalReminder
	leads     []*entity.Lead
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{reminders: make(map[string]*entity.RenewalReminder)}
}

func (f *fakeCertRepo) InsertRenewalReminder(reminder *entity.RenewalReminder) error {
	if _, ok := f.reminders[reminder.WindowKey]; ok {
		return entity.ErrDuplicateEvent
	}
	f.reminders[reminder.WindowKey] = reminder
	return nil
}

func (f *fakeCertRepo) InsertLead(lead *entity.Lead) error {
	f.leads = append(f.leads, lead)
	return nil
}

type fakeCertRegistry struct {
	certs   []entity.Certificate
	listErr error
}

func (f *fakeCertRegistry) ListExpiringCertificates(time.Time) ([]entity.Certificate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.certs, nil
}

func expiringCert() entity.Certificate {
	return entity.Certificate{
		ID:             "cert-1",
		CustomerID:     "cust-1",
		CustomerName:   "Sam Holt",
		Phone:          "07700900123",
		Email:          "sam@example.com",
		CertType:       "CP12",
		NextInspection: time.Now().UTC().AddDate(0, 0, 45),
	}
}

func TestRunCertWatchQueuesLeadAndReminder(t *testing.T) {
	repo := newFakeCertRepo()
	registry := &fakeCertRegistry{certs: []entity.Certificate{expiringCert()}}
	s := testService(&repo.fakeChaseRepo)
	s.repo = repo
	s.certs = registry

	s.RunCertWatch(context.Background())

	if len(repo.leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(repo.leads))
	}
	lead := repo.leads[0]
	if lead.ServiceType != "certificate_renewal" {
		t.Errorf("service type = %q", lead.ServiceType)
	}
	if lead.Channel != entity.ChannelSMS {
		t.Errorf("lead channel = %q, phone contact should route to sms", lead.Channel)
	}
	if len(repo.queued) != 1 {
		t.Fatalf("queued = %d, want 1 reminder", len(repo.queued))
	}
	if repo.queued[0].Recipient != "07700900123" {
		t.Errorf("recipient = %q", repo.queued[0].Recipient)
	}
	if len(repo.reminders) != 1 {
		t.Fatalf("windows claimed = %d, want 1", len(repo.reminders))
	}
}

func TestRunCertWatchWindowIsRemindedOnce(t *testing.T) {
	repo := newFakeCertRepo()
	registry := &fakeCertRegistry{certs: []entity.Certificate{expiringCert()}}
	s := testService(&repo.fakeChaseRepo)
	s.repo = repo
	s.certs = registry

	s.RunCertWatch(context.Background())
	s.RunCertWatch(context.Background())

	if len(repo.leads) != 1 {
		t.Errorf("leads = %d, want 1 across repeated runs", len(repo.leads))
	}
	if len(repo.queued) != 1 {
		t.Errorf("queued = %d, want 1 across repeated runs", len(repo.queued))
	}
}

func TestRunCertWatchRenewedDateOpensNewWindow(t *testing.T) {
	repo := newFakeCertRepo()
	cert := expiringCert()
	registry := &fakeCertRegistry{certs: []entity.Certificate{cert}}
	s := testService(&repo.fakeChaseRepo)
	s.repo = repo
	s.certs = registry

	s.RunCertWatch(context.Background())

	// Renewal moves the inspection date, which mints a fresh window key.
	registry.certs[0].NextInspection = cert.NextInspection.AddDate(1, 0, 0)
	s.RunCertWatch(context.Background())

	if len(repo.reminders) != 2 {
		t.Errorf("windows claimed = %d, want 2 after renewal", len(repo.reminders))
	}
}

func TestRunCertWatchUnconfiguredRegistryIsQuiet(t *testing.T) {
	repo := newFakeCertRepo()
	registry := &fakeCertRegistry{listErr: records.ErrNotConfigured}
	s := testService(&repo.fakeChaseRepo)
	s.repo = repo
	s.certs = registry

	// Must return without producing anything; a registry left
	// unconfigured in config is not a fault.
	s.RunCertWatch(context.Background())

	if len(repo.leads) != 0 || len(repo.queued) != 0 {
		t.Errorf("leads = %d, queued = %d, want none", len(repo.leads), len(repo.queued))
	}
}

func TestRunCertWatchNoContactProducesLeadOnly(t *testing.T) {
	repo := newFakeCertRepo()
	cert := expiringCert()
	cert.Phone = ""
	cert.Email = ""
	registry := &fakeCertRegistry{certs: []entity.Certificate{cert}}
	s := testService(&repo.fakeChaseRepo)
	s.repo = repo
	s.certs = registry

	s.RunCertWatch(context.Background())

	if len(repo.leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(repo.leads))
	}
	if len(repo.queued) != 0 {
		t.Errorf("queued = %d, want 0 without contact details", len(repo.queued))
	}
}
