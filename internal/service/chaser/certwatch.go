package chaser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"TradeGate/entity"
	"TradeGate/internal/lib/sl"
	"TradeGate/internal/service/records"
)

// RunCertWatch scans the certificate registry for inspections falling
// due within the horizon and produces one lead and one reminder per
// certificate per window. The window key keeps re-runs quiet until the
// certificate is renewed and its date moves.
func (s *Service) RunCertWatch(ctx context.Context) {
	if s.certs == nil {
		return
	}

	before := time.Now().UTC().Add(s.horizon)
	certificates, err := s.certs.ListExpiringCertificates(before)
	if err != nil {
		if errors.Is(err, records.ErrNotConfigured) {
			s.log.Debug("certificate registry not configured, skipping watch")
			return
		}
		s.log.Error("list expiring certificates", sl.Err(err))
		return
	}

	for _, cert := range certificates {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.remindRenewal(&cert); err != nil {
			s.log.With(slog.String("certificate", cert.ID)).
				Error("certificate renewal reminder", sl.Err(err))
		}
	}
}

func (s *Service) remindRenewal(cert *entity.Certificate) error {
	channel, recipient := renewalRoute(cert)
	leadChannel := channel
	if leadChannel == "" {
		leadChannel = entity.ChannelSMS
	}

	lead := entity.NewLead(
		cert.CustomerName, cert.Phone, cert.Email, "",
		"certificate_renewal", entity.UrgencyRoutine, leadChannel, "",
	)

	reminder := &entity.RenewalReminder{
		WindowKey:     cert.RenewalWindowKey(),
		CertificateID: cert.ID,
		LeadID:        lead.ID,
		SentAt:        time.Now().UTC(),
	}

	// Claim the window first; losing to an earlier run means the
	// reminder already went out.
	err := s.repo.InsertRenewalReminder(reminder)
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateEvent) {
			return nil
		}
		return fmt.Errorf("record renewal window: %w", err)
	}

	if err = s.repo.InsertLead(lead); err != nil {
		return fmt.Errorf("insert renewal lead: %w", err)
	}

	if recipient == "" {
		s.log.With(slog.String("certificate", cert.ID)).
			Warn("certificate has no contact details, lead only")
		return nil
	}

	content := fmt.Sprintf(
		"Hi %s, your %s certificate is due for inspection on %s. "+
			"Reply to this message or give us a call to book your renewal visit.",
		cert.CustomerName, cert.CertType, cert.NextInspection.Format("2 January 2006"))

	item := entity.NewOutbound(recipient, channel, entity.OutboundTypeReminder, content, time.Time{})
	if err = s.repo.EnqueueOutbound(item); err != nil {
		return fmt.Errorf("queue renewal reminder: %w", err)
	}

	s.log.With(
		slog.String("certificate", cert.ID),
		slog.Time("inspection", cert.NextInspection),
	).Info("renewal reminder queued")
	return nil
}

func renewalRoute(cert *entity.Certificate) (entity.ChannelType, string) {
	if cert.Phone != "" {
		return entity.ChannelSMS, cert.Phone
	}
	if cert.Email != "" {
		return entity.ChannelEmail, cert.Email
	}
	return "", ""
}
