package records

import (
	"fmt"
	"time"

	"TradeGate/entity"
)

// ListExpiringCertificates queries the certificate registry for
// installations whose next-inspection date falls before the horizon.
func (s *Service) ListExpiringCertificates(before time.Time) ([]entity.Certificate, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var certs []entity.Certificate

	resp, err := s.client.R().
		SetQueryParam("before", before.UTC().Format("2006-01-02")).
		SetResult(&certs).
		Get("/certificates/expiring")
	if err != nil {
		return nil, fmt.Errorf("expiring certificates: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return certs, nil
}

// GetCustomerCertificates returns the certificates held for a customer.
func (s *Service) GetCustomerCertificates(customerID string) ([]entity.Certificate, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var certs []entity.Certificate

	resp, err := s.client.R().
		SetResult(&certs).
		Get("/customers/" + customerID + "/certificates")
	if err != nil {
		return nil, fmt.Errorf("customer certificates: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return certs, nil
}
