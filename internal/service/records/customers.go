package records

import (
	"fmt"

	"TradeGate/entity"
)

// FindCustomer looks a customer up by phone or email. Returns
// entity.ErrNotFound when no record matches, which is not a fault:
// most web chat senders are new enquiries.
func (s *Service) FindCustomer(phone, email string) (*entity.Customer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var customer entity.Customer

	resp, err := s.client.R().
		SetQueryParams(map[string]string{
			"phone": phone,
			"email": email,
		}).
		SetResult(&customer).
		Get("/customers/lookup")
	if err != nil {
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, entity.ErrNotFound
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return &customer, nil
}

func (s *Service) GetCustomerJobs(customerID string) ([]entity.Job, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var jobs []entity.Job

	resp, err := s.client.R().
		SetResult(&jobs).
		Get("/customers/" + customerID + "/jobs")
	if err != nil {
		return nil, fmt.Errorf("customer jobs: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return jobs, nil
}

func (s *Service) GetJob(jobID string) (*entity.Job, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var job entity.Job

	resp, err := s.client.R().
		SetResult(&job).
		Get("/jobs/" + jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, entity.ErrNotFound
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}

	return &job, nil
}
