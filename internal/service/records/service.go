package records

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

// ErrNotConfigured is returned by every call when the records API has
// no base URL. Callers get a clean error instead of a nil client.
var ErrNotConfigured = errors.New("records api not configured")

// Service is the HTTP client for the business-record collaborators:
// the customer/job/property store, the certificate registry and the
// calendar/booking store. The gateway consumes these, it does not own
// them.
type Service struct {
	client     *resty.Client
	configured bool
	log        *slog.Logger
}

// NewService always returns a usable *Service. Without a base URL it
// runs degraded: Configured reports false and every call returns
// ErrNotConfigured. Returning nil here would slip past interface nil
// checks in the consumers.
func NewService(conf *config.Config, logger *slog.Logger) *Service {
	s := &Service{log: logger.With(sl.Module("records"))}
	if conf.Records.BaseURL == "" {
		return s
	}

	s.client = resty.New().
		SetBaseURL(conf.Records.BaseURL).
		SetAuthToken(conf.Records.ApiKey).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	s.configured = true
	return s
}

func (s *Service) Configured() bool {
	return s.configured
}

// ready gates every API method so an unconfigured service fails with a
// sentinel rather than dereferencing a nil client.
func (s *Service) ready() error {
	if !s.configured {
		return ErrNotConfigured
	}
	return nil
}

func statusError(resp *resty.Response) error {
	return fmt.Errorf("records api %s: status %d", resp.Request.URL, resp.StatusCode())
}
