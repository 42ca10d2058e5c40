package outbound

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
	ClaimDueOutbound(channel entity.ChannelType, now time.Time) (*entity.Outbound, error)
	MarkOutboundSent(id string) error
	ReleaseOutbound(id string, attempts int, lastError string, nextAttempt time.Time) error
	MarkOutboundFailed(id string, attempts int, lastError string) error
	RequeueStuckSending() (int64, error)
}

// Sender is the slice of the channel manager the workers need.
type Sender interface {
	Send(ctx context.Context, channel entity.ChannelType, recipient, content string) error
	Statuses() map[entity.ChannelType]entity.AdapterStatus
}

type Alerter interface {
	SendAlert(text string)
}

// Service drains the durable outbound queue, one worker per channel so
// a slow transport never blocks the others.
type Service struct {
	repo        Repository
	sender      Sender
	alerter     Alerter
	poll        time.Duration
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger
}

func New(conf *config.Config, repo Repository, sender Sender, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		sender:      sender,
		poll:        time.Duration(conf.Gateway.OutboundPollSec) * time.Second,
		maxAttempts: conf.Gateway.MaxSendAttempts,
		backoff:     time.Duration(conf.Gateway.RetryBackoffSec) * time.Second,
		log:         logger.With(sl.Module("outbound")),
	}
}

func (s *Service) SetAlerter(alerter Alerter) {
	s.alerter = alerter
}

// Start recovers items stranded in `sending` by a previous crash, then
// launches one worker per channel.
func (s *Service) Start(ctx context.Context) {
	requeued, err := s.repo.RequeueStuckSending()
	if err != nil {
		s.log.Error("requeue stuck outbound", sl.Err(err))
	} else if requeued > 0 {
		s.log.With(slog.Int64("requeued", requeued)).Warn("recovered stuck outbound items")
	}

	for _, channel := range []entity.ChannelType{
		entity.ChannelWhatsApp, entity.ChannelSMS, entity.ChannelEmail, entity.ChannelWebChat,
	} {
		go s.worker(ctx, channel)
	}
}

func (s *Service) worker(ctx context.Context, channel entity.ChannelType) {
	log := s.log.With(slog.String("channel", string(channel)))
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.channelReady(channel) {
				continue
			}
			// Drain everything due this tick, in order.
			for {
				done, err := s.deliverNext(ctx, channel)
				if err != nil {
					log.Error("deliver outbound", sl.Err(err))
					break
				}
				if done {
					break
				}
			}
		}
	}
}

// channelReady keeps pending items untouched while an adapter is down;
// they go out in order once it reconnects.
func (s *Service) channelReady(channel entity.ChannelType) bool {
	status, ok := s.sender.Statuses()[channel]
	if !ok {
		return false
	}
	return status == entity.AdapterConnected || status == entity.AdapterConfigured
}

// deliverNext claims and sends one due item. Returns done=true when the
// queue has nothing due for this channel.
func (s *Service) deliverNext(ctx context.Context, channel entity.ChannelType) (bool, error) {
	item, err := s.repo.ClaimDueOutbound(channel, time.Now().UTC())
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return true, nil
		}
		return true, fmt.Errorf("claim outbound: %w", err)
	}

	sendErr := s.sender.Send(ctx, channel, item.Recipient, item.Content)
	if sendErr == nil {
		if err = s.repo.MarkOutboundSent(item.ID); err != nil {
			return false, fmt.Errorf("mark sent: %w", err)
		}
		return false, nil
	}

	attempts := item.Attempts + 1
	if attempts >= s.maxAttempts {
		if err = s.repo.MarkOutboundFailed(item.ID, attempts, sendErr.Error()); err != nil {
			return false, fmt.Errorf("mark failed: %w", err)
		}
		s.log.With(
			slog.String("id", item.ID),
			slog.String("channel", string(channel)),
			slog.Int("attempts", attempts),
		).Error("outbound delivery abandoned", sl.Err(sendErr))
		if s.alerter != nil {
			s.alerter.SendAlert(fmt.Sprintf(
				"Outbound delivery failed\nChannel: %s\nRecipient: %s\nAttempts: %d\nError: %v",
				channel, item.Recipient, attempts, sendErr,
			))
		}
		return false, nil
	}

	next := time.Now().UTC().Add(s.retryDelay(attempts))
	if err = s.repo.ReleaseOutbound(item.ID, attempts, sendErr.Error(), next); err != nil {
		return false, fmt.Errorf("release outbound: %w", err)
	}
	s.log.With(
		slog.String("id", item.ID),
		slog.Int("attempts", attempts),
		slog.Time("next", next),
	).Warn("outbound delivery retry scheduled", sl.Err(sendErr))
	return false, nil
}

// retryDelay doubles the base per prior attempt: base, 2x, 4x, ...
func (s *Service) retryDelay(attempts int) time.Duration {
	delay := s.backoff
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
