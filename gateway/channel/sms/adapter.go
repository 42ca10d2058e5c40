package sms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"TradeGate/entity"
	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

// Adapter sends SMS through the Twilio Messaging API. Inbound traffic
// arrives on the Twilio webhook; HandleWebhook normalizes the form
// post into the shared inbound event stream.
type Adapter struct {
	log    *slog.Logger
	client *twilio.RestClient
	from   string
	events chan<- entity.InboundEvent
	status atomic.Value
}

func New(conf *config.Config, log *slog.Logger) *Adapter {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: conf.SMS.AccountSID,
		Password: conf.SMS.AuthToken,
	})
	a := &Adapter{
		log:    log.With(sl.Module("channel.sms")),
		client: client,
		from:   conf.SMS.FromNumber,
	}
	a.status.Store(entity.AdapterConfigured)
	return a
}

func (a *Adapter) Name() entity.ChannelType {
	return entity.ChannelSMS
}

func (a *Adapter) Status() entity.AdapterStatus {
	return a.status.Load().(entity.AdapterStatus)
}

func (a *Adapter) Start(_ context.Context, events chan<- entity.InboundEvent) error {
	a.events = events
	a.status.Store(entity.AdapterConnected)
	return nil
}

func (a *Adapter) Stop() {
	a.status.Store(entity.AdapterDisconnected)
}

func (a *Adapter) Send(_ context.Context, recipient, content string) error {
	if a.Status() != entity.AdapterConnected {
		return entity.ErrTransport
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(a.from)
	params.SetTo(recipient)
	params.SetBody(content)

	resp, err := a.client.Api.CreateMessage(params)
	if err != nil {
		a.status.Store(entity.AdapterError)
		return fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}

	a.status.Store(entity.AdapterConnected)
	if resp.Sid != nil {
		a.log.With(
			slog.String("sid", *resp.Sid),
			slog.String("to", recipient),
		).Debug("sms sent")
	}
	return nil
}

// HandleWebhook accepts Twilio's inbound SMS form post.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if a.events == nil {
		a.log.Warn("inbound sms dropped, adapter not started")
		w.WriteHeader(http.StatusOK)
		return
	}

	a.events <- entity.InboundEvent{
		Channel:    entity.ChannelSMS,
		SenderID:   from,
		Content:    body,
		ReceivedAt: time.Now().UTC(),
	}

	// Twilio expects TwiML; an empty response suppresses the auto-reply.
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}
