package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"TradeGate/entity"
	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

// Adapter ingests email by polling the Gmail inbox and sends replies
// through the same account. Polling feeds the shared inbound event
// stream, so the router treats email no differently from push
// transports.
type Adapter struct {
	log      *slog.Logger
	address  string
	credFile string
	tokFile  string
	interval time.Duration
	service  *gmail.Service
	cancel   context.CancelFunc
	status   atomic.Value
}

var addrRe = regexp.MustCompile(`<([^>]+)>`)

func New(conf *config.Config, log *slog.Logger) *Adapter {
	a := &Adapter{
		log:      log.With(sl.Module("channel.email")),
		address:  conf.Email.Address,
		credFile: conf.Email.CredentialsFile,
		tokFile:  conf.Email.TokenFile,
		interval: time.Duration(conf.Email.PollSec) * time.Second,
	}
	a.status.Store(entity.AdapterConfigured)
	return a
}

func (a *Adapter) Name() entity.ChannelType {
	return entity.ChannelEmail
}

func (a *Adapter) Status() entity.AdapterStatus {
	return a.status.Load().(entity.AdapterStatus)
}

func (a *Adapter) Start(ctx context.Context, events chan<- entity.InboundEvent) error {
	srv, err := a.buildService(ctx)
	if err != nil {
		a.status.Store(entity.AdapterError)
		return fmt.Errorf("gmail service: %w", err)
	}
	a.service = srv

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.status.Store(entity.AdapterConnected)

	go a.pollLoop(pollCtx, events)
	return nil
}

func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.status.Store(entity.AdapterDisconnected)
}

func (a *Adapter) buildService(ctx context.Context) (*gmail.Service, error) {
	creds, err := os.ReadFile(a.credFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	oauthConf, err := google.ConfigFromJSON(creds, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tokBytes, err := os.ReadFile(a.tokFile)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokBytes, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	client := oauthConf.Client(ctx, &token)
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

func (a *Adapter) pollLoop(ctx context.Context, events chan<- entity.InboundEvent) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.pollOnce(events); err != nil {
				a.status.Store(entity.AdapterError)
				a.log.Error("gmail poll", sl.Err(err))
				continue
			}
			a.status.Store(entity.AdapterConnected)
		}
	}
}

func (a *Adapter) pollOnce(events chan<- entity.InboundEvent) error {
	list, err := a.service.Users.Messages.List("me").Q("is:unread in:inbox").MaxResults(20).Do()
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	for _, ref := range list.Messages {
		msg, err := a.service.Users.Messages.Get("me", ref.Id).Format("full").Do()
		if err != nil {
			a.log.With(slog.String("id", ref.Id)).Error("get message", sl.Err(err))
			continue
		}

		sender, name := parseFrom(headerValue(msg, "From"))
		if sender == "" || sender == a.address {
			continue
		}

		events <- entity.InboundEvent{
			Channel:    entity.ChannelEmail,
			SenderID:   sender,
			SenderName: name,
			Content:    extractBody(msg),
			ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
		}

		// Marking read is the poll cursor: an unread message left
		// behind would be re-ingested next tick.
		_, err = a.service.Users.Messages.Modify("me", ref.Id, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Do()
		if err != nil {
			a.log.With(slog.String("id", ref.Id)).Error("mark message read", sl.Err(err))
		}
	}

	return nil
}

func (a *Adapter) Send(_ context.Context, recipient, content string) error {
	if a.Status() != entity.AdapterConnected || a.service == nil {
		return entity.ErrTransport
	}

	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Re: your enquiry\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		a.address, recipient, content)

	_, err := a.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}).Do()
	if err != nil {
		a.status.Store(entity.AdapterError)
		return fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	return nil
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// parseFrom splits `Display Name <addr>` into its parts.
func parseFrom(from string) (address, name string) {
	match := addrRe.FindStringSubmatch(from)
	if match == nil {
		return from, ""
	}
	name = from[:len(from)-len(match[0])]
	for len(name) > 0 && (name[len(name)-1] == ' ' || name[len(name)-1] == '"') {
		name = name[:len(name)-1]
	}
	for len(name) > 0 && name[0] == '"' {
		name = name[1:]
	}
	return match[1], name
}

func extractBody(msg *gmail.Message) string {
	if msg.Payload != nil {
		if body := decodePart(msg.Payload); body != "" {
			return body
		}
		for _, part := range msg.Payload.Parts {
			if part.MimeType == "text/plain" {
				if body := decodePart(part); body != "" {
					return body
				}
			}
		}
	}
	return msg.Snippet
}

func decodePart(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		return ""
	}
	return string(data)
}
