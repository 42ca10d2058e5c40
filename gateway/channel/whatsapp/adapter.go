package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"TradeGate/entity"
	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

const graphAPIURL = "https://graph.facebook.com/v21.0"

// Adapter sends and receives WhatsApp messages through the Meta Graph
// API. Inbound traffic arrives as webhooks, so Start only wires the
// event channel; HandleWebhook does the receiving.
type Adapter struct {
	log           *slog.Logger
	client        *resty.Client
	verifyToken   string
	appSecret     string
	phoneNumberID string
	events        chan<- entity.InboundEvent
	status        atomic.Value
}

func New(conf *config.Config, log *slog.Logger) *Adapter {
	a := &Adapter{
		log: log.With(sl.Module("channel.whatsapp")),
		client: resty.New().
			SetBaseURL(graphAPIURL).
			SetAuthToken(conf.WhatsApp.AccessToken).
			SetTimeout(15 * time.Second),
		verifyToken:   conf.WhatsApp.VerifyToken,
		appSecret:     conf.WhatsApp.AppSecret,
		phoneNumberID: conf.WhatsApp.PhoneNumberID,
	}
	a.status.Store(entity.AdapterConfigured)
	return a
}

func (a *Adapter) Name() entity.ChannelType {
	return entity.ChannelWhatsApp
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

type sendMessageRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

func (a *Adapter) Send(ctx context.Context, recipient, content string) error {
	if a.Status() != entity.AdapterConnected {
		return entity.ErrTransport
	}

	reqBody := sendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient,
		Type:             "text",
	}
	reqBody.Text.Body = content

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		Post("/" + a.phoneNumberID + "/messages")
	if err != nil {
		a.status.Store(entity.AdapterError)
		return fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	if resp.IsError() {
		a.log.With(
			slog.Int("status", resp.StatusCode()),
			slog.String("body", string(resp.Body())),
		).Warn("graph api send rejected")
		return fmt.Errorf("%w: graph api status %d", entity.ErrTransport, resp.StatusCode())
	}

	a.status.Store(entity.AdapterConnected)
	return nil
}

// webhookPayload mirrors the Graph API webhook envelope.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
				} `json:"messages"`
			} `json:"value"`
			Field string `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

// HandleVerification answers the Graph API webhook subscription
// challenge.
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == a.verifyToken {
		a.log.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	a.log.Warn("webhook verification failed",
		slog.String("mode", mode),
		slog.Bool("token_match", token == a.verifyToken),
	)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleWebhook verifies the signature over the raw body and pushes
// any text messages into the inbound event stream.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.log.Error("failed to read request body", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if a.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !a.verifySignature(body, signature) {
			a.log.Warn("invalid webhook signature")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		a.log.Error("failed to parse webhook payload", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string)
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				ts := time.Now().UTC()
				if unix, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					ts = time.Unix(unix, 0).UTC()
				}
				a.deliver(entity.InboundEvent{
					Channel:    entity.ChannelWhatsApp,
					SenderID:   msg.From,
					SenderName: names[msg.From],
					Content:    msg.Text.Body,
					ReceivedAt: ts,
				})
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (a *Adapter) deliver(ev entity.InboundEvent) {
	if a.events == nil {
		a.log.Warn("inbound event dropped, adapter not started")
		return
	}
	a.events <- ev
}

func (a *Adapter) verifySignature(body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}
