package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/gateway/channel/sms"
	"TradeGate/gateway/channel/webchat"
	"TradeGate/gateway/channel/whatsapp"
	"TradeGate/internal/config"
	"TradeGate/internal/http-server/handlers/analytics"
	"TradeGate/internal/http-server/handlers/certificate"
	apierrors "TradeGate/internal/http-server/handlers/errors"
	"TradeGate/internal/http-server/handlers/invoice"
	"TradeGate/internal/http-server/handlers/key"
	"TradeGate/internal/http-server/handlers/lead"
	"TradeGate/internal/http-server/handlers/outbound"
	"TradeGate/internal/http-server/handlers/session"
	"TradeGate/internal/http-server/handlers/webhook"
	"TradeGate/internal/http-server/middleware/authenticate"
	"TradeGate/internal/http-server/middleware/timeout"
	"TradeGate/internal/lib/sl"
	"TradeGate/internal/ws"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	session.Core
	lead.Core
	invoice.Core
	certificate.Core
	outbound.Core
	analytics.Core
	key.Core
}

// Webhooks groups the provider-facing endpoints that authenticate
// themselves (signatures, verify tokens) instead of bearer auth.
type Webhooks struct {
	Payments webhook.Payments
	WhatsApp *whatsapp.Adapter
	SMS      *sms.Adapter
	WebChat  *webchat.Adapter
}

// New builds the router and serves it. Blocks until the listener dies.
func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub, hooks Webhooks) error {
	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(30))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(apierrors.NotFound(log))
	router.MethodNotAllowed(apierrors.NotAllowed(log))

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(authenticate.New(log, handler))

		v1.Route("/sessions", func(r chi.Router) {
			r.Get("/", session.List(log, handler))
			r.Get("/{id}", session.Get(log, handler))
			r.Post("/{id}/reply", session.Reply(log, handler))
			r.Post("/{id}/assign", session.Assign(log, handler))
			r.Post("/{id}/close", session.Close(log, handler))
			r.Post("/{id}/read", session.MarkRead(log, handler))
		})
		v1.Route("/leads", func(r chi.Router) {
			r.Get("/", lead.List(log, handler))
			r.Post("/{id}/status", lead.UpdateStatus(log, handler))
		})
		v1.Route("/invoices", func(r chi.Router) {
			r.Get("/overdue", invoice.Overdue(log, handler))
			r.Get("/{id}/chase", invoice.GetChase(log, handler))
			r.Post("/{id}/chase", invoice.Chase(log, handler))
		})
		v1.Route("/certificates", func(r chi.Router) {
			r.Get("/expiring", certificate.Expiring(log, handler))
		})
		v1.Route("/outbound", func(r chi.Router) {
			r.Get("/", outbound.List(log, handler))
			r.Post("/", outbound.Create(log, handler))
		})
		v1.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", analytics.Summary(log, handler))
			r.Get("/status", analytics.Status(log, handler))
		})
		v1.Route("/key", func(r chi.Router) {
			r.Post("/new", key.Generate(log, handler))
		})
	})

	if hooks.Payments != nil {
		router.Post("/webhook/payment", webhook.Payment(log, hooks.Payments))
	}
	if hooks.WhatsApp != nil {
		router.Get("/webhook/whatsapp", hooks.WhatsApp.HandleVerification)
		router.Post("/webhook/whatsapp", hooks.WhatsApp.HandleWebhook)
	}
	if hooks.SMS != nil {
		router.Post("/webhook/sms", hooks.SMS.HandleWebhook)
	}
	if hooks.WebChat != nil {
		router.Get("/chat", hooks.WebChat.ServeVisitor)
	}

	// Staff live socket; token arrives as a query parameter because
	// browsers cannot set headers on websocket upgrades.
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, handler, log, w, r)
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  router,
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
