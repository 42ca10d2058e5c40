package main

import (
	"context"
	"flag"
	"log/slog"

	"TradeGate/ai/gpt"
	"TradeGate/bot"
	"TradeGate/gateway/channel"
	"TradeGate/gateway/channel/email"
	"TradeGate/gateway/channel/sms"
	"TradeGate/gateway/channel/webchat"
	"TradeGate/gateway/channel/whatsapp"
	"TradeGate/impl/core"
	"TradeGate/internal/config"
	repository "TradeGate/internal/database"
	"TradeGate/internal/http-server/api"
	"TradeGate/internal/lib/logger"
	"TradeGate/internal/lib/sl"
	"TradeGate/internal/service/chaser"
	"TradeGate/internal/service/outbound"
	"TradeGate/internal/service/payments"
	"TradeGate/internal/service/records"
	"TradeGate/internal/ws"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupAlertHandler(lg, tgBot, slog.LevelError)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")

			go func() {
				if err := tgBot.Start(); err != nil {
					lg.Error("telegram bot error", sl.Err(err))
				}
			}()
		}
	}

	lg.Info("starting tradegate", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	ctx := context.Background()

	handler := core.New(lg, conf.Gateway.IdleCloseHours)

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.With(sl.Err(err)).Error("mongo client")
	}
	if db == nil {
		lg.Error("mongo is required, check config")
		return
	}
	if err = db.EnsureIndexes(); err != nil {
		lg.With(sl.Err(err)).Error("ensure indexes")
	}
	handler.SetRepository(db)
	handler.SetInvoiceStore(db)
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("user", conf.Mongo.User),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	recordsService := records.NewService(conf, lg)
	if !recordsService.Configured() {
		lg.Warn("records api base url not set, customer/calendar/certificate lookups disabled")
	}
	handler.SetCertRegistry(recordsService)

	paymentService := payments.New(conf, db, lg)
	if tgBot != nil {
		paymentService.SetAlerter(tgBot)
		handler.SetAlerter(tgBot)
	}

	dispatcher := gpt.NewDispatcher(conf, lg)
	dispatcher.SetRecordsService(recordsService)
	dispatcher.SetRepository(db)
	dispatcher.SetPaymentService(paymentService)
	dispatcher.SetQueue(db)
	handler.SetAssistant(dispatcher)
	lg.With(
		sl.Secret("openai_key", conf.OpenAI.ApiKey),
		slog.String("model", conf.OpenAI.Model),
	).Info("assistant dispatcher initialized")

	manager := channel.NewManager(lg)
	var waAdapter *whatsapp.Adapter
	var smsAdapter *sms.Adapter
	if conf.WhatsApp.Enabled {
		waAdapter = whatsapp.New(conf, lg)
		manager.Register(waAdapter)
	}
	if conf.SMS.Enabled {
		smsAdapter = sms.New(conf, lg)
		manager.Register(smsAdapter)
	}
	if conf.Email.Enabled {
		manager.Register(email.New(conf, lg))
	}
	chatAdapter := webchat.New(lg)
	manager.Register(chatAdapter)
	manager.StartAll(ctx)
	handler.SetChannels(manager)

	hub := ws.NewHub(lg)
	hub.SetHandler(handler)
	go hub.Run()
	handler.SetBroadcaster(hub)

	scheduler, err := chaser.New(conf, db, recordsService, lg)
	if err != nil {
		lg.With(sl.Err(err)).Error("revenue scheduler")
		return
	}
	scheduler.Start(ctx)
	handler.SetScheduler(scheduler)

	workers := outbound.New(conf, db, manager, lg)
	if tgBot != nil {
		workers.SetAlerter(tgBot)
	}
	workers.Start(ctx)

	go handler.Run(ctx, manager.Events())

	hooks := api.Webhooks{
		Payments: paymentService,
		WhatsApp: waAdapter,
		SMS:      smsAdapter,
		WebChat:  chatAdapter,
	}

	// *** blocking start with http server ***
	err = api.New(conf, lg, handler, hub, hooks)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Error("service stopped")
}
