package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger builds the root slog logger for the given environment.
// Local gets a human-readable text handler on stdout, dev and prod
// write JSON, prod additionally to a file in logDir.
func SetupLogger(env, logDir string) *slog.Logger {
	var lg *slog.Logger

	switch env {
	case envDev:
		lg = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		out := io.Writer(os.Stdout)
		logPath := filepath.Join(logDir, "tradegate.log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("cannot open log file %s: %v, falling back to stdout", logPath, err)
		} else {
			out = io.MultiWriter(os.Stdout, file)
		}
		lg = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		lg = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return lg
}

// Alerter delivers out-of-band operational alerts (admin Telegram chat).
type Alerter interface {
	SendAlert(msg string)
}

// AlertHandler mirrors records at or above the configured level to an
// Alerter while passing everything through to the wrapped handler.
type AlertHandler struct {
	next    slog.Handler
	alerter Alerter
	level   slog.Level
}

// SetupAlertHandler wraps the logger so error-level records also reach
// the alerter. A nil alerter returns the logger unchanged.
func SetupAlertHandler(lg *slog.Logger, alerter Alerter, level slog.Level) *slog.Logger {
	if alerter == nil {
		return lg
	}
	return slog.New(&AlertHandler{
		next:    lg.Handler(),
		alerter: alerter,
		level:   level,
	})
}

func (h *AlertHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AlertHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level {
		text := fmt.Sprintf("[%s] %s", r.Level.String(), r.Message)
		r.Attrs(func(a slog.Attr) bool {
			text += fmt.Sprintf("\n%s: %s", a.Key, a.Value.String())
			return true
		})
		// Alert delivery must never block or fail log processing.
		go h.alerter.SendAlert(text)
	}
	return h.next.Handle(ctx, r)
}

func (h *AlertHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AlertHandler{next: h.next.WithAttrs(attrs), alerter: h.alerter, level: h.level}
}

func (h *AlertHandler) WithGroup(name string) slog.Handler {
	return &AlertHandler{next: h.next.WithGroup(name), alerter: h.alerter, level: h.level}
}
