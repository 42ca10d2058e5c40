package analytics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// Summary returns per-day activity counts for the last ?days= days
// (default 30).
func Summary(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.analytics"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		days := 30
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("days must be a positive integer"))
				return
			}
			days = parsed
		}

		summary, err := handler.GetAnalyticsSummary(time.Now().UTC().AddDate(0, 0, -days))
		if err != nil {
			logger.Error("analytics summary", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to build summary"))
			return
		}

		render.JSON(w, r, response.Ok(summary))
	}
}

// Status reports the connection state of every channel adapter.
func Status(_ *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.ChannelStatuses()))
	}
}
