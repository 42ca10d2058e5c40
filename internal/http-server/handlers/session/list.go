package session

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// List returns session summaries, optionally filtered by ?status= and
// ?channel=.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.session"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		status := entity.SessionStatus(r.URL.Query().Get("status"))
		channel := entity.ChannelType(r.URL.Query().Get("channel"))
		if channel != "" && !channel.Valid() {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown channel"))
			return
		}

		summaries, err := handler.GetSessions(status, channel)
		if err != nil {
			logger.Error("list sessions", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list sessions"))
			return
		}

		render.JSON(w, r, response.Ok(summaries))
	}
}
