package outbound

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// List returns queue items, optionally filtered by ?status=.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.outbound"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		status := entity.OutboundStatus(r.URL.Query().Get("status"))

		items, err := handler.GetOutbound(status)
		if err != nil {
			logger.Error("list outbound", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list outbound messages"))
			return
		}

		render.JSON(w, r, response.Ok(items))
	}
}
