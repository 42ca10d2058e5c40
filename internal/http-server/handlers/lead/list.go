package lead

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// List returns leads, optionally filtered by ?status= and ?channel=.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.lead"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		status := entity.LeadStatus(r.URL.Query().Get("status"))
		channel := entity.ChannelType(r.URL.Query().Get("channel"))

		leads, err := handler.GetLeads(status, channel)
		if err != nil {
			logger.Error("list leads", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list leads"))
			return
		}

		render.JSON(w, r, response.Ok(leads))
	}
}
