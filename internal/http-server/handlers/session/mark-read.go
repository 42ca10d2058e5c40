package session

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/internal/lib/api/cont"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// MarkRead records that the caller has read the session's inbound
// messages.
func MarkRead(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.session"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		staff := cont.GetStaff(r.Context())
		if staff == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Unauthorized"))
			return
		}

		id := chi.URLParam(r, "id")
		if err := handler.HandleMarkRead(staff.Username, id); err != nil {
			logger.Error("mark read", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to mark read"))
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
