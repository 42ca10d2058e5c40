package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// Close ends a session. The next message from the same sender opens a
// fresh one.
func Close(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.session"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		err := handler.CloseSession(id)
		if err != nil {
			if errors.Is(err, entity.ErrStaleState) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("Session already closed"))
				return
			}
			logger.Error("close session", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to close session"))
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
