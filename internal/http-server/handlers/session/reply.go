package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/cont"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

type ReplyRequest struct {
	Content string `json:"content" validate:"required"`
}

// Reply appends a staff message to the session and queues it for
// delivery on the session's channel.
func Reply(log *slog.Logger, handler Core) http.HandlerFunc {
	validate := validator.New()

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

		var req ReplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}
		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("content is required"))
			return
		}

		id := chi.URLParam(r, "id")
		err := handler.SendStaffReply(id, staff.Username, req.Content)
		if err != nil {
			switch {
			case errors.Is(err, entity.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Session not found"))
			case errors.Is(err, entity.ErrSessionClosed):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("Session is closed"))
			default:
				logger.Error("send staff reply", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("Failed to send reply"))
			}
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
