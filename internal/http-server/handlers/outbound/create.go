package outbound

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

type CreateRequest struct {
	Recipient    string    `json:"recipient" validate:"required"`
	Channel      string    `json:"channel" validate:"required,oneof=whatsapp sms email webchat"`
	MsgType      string    `json:"msg_type" validate:"omitempty,oneof=reply reminder confirmation"`
	Content      string    `json:"content" validate:"required"`
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// Create queues a staff-composed message, optionally scheduled for the
// future.
func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.outbound"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}
		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("recipient, channel and content are required"))
			return
		}

		item, err := handler.CreateOutbound(
			req.Recipient,
			entity.ChannelType(req.Channel),
			req.MsgType,
			req.Content,
			req.ScheduledFor,
		)
		if err != nil {
			logger.Error("create outbound", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to queue message"))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(item))
	}
}
