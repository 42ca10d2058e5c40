package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Webhook-Signature"

const maxBodySize = 1 << 20

// Payment handles payment-provider completion events. Verification
// runs over the exact bytes received before any parsing; a replayed
// event id acknowledges with 200 and does nothing.
func Payment(log *slog.Logger, payments Payments) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.webhook"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			logger.Error("read webhook body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Failed to read body"))
			return
		}

		if err = payments.VerifySignature(body, r.Header.Get(signatureHeader)); err != nil {
			logger.Warn("payment webhook rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid signature"))
			return
		}

		if err = payments.HandleWebhook(body); err != nil {
			if errors.Is(err, entity.ErrDuplicateEvent) {
				render.JSON(w, r, response.Ok(nil))
				return
			}
			logger.Error("payment webhook", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to process event"))
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
