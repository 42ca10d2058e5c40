package invoice

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

type ChaseResponse struct {
	Invoice *entity.Invoice     `json:"invoice"`
	Entries []entity.ChaseEntry `json:"entries"`
}

// GetChase returns an invoice with its reminder history.
func GetChase(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.invoice"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		invoice, entries, err := handler.GetInvoiceChase(id)
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Invoice not found"))
				return
			}
			logger.Error("get invoice chase", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to get invoice"))
			return
		}

		render.JSON(w, r, response.Ok(ChaseResponse{Invoice: invoice, Entries: entries}))
	}
}

// Chase triggers the reminder sequence for one invoice immediately.
// Already-sent offsets stay sent.
func Chase(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.invoice"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if err := handler.ChaseInvoice(id); err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Invoice not found"))
				return
			}
			logger.Error("chase invoice", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to chase invoice"))
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
