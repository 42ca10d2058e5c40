package invoice

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// Overdue returns every invoice still owed money past its due date.
func Overdue(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.invoice"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		invoices, err := handler.GetOverdueInvoices()
		if err != nil {
			logger.Error("list overdue invoices", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list overdue invoices"))
			return
		}

		render.JSON(w, r, response.Ok(invoices))
	}
}
