package certificate

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

// Expiring lists certificates whose next inspection falls within
// ?days= (default 90).
func Expiring(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.certificate"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("days must be a positive integer"))
				return
			}
			days = parsed
		}

		certificates, err := handler.GetExpiringCertificates(days)
		if err != nil {
			logger.Error("list expiring certificates", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list certificates"))
			return
		}

		render.JSON(w, r, response.Ok(certificates))
	}
}
