package lead

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
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

type StatusRequest struct {
	Status entity.LeadStatus `json:"status" validate:"required,oneof=new contacted qualified converted lost"`
}

// UpdateStatus moves a lead through its pipeline. Backward moves are
// rejected with 409.
func UpdateStatus(log *slog.Logger, handler Core) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.lead"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}
		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Unknown lead status"))
			return
		}

		id := chi.URLParam(r, "id")
		err := handler.UpdateLeadStatus(id, req.Status)
		if err != nil {
			switch {
			case errors.Is(err, entity.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Lead not found"))
			case errors.Is(err, entity.ErrInvalidTransition):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("Invalid status transition"))
			case errors.Is(err, entity.ErrStaleState):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("Lead changed concurrently, retry"))
			default:
				logger.Error("update lead status", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("Failed to update lead"))
			}
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
