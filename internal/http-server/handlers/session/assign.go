package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TradeGate/entity"
	"TradeGate/internal/lib/api/cont"
	"TradeGate/internal/lib/api/response"
	"TradeGate/internal/lib/sl"
)

type AssignRequest struct {
	Username string `json:"username,omitempty"`
}

// Assign claims a session for a staff member. With no body the caller
// claims it for themselves.
func Assign(log *slog.Logger, handler Core) http.HandlerFunc {
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

		var req AssignRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		username := req.Username
		if username == "" {
			username = staff.Username
		}

		id := chi.URLParam(r, "id")
		err := handler.AssignSession(id, username)
		if err != nil {
			if errors.Is(err, entity.ErrStaleState) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("Session is closed or already assigned"))
				return
			}
			logger.Error("assign session", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to assign session"))
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
