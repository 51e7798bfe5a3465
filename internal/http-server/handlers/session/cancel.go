package session

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"FacilityBot/internal/lib/api/cont"
	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

type CancelResponse struct {
	Phone     string `json:"phone"`
	Cancelled bool   `json:"cancelled"`
}

func Cancel(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.session"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		if user := cont.GetUser(r.Context()); user != nil {
			logger = logger.With(slog.String("user", user.Username))
		}

		phone := chi.URLParam(r, "phone")
		cancelled, err := handler.CancelSession(r.Context(), phone)
		if err != nil {
			logger.Error("failed to cancel session", sl.Phone(phone), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to cancel session: %v", err)))
			return
		}

		logger.Info("session cancel requested", sl.Phone(phone), slog.Bool("cancelled", cancelled))
		render.JSON(w, r, response.Ok(CancelResponse{Phone: phone, Cancelled: cancelled}))
	}
}
