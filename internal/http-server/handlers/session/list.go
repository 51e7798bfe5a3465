package session

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"FacilityBot/internal/http-server/handlers/request"
	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.session"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessions, err := handler.ListSessions(r.Context(), request.Limit(r))
		if err != nil {
			logger.Error("failed to list sessions", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to list sessions: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok(sessions))
	}
}

// Get returns the active session of a phone.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := chi.URLParam(r, "phone")
		session, err := handler.GetSession(r.Context(), phone)
		if err != nil {
			log.With(sl.Module("http.handlers.session")).Error("failed to get session", sl.Phone(phone), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to get session: %v", err)))
			return
		}
		if session == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("No active session"))
			return
		}
		render.JSON(w, r, response.Ok(session))
	}
}
