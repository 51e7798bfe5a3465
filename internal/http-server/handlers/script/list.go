package script

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.script"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		scripts, err := handler.ListScripts(r.Context())
		if err != nil {
			logger.Error("failed to list scripts", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to list scripts: %v", err)))
			return
		}

		logger.Debug("scripts listed", slog.Int("count", len(scripts)))
		render.JSON(w, r, response.Ok(scripts))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.script"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		script, err := handler.GetScript(r.Context(), id)
		if err != nil {
			logger.Error("failed to get script", slog.String("script", id), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to get script: %v", err)))
			return
		}
		if script == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Script not found"))
			return
		}

		render.JSON(w, r, response.Ok(script))
	}
}
