package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"FacilityBot/bot/chat"
	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

type SaveResponse struct {
	ScriptID string   `json:"script_id"`
	Defects  []string `json:"defects,omitempty"`
}

// Save stores a script definition. Structural errors are rejected; dangling
// references are accepted and reported back as defects.
func Save(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.script"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var script chat.Script
		if err := json.NewDecoder(r.Body).Decode(&script); err != nil {
			logger.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		defects, err := handler.SaveScript(r.Context(), &script)
		if errors.Is(err, chat.ErrInvalidScript) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if err != nil {
			logger.Error("failed to save script", slog.String("script", script.ScriptID), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to save script: %v", err)))
			return
		}

		logger.Info("script saved",
			slog.String("script", script.ScriptID),
			slog.Int("defects", len(defects)),
		)
		render.JSON(w, r, response.Ok(SaveResponse{ScriptID: script.ScriptID, Defects: defects}))
	}
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.script"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if err := handler.DeleteScript(r.Context(), id); err != nil {
			logger.Error("failed to delete script", slog.String("script", id), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to delete script: %v", err)))
			return
		}

		logger.Info("script deleted", slog.String("script", id))
		render.JSON(w, r, response.Ok(nil))
	}
}

// Invalidate drops cached copies so edits made directly in the database
// take effect before the cache expires.
func Invalidate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		handler.InvalidateScript(id)
		log.With(sl.Module("http.handlers.script")).Debug("script cache invalidated", slog.String("script", id))
		render.JSON(w, r, response.Ok(nil))
	}
}
