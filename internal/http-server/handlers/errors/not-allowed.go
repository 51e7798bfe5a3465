package errors

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

func NotAllowed(log *slog.Logger) http.HandlerFunc {
	log = log.With(sl.Module("http.handlers.errors"))
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("method not allowed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error(fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path)))
	}
}
