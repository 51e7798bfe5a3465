package errors

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

// NotFound answers routes the admin API does not serve.
func NotFound(log *slog.Logger) http.HandlerFunc {
	log = log.With(sl.Module("http.handlers.errors"))
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("route not found",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(fmt.Sprintf("no route for %s", r.URL.Path)))
	}
}
