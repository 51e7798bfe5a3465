package servicecall

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"FacilityBot/entity"
	"FacilityBot/internal/http-server/handlers/request"
	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

type Core interface {
	ListServiceCalls(ctx context.Context, filter entity.ServiceCallFilter) ([]*entity.ServiceCall, error)
}

// List returns recorded service calls, newest first, optionally filtered by
// phone and status.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.service-call"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		filter := entity.ServiceCallFilter{
			Phone:  r.URL.Query().Get("phone"),
			Status: r.URL.Query().Get("status"),
			Limit:  request.Limit(r),
		}
		calls, err := handler.ListServiceCalls(r.Context(), filter)
		if err != nil {
			logger.Error("failed to list service calls", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to list service calls: %v", err)))
			return
		}

		logger.Debug("service calls listed", slog.Int("count", len(calls)))
		render.JSON(w, r, response.Ok(calls))
	}
}
