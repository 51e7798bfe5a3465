package message

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"FacilityBot/entity"
	"FacilityBot/internal/http-server/handlers/request"
	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
)

type Core interface {
	ListMessages(ctx context.Context, phone string, limit int64) ([]*entity.InboundMessage, error)
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		messages, err := handler.ListMessages(r.Context(), phone, request.Limit(r))
		if err != nil {
			log.With(sl.Module("http.handlers.message")).Error("failed to list messages", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to list messages: %v", err)))
			return
		}
		render.JSON(w, r, response.Ok(messages))
	}
}
