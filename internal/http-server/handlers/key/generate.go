package key

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
	"FacilityBot/internal/lib/validate"
)

type Core interface {
	GenerateApiKey(username string) (string, error)
}

type GenerateRequest struct {
	Username string `json:"username" validate:"required,min=2"`
}

func (g *GenerateRequest) Bind(_ *http.Request) error {
	return validate.Struct(g)
}

type GenerateResponse struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// Generate issues an API key for a dashboard operator.
func Generate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.key"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req GenerateRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Warn("invalid key request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		key, err := handler.GenerateApiKey(req.Username)
		if err != nil {
			logger.Error("failed to generate key", slog.String("username", req.Username), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Failed to generate key: %v", err)))
			return
		}

		logger.Info("api key issued", slog.String("username", req.Username))
		render.JSON(w, r, response.Ok(GenerateResponse{Username: req.Username, Key: key}))
	}
}
