package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"FacilityBot/internal/config"
	"FacilityBot/internal/http-server/handlers/errors"
	"FacilityBot/internal/http-server/handlers/key"
	"FacilityBot/internal/http-server/handlers/message"
	"FacilityBot/internal/http-server/handlers/script"
	servicecall "FacilityBot/internal/http-server/handlers/service-call"
	"FacilityBot/internal/http-server/handlers/session"
	"FacilityBot/internal/http-server/handlers/whatsapp"
	"FacilityBot/internal/http-server/middleware/authenticate"
	"FacilityBot/internal/http-server/middleware/timeout"
	"FacilityBot/internal/lib/api/response"
	"FacilityBot/internal/lib/sl"
	"FacilityBot/internal/ws"
)

const (
	requestTimeout  = 15
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	script.Core
	session.Core
	servicecall.Core
	message.Core
	key.Core
}

// Options carries the optional endpoints; nil members are not routed.
type Options struct {
	Webhook whatsapp.Webhook
	Hub     *ws.Hub
	Metrics http.Handler
}

// NewRouter builds the HTTP routes. The WhatsApp webhook, the metrics
// endpoint and the dashboard socket carry their own authentication; the
// admin API requires an operator key.
func NewRouter(log *slog.Logger, handler Handler, opts Options) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok("ok"))
	})

	if opts.Webhook != nil {
		router.Route("/webhook", func(r chi.Router) {
			r.Get("/", whatsapp.WebhookVerify(log, opts.Webhook))
			r.Post("/", whatsapp.WebhookHandler(log, opts.Webhook))
		})
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}
	if opts.Hub != nil {
		router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWs(opts.Hub, handler, log, w, r)
		})
	}

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(timeout.Timeout(requestTimeout))
		v1.Use(render.SetContentType(render.ContentTypeJSON))
		v1.Use(authenticate.New(log, handler))

		v1.Route("/scripts", func(r chi.Router) {
			r.Get("/", script.List(log, handler))
			r.Post("/", script.Save(log, handler))
			r.Post("/invalidate", script.Invalidate(log, handler))
			r.Get("/{id}", script.Get(log, handler))
			r.Delete("/{id}", script.Delete(log, handler))
			r.Post("/{id}/invalidate", script.Invalidate(log, handler))
		})
		v1.Route("/sessions", func(r chi.Router) {
			r.Get("/", session.List(log, handler))
			r.Get("/{phone}", session.Get(log, handler))
			r.Delete("/{phone}", session.Cancel(log, handler))
		})
		v1.Route("/service-calls", func(r chi.Router) {
			r.Get("/", servicecall.List(log, handler))
		})
		v1.Route("/messages", func(r chi.Router) {
			r.Get("/", message.List(log, handler))
		})
		v1.Route("/key", func(r chi.Router) {
			r.Post("/new", key.Generate(log, handler))
		})
	})

	return router
}

// New serves the API until ctx is done.
func New(ctx context.Context, conf *config.Config, log *slog.Logger, handler Handler, opts Options) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  NewRouter(log, handler, opts),
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.httpServer.Shutdown(shutdownCtx); err != nil {
			server.log.Error("server shutdown", sl.Err(err))
		}
	}()

	server.log.Info("starting api server", slog.String("address", serverAddress))

	err = server.httpServer.Serve(listener)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
