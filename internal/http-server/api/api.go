package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"tgaccess/internal/config"
	"tgaccess/internal/http-server/handlers/channels"
	"tgaccess/internal/http-server/handlers/errors"
	"tgaccess/internal/http-server/handlers/gate"
	"tgaccess/internal/http-server/middleware/authenticate"
	"tgaccess/internal/http-server/middleware/timeout"
	"tgaccess/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	gate.Core
	channels.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(10))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	// browser clients call the gate directly
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/gate", func(g chi.Router) {
		g.Get("/", gate.Action(log, handler))
		g.Post("/", gate.Action(log, handler))
	})
	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/channels", func(ch chi.Router) {
			ch.Get("/", channels.List(log, handler))
			ch.Post("/", channels.Create(log, handler))
			ch.Delete("/{id}", channels.Delete(log, handler))
			ch.Post("/{id}/active", channels.SetActive(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
