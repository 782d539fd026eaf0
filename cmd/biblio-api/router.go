package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/JuanR0/biblio/cmd/biblio-api/handlers"
	"github.com/JuanR0/biblio/cmd/biblio-api/middleware"
	"github.com/JuanR0/biblio/internal/observability"
)

// RouterConfig holds HTTP routing settings.
type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, engine handlers.Engine, pinger handlers.Pinger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger(logger.WithComponent("http")))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	chat := handlers.NewChatHandler(logger, engine, pinger)

	r.Get("/", chat.Root)
	r.Get("/health", chat.Health)

	r.Route("/chatbot", func(r chi.Router) {
		r.Post("/query", chat.Query)
		r.Get("/health", chat.Health)
		r.Get("/info", chat.Info)
	})

	return r
}
