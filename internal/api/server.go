package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lucasvieira/zapcamp/internal/campaign"
	"github.com/lucasvieira/zapcamp/internal/config"
	"github.com/lucasvieira/zapcamp/internal/dispatch"
	"github.com/lucasvieira/zapcamp/internal/gateway"
	"github.com/lucasvieira/zapcamp/internal/places"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

type Server struct {
	cfg    config.ServerConfig
	store  storage.Storage
	router *chi.Mux
	log    zerolog.Logger
	http   *http.Server
}

// Deps carries the domain services the handlers need.
type Deps struct {
	Store     storage.Storage
	Campaigns *campaign.Service
	Scheduler *dispatch.Scheduler
	Processor *dispatch.Processor
	Gateway   *gateway.Client
	Importer  *places.Importer
}

func NewServer(cfg config.ServerConfig, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		store: deps.Store,
		log:   log,
	}
	s.router = s.buildRouter(deps)
	return s
}

func (s *Server) buildRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	contactHandler := NewContactHandler(deps.Store, deps.Importer)
	campaignHandler := NewCampaignHandler(deps.Campaigns, deps.Store)
	dispatchHandler := NewDispatchHandler(deps.Store, deps.Scheduler, deps.Processor)
	sessionHandler := NewSessionHandler(deps.Store, deps.Gateway)
	templateHandler := NewTemplateHandler(deps.Store)
	statsHandler := NewStatsHandler(deps.Store)

	r.Get("/health", statsHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Contacts
		r.Post("/contacts", contactHandler.Create)
		r.Get("/contacts", contactHandler.List)
		r.Get("/contacts/stats", contactHandler.Stats)
		r.Post("/contacts/capture", contactHandler.Capture)
		r.Get("/contacts/{id}", contactHandler.Get)
		r.Put("/contacts/{id}", contactHandler.Update)
		r.Patch("/contacts/{id}/status", contactHandler.UpdateStatus)
		r.Delete("/contacts/{id}", contactHandler.Delete)

		// Campaigns
		r.Post("/campaigns", campaignHandler.Create)
		r.Get("/campaigns", campaignHandler.List)
		r.Get("/campaigns/stats", campaignHandler.Stats)
		r.Get("/campaigns/{id}", campaignHandler.Get)
		r.Post("/campaigns/{id}/pause", campaignHandler.Pause)
		r.Post("/campaigns/{id}/resume", campaignHandler.Resume)
		r.Post("/campaigns/{id}/cancel", campaignHandler.Cancel)
		r.Delete("/campaigns/{id}", campaignHandler.Delete)

		// Dispatch queue
		r.Post("/dispatches", dispatchHandler.Create)
		r.Post("/dispatches/batch", dispatchHandler.ScheduleBatch)
		r.Get("/dispatches", dispatchHandler.List)
		r.Get("/dispatches/pending", dispatchHandler.ListPending)
		r.Get("/dispatches/stats", dispatchHandler.Stats)
		r.Get("/dispatches/{id}", dispatchHandler.Get)
		r.Post("/dispatches/{id}/cancel", dispatchHandler.Cancel)
		r.Delete("/dispatches/{id}", dispatchHandler.Delete)

		// Processor triggers, meant for an external cron
		r.Post("/dispatch/process", dispatchHandler.ProcessNext)
		r.Post("/dispatch/process-batch", dispatchHandler.ProcessBatch)
		r.Post("/dispatch/sweep", dispatchHandler.Sweep)

		// WhatsApp sessions
		r.Post("/sessions", sessionHandler.Create)
		r.Get("/sessions", sessionHandler.List)
		r.Post("/sessions/{id}/start", sessionHandler.Start)
		r.Get("/sessions/{id}/status", sessionHandler.Status)
		r.Post("/sessions/{id}/stop", sessionHandler.Stop)
		r.Delete("/sessions/{id}", sessionHandler.Delete)

		// Message templates
		r.Post("/templates", templateHandler.Create)
		r.Get("/templates", templateHandler.List)
		r.Get("/templates/{id}", templateHandler.Get)
		r.Put("/templates/{id}", templateHandler.Update)
		r.Delete("/templates/{id}", templateHandler.Delete)
		r.Post("/templates/{id}/preview", templateHandler.Preview)
	})

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
