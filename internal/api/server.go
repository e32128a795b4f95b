package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/neodatsu/itercraft/internal/api/handler"
	mw "github.com/neodatsu/itercraft/internal/api/middleware"
	"github.com/neodatsu/itercraft/internal/api/response"
	"github.com/neodatsu/itercraft/internal/config"
	"github.com/neodatsu/itercraft/internal/core"
)

// SlashCommandPath is the request URL configured in the Slack app.
const SlashCommandPath = "/slack/commands"

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	dispatch *core.DispatchService
	cfg      *config.Config
	registry *prometheus.Registry
}

// NewServer builds the router. HTTP metrics are registered on registry, which
// is also served at /metrics unless cfg.MetricsListenAddr moves it elsewhere.
func NewServer(logger zerolog.Logger, cfg *config.Config, dispatch *core.DispatchService, registry *prometheus.Registry) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		dispatch: dispatch,
		cfg:      cfg,
		registry: registry,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(chimw.Recoverer)
	s.router.Use(mw.Metrics(s.registry))
}

func (s *Server) setupRoutes() {
	if s.cfg.MetricsListenAddr == "" {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// Health checks
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	slackCommand := handler.NewSlackCommand(s.dispatch)
	s.router.Post(SlashCommandPath, slackCommand.Handle)

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]string{}

	if err := s.cfg.Validate(config.ComponentAPI); err != nil {
		checks["config"] = err.Error()
		response.WriteJSON(w, http.StatusServiceUnavailable, checks)
		return
	}
	checks["config"] = "ok"
	response.WriteJSON(w, http.StatusOK, checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
