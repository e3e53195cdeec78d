// Package server wires the HTTP router, middleware and handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"secret-friend/internal/config"
	"secret-friend/internal/handler"
	"secret-friend/internal/service"
)

// HealthFunc reports whether a backing dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Server wraps the HTTP server with application dependencies.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	cfg    *config.Config
	health HealthFunc

	gameHandler   *handler.GameHandler
	revealHandler *handler.RevealHandler
	adminHandler  *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the HTTP handlers.
type Dependencies struct {
	Config        *config.Config
	GameService   *service.GameService
	RevealService *service.RevealService
	PeopleService *service.PeopleService
	AdminService  *service.AdminService
	// Health is optional; nil reports healthy.
	Health HealthFunc
}

// New creates a new Server instance with the given dependencies.
func New(deps *Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.GameService == nil || deps.RevealService == nil || deps.PeopleService == nil || deps.AdminService == nil {
		return nil, fmt.Errorf("all services are required")
	}

	gin.SetMode(deps.Config.Server.Mode)

	s := &Server{
		engine:        gin.New(),
		cfg:           deps.Config,
		health:        deps.Health,
		gameHandler:   handler.NewGameHandler(deps.GameService),
		revealHandler: handler.NewRevealHandler(deps.RevealService),
		adminHandler:  handler.NewAdminHandler(deps.PeopleService, deps.AdminService),
	}

	s.registerMiddleware()
	s.registerRoutes()

	s.http = &http.Server{
		Addr:              deps.Config.Server.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: deps.Config.Server.RequestTimeout,
	}

	return s, nil
}

// registerMiddleware registers all middleware.
func (s *Server) registerMiddleware() {
	s.engine.Use(RecoveryMiddleware())
	s.engine.Use(LoggingMiddleware())
	s.engine.Use(MetricsMiddleware())
	if mw := CORSMiddleware(s.cfg.Server.FrontendOrigins); mw != nil {
		s.engine.Use(mw)
	}
	s.engine.Use(NoStoreMiddleware())
	s.engine.Use(TimeoutMiddleware(s.cfg.Server.RequestTimeout))

	s.engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, handler.ErrorBody{
			Detail: handler.ErrorDetail{Code: "not_found", Message: "Not found"},
		})
	})
}

// registerRoutes registers all API routes.
func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")

	games := api.Group("/games")
	games.POST("", s.gameHandler.Create)
	games.GET("", s.gameHandler.List)
	games.GET("/:id", s.gameHandler.Status)
	games.PATCH("/:id", s.gameHandler.Update)
	games.DELETE("/:id", s.gameHandler.Delete)
	games.POST("/:id/deactivate_game", s.gameHandler.Deactivate)
	games.POST("/:id/reactivate_game", s.gameHandler.Reactivate)
	games.GET("/:id/links", s.gameHandler.Links)
	games.POST("/:id/draw", s.gameHandler.Draw)
	games.POST("/:id/participants", s.gameHandler.AddParticipants)
	games.POST("/:id/participants/by_ids", s.gameHandler.AddParticipantsByIDs)
	games.PATCH("/:id/participants/:pid", s.gameHandler.RenameParticipant)
	games.DELETE("/:id/participants/:pid", s.gameHandler.RemoveParticipant)
	games.POST("/:id/:token/deactivate", s.gameHandler.DeactivateToken)
	games.POST("/:id/:token/reactivate", s.gameHandler.ReactivateToken)

	// Participant-facing routes, authorized by the token itself.
	games.GET("/:id/:token", s.revealHandler.Preview)
	games.POST("/:id/:token/reveal", s.revealHandler.Reveal)

	people := api.Group("/people")
	people.GET("", s.adminHandler.ListPeople)
	people.POST("", s.adminHandler.AddPeople)
	people.PATCH("/:id", s.adminHandler.RenamePerson)
	people.POST("/:id/deactivate", s.adminHandler.DeactivatePerson)
	people.POST("/:id/reactivate", s.adminHandler.ReactivatePerson)

	api.GET("/admin/export", s.adminHandler.Export)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP until Stop is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("Starting HTTP server...")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully, waiting for in-flight requests
// until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping HTTP server...")
	return s.http.Shutdown(ctx)
}
