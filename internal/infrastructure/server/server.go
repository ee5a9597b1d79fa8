package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/habitkeeper/core/docs"
	httpHandlers "github.com/habitkeeper/core/internal/adapters/http"
	"github.com/habitkeeper/core/internal/application/services"
	"github.com/habitkeeper/core/internal/infrastructure/config"
	"github.com/habitkeeper/core/internal/infrastructure/logger"
	"github.com/habitkeeper/core/internal/infrastructure/metrics"
	"github.com/habitkeeper/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo         *echo.Echo
	config       *config.Config
	logger       *logger.Logger
	store        ports.DocumentStore
	registry     *prometheus.Registry
	habitService *services.HabitService
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance. registry may be nil, in which case a
// fresh one is created when metrics are enabled.
func New(cfg *config.Config, store ports.DocumentStore, registry *prometheus.Registry, appLogger *logger.Logger, opts ...services.Option) (*Server, error) {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.Debug = cfg.App.IsDevelopment()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	habitService := services.NewHabitService(store, appLogger, opts...)
	habitHandler := httpHandlers.NewHabitHandler(habitService, appLogger)

	server := &Server{
		echo:         e,
		config:       cfg,
		logger:       appLogger,
		store:        store,
		registry:     registry,
		habitService: habitService,
	}

	server.setupMiddleware()

	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	server.setupRoutes(habitHandler)

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(habitHandler *httpHandlers.HabitHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	api := s.echo.Group("/api")

	habitGroup := api.Group("/habits")
	habitGroup.GET("", habitHandler.ListHabits)
	habitGroup.POST("", habitHandler.CreateHabit)
	habitGroup.PUT("/:id", habitHandler.UpdateHabit)
	habitGroup.PATCH("/:id/toggle", habitHandler.ToggleHabit)
	habitGroup.DELETE("/:id", habitHandler.DeleteHabit)

	api.GET("/stats", habitHandler.GetStats)
	api.POST("/backup", habitHandler.Backup)
	api.GET("/export", habitHandler.Export)
	api.POST("/import", habitHandler.Import)

	if s.config.Metrics.Enabled && !s.config.Metrics.SeparateListener(s.config.Server.Port) {
		s.echo.GET("/metrics", echo.WrapHandler(s.MetricsHandler()))
	}

	if s.config.Server.StaticDir != "" {
		s.echo.Static("/", s.config.Server.StaticDir)
	}
}

// Initialize seeds the document store when seeding is enabled
func (s *Server) Initialize(ctx context.Context) error {
	if !s.config.Storage.Seed {
		return nil
	}
	return s.habitService.EnsureInitialized(ctx)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// MetricsHandler serves the Prometheus registry
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	if hc, ok := s.store.(ports.HealthChecker); ok {
		if err := hc.HealthCheck(c.Request().Context()); err != nil {
			s.logger.Warnw("Readiness check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "storage_not_ready",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"version": s.config.App.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  = http.StatusText(http.StatusInternalServerError)
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		}

		if code == http.StatusInternalServerError {
			logger.WithRequestID(c.Response().Header().Get(echo.HeaderXRequestID)).
				WithError(err).
				Errorw("Internal server error", "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, httpHandlers.ErrorResponse{Success: false, Error: msg})
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}

// registerHabitGauges publishes the live habit statistics on the registry
func (s *Server) registerHabitGauges() {
	metrics.RegisterHabitGauges(s.registry, s.habitService.Stats)
}
