package apiserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/infrastructure/config"
	"github.com/nutrisense/api/internal/infrastructure/http/handlers"
	"github.com/nutrisense/api/internal/infrastructure/http/middleware"
	"github.com/nutrisense/api/internal/infrastructure/monitoring"
	"github.com/nutrisense/api/internal/ports/inbound"
	apperrors "github.com/nutrisense/api/pkg/errors"
	"github.com/nutrisense/api/pkg/healthcheck"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// APIServer serves the nutrition JSON API
type APIServer struct {
	config         *config.Config
	logger         *zap.Logger
	server         *http.Server
	router         *chi.Mux
	handlers       *handlers.NutritionHandlers
	health         *healthcheck.HealthCheck
	metrics        *monitoring.MetricsCollector
	openAPIHandler *OpenAPIHandler
}

// NewAPIServer creates a new API server instance. metrics may be nil when
// metrics are disabled.
func NewAPIServer(
	cfg *config.Config,
	log *zap.Logger,
	service inbound.NutritionService,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) *APIServer {
	server := &APIServer{
		config:         cfg,
		logger:         log,
		handlers:       handlers.NewNutritionHandlers(service, log),
		health:         health,
		metrics:        metrics,
		openAPIHandler: NewOpenAPIHandler(log),
	}

	server.router = server.setupRoutes()
	server.server = &http.Server{
		Addr: cfg.Address(),
		Handler: otelhttp.NewHandler(server.router, "nutrisense-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return server
}

func (s *APIServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	if s.config.Server.EnableCORS {
		r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	}
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	healthPath := s.config.Monitoring.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	r.Get(healthPath, s.health.Handler())
	r.Get(healthPath+"/live", s.health.LivenessHandler())
	r.Get(healthPath+"/ready", s.health.ReadinessHandler())

	if s.metrics != nil && s.config.Monitoring.EnableMetrics {
		r.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", s.openAPIHandler.ServeOpenAPISpec)
		r.Get("/docs", s.openAPIHandler.ServeRedocUI)
		r.Get("/health", s.health.Handler())

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(s.config.Server.RequestTimeout))
			r.Use(middleware.BodyLimit(s.config.Server.MaxBodyBytes))
			r.Use(middleware.JSONOnly())
			s.setupAPIV1Routes(r)
		})
	})

	return r
}

func (s *APIServer) setupAPIV1Routes(r chi.Router) {
	h := s.handlers

	r.Post("/predict", h.Predict)
	r.Post("/recommendations", h.Recommend)
	r.Post("/advice", h.Advise)
	r.Post("/recipes", h.EnrichRecipes)
	r.Get("/capabilities", h.Capabilities)
}

// Handler returns the fully wrapped HTTP handler
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops
func (s *APIServer) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
		zap.Bool("metrics", s.metrics != nil && s.config.Monitoring.EnableMetrics),
	)

	return s.server.ListenAndServe()
}

// Server returns the underlying HTTP server instance
func (s *APIServer) Server() *http.Server {
	return s.server
}

// Shutdown gracefully shuts down the server
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeAppError(w, apperrors.NewAppError(apperrors.CodeNotFound, "Route not found", r.Method+" "+r.URL.Path))
}

func (s *APIServer) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeAppError(w, apperrors.NewAppError(apperrors.CodeMethodNotAllowed, "Method not allowed", r.Method+" "+r.URL.Path))
}

func (s *APIServer) writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	if err := json.NewEncoder(w).Encode(handlers.APIResponse{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}); err != nil {
		s.logger.Debug("Failed to encode error response", zap.Error(err))
	}
}
