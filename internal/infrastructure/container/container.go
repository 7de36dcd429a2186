// Package container provides dependency injection using Uber FX
// This implements the Dependency Inversion Principle from SOLID
package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nutrisense/api/internal/application/advice"
	"github.com/nutrisense/api/internal/application/classifier"
	"github.com/nutrisense/api/internal/application/enrichment"
	nutritionapp "github.com/nutrisense/api/internal/application/nutrition"
	"github.com/nutrisense/api/internal/application/validation"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/infrastructure/ai"
	"github.com/nutrisense/api/internal/infrastructure/config"
	"github.com/nutrisense/api/internal/infrastructure/http/apiserver"
	"github.com/nutrisense/api/internal/infrastructure/ml"
	"github.com/nutrisense/api/internal/infrastructure/monitoring"
	"github.com/nutrisense/api/internal/infrastructure/recipes/spoonacular"
	"github.com/nutrisense/api/internal/ports/inbound"
	"github.com/nutrisense/api/internal/ports/outbound"
	"github.com/nutrisense/api/pkg/healthcheck"
	"github.com/nutrisense/api/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ConfigPath is the optional configuration file supplied by the caller
type ConfigPath string

// Module provides all dependency injection modules
var Module = fx.Options(
	CoreModule,

	// HTTP modules
	HTTPModule,

	// Lifecycle hooks
	LifecycleModule,
)

// CoreModule provides the prediction pipeline without the HTTP surface
var CoreModule = fx.Options(
	// Infrastructure modules
	ConfigModule,
	LoggerModule,
	MonitoringModule,

	// Pipeline modules
	ModelModule,
	ProviderModule,
	ServiceModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
		return logger.NewWithLevel(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
			Fields: map[string]string{
				"service": cfg.App.Name,
				"version": cfg.App.Version,
			},
		})
	},
)

// MonitoringModule provides metrics and telemetry
var MonitoringModule = fx.Provide(
	monitoring.NewMetricsCollector,
	func(m *monitoring.MetricsCollector) outbound.PipelineMetrics {
		return m
	},
	func(cfg *config.Config, m *monitoring.MetricsCollector, log *zap.Logger) (*monitoring.Telemetry, error) {
		return monitoring.NewTelemetry(context.Background(), monitoring.TelemetryConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			TracingEnabled: cfg.Monitoring.EnableTracing,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			OTLPInsecure:   cfg.Monitoring.OTLPInsecure,
			SamplingRate:   cfg.Monitoring.SamplingRate,
		}, m.Registry(), log)
	},
)

// ModelModule loads the classifier artifact and the stages that depend on it
var ModelModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*ml.Classifier, error) {
		model, err := ml.Load(cfg.Model.ArtifactPath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to load classifier artifact: %w", err)
		}
		return model, nil
	},
	func(model *ml.Classifier, log *zap.Logger) *classifier.RiskClassifier {
		return classifier.NewRiskClassifier(model, log)
	},
	validation.NewFeatureValidator,
	nutrition.NewDefaultEngine,
)

// ProviderModule provides the external service adapters. Each one is nil
// when its credentials are not configured.
var ProviderModule = fx.Provide(
	ai.NewTextGenerator,
	ai.NewHealthChecker,
	func(cfg *config.Config, log *zap.Logger) outbound.RecipeSearcher {
		if !cfg.RecipesEnabled() {
			log.Info("Recipe enrichment disabled: no API key configured")
			return nil
		}
		return spoonacular.NewClient(spoonacular.Config{
			APIKey:  cfg.Recipes.APIKey,
			BaseURL: cfg.Recipes.BaseURL,
			Timeout: cfg.Recipes.Timeout,

			RequestsPerSecond: cfg.Recipes.RequestsPerSecond,
		}, log)
	},
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	NewAdviceService,
	NewEnrichmentService,
	NewNutritionService,
)

// HTTPModule provides HTTP server and health checks
var HTTPModule = fx.Provide(
	NewHealthCheck,
	func(
		cfg *config.Config,
		log *zap.Logger,
		service inbound.NutritionService,
		health *healthcheck.HealthCheck,
		metrics *monitoring.MetricsCollector,
	) *apiserver.APIServer {
		return apiserver.NewAPIServer(cfg, log, service, health, metrics)
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterHealthChecks,
	RegisterConfigWatcher,
	RegisterLifecycleHooks,
)

// NewHealthCheck creates the health aggregator. Reports are cached so probes
// do not hit the external providers on every request.
func NewHealthCheck(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
	health := healthcheck.New(cfg.App.Version, log)
	health.SetCacheTTL(cfg.Monitoring.HealthCacheTTL)
	return health
}

// NewAdviceService builds the advice stage, or nil when no provider is configured.
// It depends on the telemetry so its meter instruments bind to the installed provider.
func NewAdviceService(
	cfg *config.Config,
	generator outbound.TextGenerator,
	metrics outbound.PipelineMetrics,
	_ *monitoring.Telemetry,
	log *zap.Logger,
) (*advice.Service, error) {
	if generator == nil {
		return nil, nil
	}

	settings := advice.DefaultConfig()
	settings.Params.Temperature = cfg.AI.Temperature
	settings.Params.TopP = cfg.AI.TopP
	if cfg.AI.MaxOutputTokens > 0 {
		settings.Params.MaxOutputTokens = cfg.AI.MaxOutputTokens
	}
	settings.MaxRetries = cfg.AI.MaxRetries
	if cfg.AI.BaseDelay > 0 {
		settings.BaseDelay = cfg.AI.BaseDelay
	}
	settings.MaxDelay = cfg.AI.MaxDelay

	return advice.NewService(generator, settings, metrics, log)
}

// NewEnrichmentService builds the recipe stage, or nil when recipe search is not configured
func NewEnrichmentService(
	cfg *config.Config,
	searcher outbound.RecipeSearcher,
	metrics outbound.PipelineMetrics,
	log *zap.Logger,
) *enrichment.Service {
	if searcher == nil {
		return nil
	}

	settings := enrichment.DefaultConfig()
	if cfg.Recipes.ResultCount > 0 {
		settings.ResultCount = cfg.Recipes.ResultCount
	}
	if cfg.Recipes.Ranking > 0 {
		settings.Ranking = cfg.Recipes.Ranking
	}
	settings.IgnorePantry = cfg.Recipes.IgnorePantry
	if cfg.Recipes.MaxMissedIngredients > 0 {
		settings.MaxMissedIngredients = cfg.Recipes.MaxMissedIngredients
	}
	settings.QuotaLowWaterMark = cfg.Recipes.QuotaLowWaterMark
	settings.MaxRetries = cfg.Recipes.MaxRetries
	if cfg.Recipes.BaseDelay > 0 {
		settings.BaseDelay = cfg.Recipes.BaseDelay
	}
	settings.MaxDelay = cfg.Recipes.MaxDelay

	return enrichment.NewService(searcher, settings, metrics, log)
}

// NewNutritionService assembles the prediction pipeline
func NewNutritionService(
	cfg *config.Config,
	validator *validation.FeatureValidator,
	riskClassifier *classifier.RiskClassifier,
	engine *nutrition.Engine,
	model *ml.Classifier,
	adviceService *advice.Service,
	enrichmentService *enrichment.Service,
	metrics outbound.PipelineMetrics,
	log *zap.Logger,
) inbound.NutritionService {
	capabilities := inbound.Capabilities{
		Recipes:      cfg.RecipesEnabled(),
		ModelVersion: model.Version(),
	}
	if adviceService != nil {
		capabilities.AdviceProvider = cfg.AI.Provider
	}

	return nutritionapp.NewService(nutritionapp.Dependencies{
		Validator:    validator,
		Classifier:   riskClassifier,
		Engine:       engine,
		Advice:       adviceService,
		Enrichment:   enrichmentService,
		Metrics:      metrics,
		Capabilities: capabilities,
	}, log)
}

// RegisterHealthChecks wires the pipeline dependencies into the health report.
// Only the classifier can make the service unhealthy; the optional stages degrade it.
func RegisterHealthChecks(
	health *healthcheck.HealthCheck,
	model *ml.Classifier,
	providerHealth *ai.HealthChecker,
	searcher outbound.RecipeSearcher,
) {
	health.Register("classifier", healthcheck.NewCustomChecker("classifier",
		func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			return healthcheck.StatusHealthy, "Model loaded", map[string]interface{}{
				"version":  model.Version(),
				"features": len(model.FeatureOrder()),
			}
		},
	))

	health.Register("advice_provider", healthcheck.NewCustomChecker("advice_provider",
		func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			status := providerHealth.CheckHealth(ctx)
			switch status.Status {
			case "unhealthy":
				return healthcheck.StatusDegraded, "Advice provider unreachable", status
			case "disabled":
				return healthcheck.StatusHealthy, "Advice generation disabled", status
			default:
				return healthcheck.StatusHealthy, "Advice provider available", status
			}
		},
	))

	health.Register("recipe_search", healthcheck.NewCustomChecker("recipe_search",
		func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			if searcher == nil {
				return healthcheck.StatusHealthy, "Recipe enrichment disabled", nil
			}
			return healthcheck.StatusHealthy, "Recipe search configured", nil
		},
	))
}

// RegisterConfigWatcher applies log level changes from an explicit config
// file without a restart. Other settings take effect on the next start.
func RegisterConfigWatcher(lc fx.Lifecycle, path ConfigPath, level zap.AtomicLevel, log *zap.Logger) error {
	if path == "" {
		return nil
	}

	watcher, err := config.NewWatcher(string(path), func(cfg *config.Config) {
		next := logger.ParseLevel(cfg.App.LogLevel)
		if next == level.Level() {
			return
		}
		log.Info("Log level changed",
			zap.Stringer("from", level.Level()),
			zap.Stringer("to", next),
		)
		level.SetLevel(next)
	}, log)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			watcher.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return watcher.Stop()
		},
	})
	return nil
}

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	server *apiserver.APIServer,
	telemetry *monitoring.Telemetry,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting NutriSense application",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.Bool("advice_enabled", cfg.AdviceEnabled()),
				zap.Bool("recipes_enabled", cfg.RecipesEnabled()),
			)

			// Start HTTP server
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("Failed to start HTTP server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down NutriSense application")

			// Shutdown HTTP server
			if err := server.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			if err := telemetry.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown telemetry", zap.Error(err))
			}

			// Flush logs
			_ = log.Sync()

			return nil
		},
	})
}
