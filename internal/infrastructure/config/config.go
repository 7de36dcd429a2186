// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Model      ModelConfig      `mapstructure:"model"`
	AI         AIConfig         `mapstructure:"ai"`
	Recipes    RecipesConfig    `mapstructure:"recipes"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// ModelConfig locates the classifier artifact
type ModelConfig struct {
	ArtifactPath string `mapstructure:"artifact_path"`
}

// AIConfig contains advice generation configuration
type AIConfig struct {
	// Provider is gemini, openai, ollama or none
	Provider        string        `mapstructure:"provider"`
	GeminiKey       string        `mapstructure:"gemini_key"`
	GeminiModel     string        `mapstructure:"gemini_model"`
	OpenAIKey       string        `mapstructure:"openai_key"`
	OpenAIModel     string        `mapstructure:"openai_model"`
	OllamaModel     string        `mapstructure:"ollama_model"`
	BaseURL         string        `mapstructure:"base_url"`
	Temperature     float64       `mapstructure:"temperature"`
	TopP            float64       `mapstructure:"top_p"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`

	// RequestsPerMinute throttles outbound calls, zero disables throttling
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// RecipesConfig contains recipe search configuration
type RecipesConfig struct {
	APIKey               string        `mapstructure:"api_key"`
	BaseURL              string        `mapstructure:"base_url"`
	ResultCount          int           `mapstructure:"result_count"`
	Ranking              int           `mapstructure:"ranking"`
	IgnorePantry         bool          `mapstructure:"ignore_pantry"`
	MaxMissedIngredients int           `mapstructure:"max_missed_ingredients"`
	QuotaLowWaterMark    float64       `mapstructure:"quota_low_water_mark"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	BaseDelay            time.Duration `mapstructure:"base_delay"`
	MaxDelay             time.Duration `mapstructure:"max_delay"`

	// RequestsPerSecond throttles outbound calls, zero disables throttling
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// WorstCase is the longest a single advice generation can take with every
// attempt timing out
func (c AIConfig) WorstCase() time.Duration {
	return attemptBudget(c.Timeout, c.MaxRetries, c.BaseDelay, c.MaxDelay)
}

// WorstCase is the longest a single recipe search can take with every
// attempt timing out
func (c RecipesConfig) WorstCase() time.Duration {
	return attemptBudget(c.Timeout, c.MaxRetries, c.BaseDelay, c.MaxDelay)
}

func attemptBudget(timeout time.Duration, retries int, base, maxDelay time.Duration) time.Duration {
	total := timeout * time.Duration(retries+1)
	delay := base
	for i := 0; i < retries; i++ {
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
		total += delay
		delay *= 2
	}
	return total
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool    `mapstructure:"enable_metrics"`
	MetricsPath     string  `mapstructure:"metrics_path"`
	EnableTracing   bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	HealthCheckPath string  `mapstructure:"health_check_path"`

	// HealthCacheTTL bounds how often health probes reach the providers
	HealthCacheTTL time.Duration `mapstructure:"health_cache_ttl"`
}

// Supported advice providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/nutrisense")
	}

	// Enable environment variable override
	v.SetEnvPrefix("NUTRISENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional key names used by the upstream services' own tooling
	_ = v.BindEnv("ai.gemini_key", "NUTRISENSE_AI_GEMINI_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("ai.openai_key", "NUTRISENSE_AI_OPENAI_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("recipes.api_key", "NUTRISENSE_RECIPES_API_KEY", "SPOONACULAR_API_KEY")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key gets a default
// so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "NutriSense")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "55s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Model defaults
	v.SetDefault("model.artifact_path", "model/nutrition_risk_model.json")

	// AI defaults
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.gemini_key", "")
	v.SetDefault("ai.gemini_model", "gemini-1.5-flash")
	v.SetDefault("ai.openai_key", "")
	v.SetDefault("ai.openai_model", "gpt-4o-mini")
	v.SetDefault("ai.ollama_model", "llama3.2:3b")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.top_p", 0.8)
	v.SetDefault("ai.max_output_tokens", 1024)
	v.SetDefault("ai.timeout", "10s")
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.base_delay", "1s")
	v.SetDefault("ai.max_delay", "8s")
	v.SetDefault("ai.requests_per_minute", 0)

	// Recipe search defaults
	v.SetDefault("recipes.api_key", "")
	v.SetDefault("recipes.base_url", "https://api.spoonacular.com")
	v.SetDefault("recipes.result_count", 5)
	v.SetDefault("recipes.ranking", 2)
	v.SetDefault("recipes.ignore_pantry", true)
	v.SetDefault("recipes.max_missed_ingredients", 4)
	v.SetDefault("recipes.quota_low_water_mark", 10)
	v.SetDefault("recipes.timeout", "8s")
	v.SetDefault("recipes.max_retries", 2)
	v.SetDefault("recipes.base_delay", "500ms")
	v.SetDefault("recipes.max_delay", "4s")
	v.SetDefault("recipes.requests_per_second", 0)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4318")
	v.SetDefault("monitoring.otlp_insecure", true)
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.health_cache_ttl", "5s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate required fields
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if c.Model.ArtifactPath == "" {
		return fmt.Errorf("model.artifact_path is required")
	}

	// Validate port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama, ProviderNone:
	default:
		return fmt.Errorf("ai.provider must be one of gemini, openai, ollama, none")
	}

	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2")
	}
	if c.AI.TopP <= 0 || c.AI.TopP > 1 {
		return fmt.Errorf("ai.top_p must be in (0, 1]")
	}
	if c.AI.MaxOutputTokens < 1 {
		return fmt.Errorf("ai.max_output_tokens must be positive")
	}
	if c.AI.MaxRetries < 0 || c.Recipes.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.AI.RequestsPerMinute < 0 || c.Recipes.RequestsPerSecond < 0 {
		return fmt.Errorf("request rate limits must not be negative")
	}

	if c.Recipes.ResultCount < 1 || c.Recipes.ResultCount > 100 {
		return fmt.Errorf("recipes.result_count must be between 1 and 100")
	}
	if c.Recipes.Ranking != 1 && c.Recipes.Ranking != 2 {
		return fmt.Errorf("recipes.ranking must be 1 or 2")
	}
	if c.Recipes.MaxMissedIngredients < 0 {
		return fmt.Errorf("recipes.max_missed_ingredients must not be negative")
	}

	if c.Server.RequestTimeout > 0 {
		if budget := c.AI.WorstCase(); budget >= c.Server.RequestTimeout {
			return fmt.Errorf("ai.timeout x (max_retries+1) plus backoff (%s) must fit in server.request_timeout (%s)",
				budget, c.Server.RequestTimeout)
		}
		if budget := c.Recipes.WorstCase(); budget >= c.Server.RequestTimeout {
			return fmt.Errorf("recipes.timeout x (max_retries+1) plus backoff (%s) must fit in server.request_timeout (%s)",
				budget, c.Server.RequestTimeout)
		}
	}

	if c.Monitoring.SamplingRate < 0 || c.Monitoring.SamplingRate > 1 {
		return fmt.Errorf("monitoring.sampling_rate must be between 0 and 1")
	}
	if c.Monitoring.HealthCacheTTL < 0 {
		return fmt.Errorf("monitoring.health_cache_ttl must not be negative")
	}

	return nil
}

// AdviceEnabled reports whether a generation provider is usable
func (c *Config) AdviceEnabled() bool {
	switch c.AI.Provider {
	case ProviderGemini:
		return c.AI.GeminiKey != ""
	case ProviderOpenAI:
		return c.AI.OpenAIKey != "" || c.AI.BaseURL != ""
	case ProviderOllama:
		return true
	default:
		return false
	}
}

// RecipesEnabled reports whether recipe search credentials are configured
func (c *Config) RecipesEnabled() bool {
	return c.Recipes.APIKey != ""
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Address returns the listen address of the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
