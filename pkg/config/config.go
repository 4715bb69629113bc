// Package config provides configuration loading, validation, and pricing data
// for the estimation service.
//
// Configuration is loaded once at startup from a JSON file (plus environment
// overrides for secrets) and passed explicitly to the services that need it.
// There is no global config instance: every engine receives the values it
// depends on through its constructor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SchemaVersion guards against silently loading incompatible config files.
// Any breaking change to the Config shape must increment this.
const SchemaVersion = "1.0"

// Provider identifiers for LLM transports.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGoogle    = "google"
)

// Language codes supported by the locale layer.
const (
	LanguageJapanese = "ja"
	LanguageEnglish  = "en"
)

// Default model per provider when the config does not name one.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultOllamaModel    = "qwen2.5:7b"
	DefaultGoogleModel    = "gemini-2.0-flash"
)

// ModelInfo contains static pricing information about a known LLM model.
// This data is hardcoded in the application, not user-configurable.
type ModelInfo struct {
	Provider  string  // API provider (openai, anthropic, ollama, google)
	InputCPM  float64 // Cost per million input tokens (USD)
	OutputCPM float64 // Cost per million output tokens (USD)
}

// KnownModels registry contains pricing and provider information for common
// models. Unknown models fall back to zero-cost accounting with a warning.
//
//nolint:gochecknoglobals // Static model registry
var KnownModels = map[string]ModelInfo{
	"gpt-4o-mini": {
		Provider:  ProviderOpenAI,
		InputCPM:  0.15,
		OutputCPM: 0.60,
	},
	"gpt-4o": {
		Provider:  ProviderOpenAI,
		InputCPM:  2.50,
		OutputCPM: 10.0,
	},
	"gpt-5": {
		Provider:  ProviderOpenAI,
		InputCPM:  1.25,
		OutputCPM: 10.0,
	},
	"claude-sonnet-4-5": {
		Provider:  ProviderAnthropic,
		InputCPM:  3.0,
		OutputCPM: 15.0,
	},
	"claude-haiku-4-5": {
		Provider:  ProviderAnthropic,
		InputCPM:  1.0,
		OutputCPM: 5.0,
	},
	"gemini-2.0-flash": {
		Provider:  ProviderGoogle,
		InputCPM:  0.10,
		OutputCPM: 0.40,
	},
	// Local models have no per-token cost.
	"qwen2.5:7b": {
		Provider:  ProviderOllama,
		InputCPM:  0,
		OutputCPM: 0,
	},
}

// PricingFor returns the pricing entry for a model, and whether it is known.
func PricingFor(model string) (ModelInfo, bool) {
	info, ok := KnownModels[model]
	return info, ok
}

// LocaleConfig holds the locale-dependent numeric parameters the core must
// honor: daily unit cost (currency-specific) and tax rate.
type LocaleConfig struct {
	Currency      string  `json:"currency"`        // "JPY" or "USD"
	DailyUnitCost float64 `json:"daily_unit_cost"` // Cost of one person-day
	TaxRate       float64 `json:"tax_rate"`        // e.g. 0.10 for 10%
}

// LLMConfig selects the model transport and per-call parameters.
type LLMConfig struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float32 `json:"temperature"`
	RequestTimeout int     `json:"request_timeout_seconds"`
	OllamaHost     string  `json:"ollama_host,omitempty"`
}

// ResilienceConfig tunes the retry and circuit breaker middleware.
type ResilienceConfig struct {
	MaxAttempts      int     `json:"max_attempts"`
	InitialDelayMS   int     `json:"initial_delay_ms"`
	MaxDelayMS       int     `json:"max_delay_ms"`
	BackoffFactor    float64 `json:"backoff_factor"`
	FailureThreshold int     `json:"failure_threshold"`
	BreakerTimeout   int     `json:"breaker_timeout_seconds"`
}

// BudgetConfig caps LLM spend.
type BudgetConfig struct {
	DailyLimitUSD   float64 `json:"daily_limit_usd"`
	MonthlyLimitUSD float64 `json:"monthly_limit_usd"`
}

// RateLimitConfig bounds inbound requests per client.
type RateLimitConfig struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// EstimatorConfig tunes the estimation engine.
type EstimatorConfig struct {
	MaxParallel   int `json:"max_parallel"`
	MaxIterations int `json:"max_iterations"`
}

// MetricsConfig configures the metrics endpoint and read-back queries.
type MetricsConfig struct {
	ListenAddr    string `json:"listen_addr"`
	PrometheusURL string `json:"prometheus_url,omitempty"`
}

// Config is the root configuration for the estimation service.
type Config struct {
	SchemaVersion string           `json:"schema_version"`
	Language      string           `json:"language"`
	Locale        LocaleConfig     `json:"locale"`
	LLM           LLMConfig        `json:"llm"`
	Resilience    ResilienceConfig `json:"resilience"`
	Budget        BudgetConfig     `json:"budget"`
	RateLimit     RateLimitConfig  `json:"rate_limit"`
	Estimator     EstimatorConfig  `json:"estimator"`
	Metrics       MetricsConfig    `json:"metrics"`
	DatabasePath  string           `json:"database_path"`
}

// Default returns a config populated with working defaults for the given
// language. Japanese pricing follows the original deployment (40,000 JPY/day,
// 10% consumption tax); English defaults to USD with no tax applied.
func Default(language string) Config {
	cfg := Config{
		SchemaVersion: SchemaVersion,
		Language:      language,
		LLM: LLMConfig{
			Provider:       ProviderOpenAI,
			Model:          DefaultOpenAIModel,
			MaxTokens:      800,
			Temperature:    0.3,
			RequestTimeout: 60,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:      3,
			InitialDelayMS:   1000,
			MaxDelayMS:       10000,
			BackoffFactor:    2.0,
			FailureThreshold: 5,
			BreakerTimeout:   60,
		},
		Budget: BudgetConfig{
			DailyLimitUSD:   10.0,
			MonthlyLimitUSD: 200.0,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   100,
			WindowSeconds: 3600,
		},
		Estimator: EstimatorConfig{
			MaxParallel:   5,
			MaxIterations: 10,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
		DatabasePath: "estimator.db",
	}

	switch language {
	case LanguageEnglish:
		cfg.Locale = LocaleConfig{Currency: "USD", DailyUnitCost: 400, TaxRate: 0}
	default:
		cfg.Language = LanguageJapanese
		cfg.Locale = LocaleConfig{Currency: "JPY", DailyUnitCost: 40000, TaxRate: 0.10}
	}

	return cfg
}

// Load reads a config file, applies defaults for unset fields, and validates
// the result. A missing file yields the default Japanese configuration.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(LanguageJapanese), nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Start from defaults so partial files stay usable.
	cfg := Default(LanguageJapanese)
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %q (want %q)", c.SchemaVersion, SchemaVersion)
	}
	if c.Language != LanguageJapanese && c.Language != LanguageEnglish {
		return fmt.Errorf("unsupported language %q", c.Language)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderGoogle:
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		return fmt.Errorf("llm.temperature must be between 0.0 and 2.0")
	}
	if c.Locale.DailyUnitCost <= 0 {
		return fmt.Errorf("locale.daily_unit_cost must be positive")
	}
	if c.Locale.TaxRate < 0 || c.Locale.TaxRate > 0.10 {
		return fmt.Errorf("locale.tax_rate must be between 0 and 0.10")
	}
	if c.Resilience.MaxAttempts < 1 {
		return fmt.Errorf("resilience.max_attempts must be at least 1")
	}
	if c.Resilience.FailureThreshold < 1 {
		return fmt.Errorf("resilience.failure_threshold must be at least 1")
	}
	if c.RateLimit.MaxRequests < 1 || c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("rate_limit values must be at least 1")
	}
	if c.Estimator.MaxParallel < 1 {
		return fmt.Errorf("estimator.max_parallel must be at least 1")
	}
	if c.Estimator.MaxIterations < 1 {
		return fmt.Errorf("estimator.max_iterations must be at least 1")
	}
	return nil
}

// RequestTimeout returns the per-call LLM timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.LLM.RequestTimeout) * time.Second
}

// Save writes the configuration to the given path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
