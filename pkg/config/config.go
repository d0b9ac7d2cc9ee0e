// Package config provides unified configuration for the palaver server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (PALAVER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
	"github.com/rhuss/palaver/pkg/capability/mcp"
	"github.com/rhuss/palaver/pkg/debug"
	"github.com/rhuss/palaver/pkg/observability"
	"github.com/rhuss/palaver/pkg/policy"
)

// Config holds all configuration for the palaver server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Policy        policy.Policy       `yaml:"policy"`
	Capabilities  CapabilitiesConfig  `yaml:"capabilities"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MB
	MaxMessages     int           `yaml:"max_messages"`     // default: 1000
	MaxContentSize  int           `yaml:"max_content_size"` // default: 1 MB
	MaxConcurrent   int           `yaml:"max_concurrent"`   // 0: unlimited
}

// BackendConfig selects and configures the language-model backend.
type BackendConfig struct {
	Provider   string `yaml:"provider"`     // openai, azure, bedrock, gemini; default: openai
	Endpoint   string `yaml:"endpoint"`     // required for openai and azure
	APIKey     string `yaml:"api_key"`      // optional
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	Model      string `yaml:"model"`        // required
	Region     string `yaml:"region"`       // bedrock only
	APIVersion string `yaml:"api_version"`  // azure and gemini only

	// Timeout bounds a whole completion, capability calls included.
	Timeout time.Duration `yaml:"timeout"` // default: 120s

	MaxTokens        int `yaml:"max_tokens"`         // 0: backend default
	MaxParallelCalls int `yaml:"max_parallel_calls"` // default: 8
}

// CapabilitiesConfig enables the built-in capability modules and lists the
// MCP servers to connect to.
type CapabilitiesConfig struct {
	DateTime  DateTimeConfig     `yaml:"datetime"`
	Geocoding GeocodingConfig    `yaml:"geocoding"`
	Weather   WeatherConfig      `yaml:"weather"`
	WebSearch WebSearchConfig    `yaml:"websearch"`
	MCP       []mcp.ServerConfig `yaml:"mcp"`
}

// DateTimeConfig configures the datetime module.
type DateTimeConfig struct {
	Enabled  bool   `yaml:"enabled"`   // default: true
	TimeZone string `yaml:"time_zone"` // default: server local time
}

// GeocodingConfig configures the geocoding module.
type GeocodingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`
	MaxResults int    `yaml:"max_results"`
}

// WeatherConfig configures the weather module.
type WeatherConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Units   string `yaml:"units"` // "metric" or "imperial"
}

// WebSearchConfig configures the websearch module.
type WebSearchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Backend    string `yaml:"backend"` // default: searxng
	URL        string `yaml:"url"`
	MaxResults int    `yaml:"max_results"`
	Language   string `yaml:"language"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// TracingConfig holds span collection settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"` // default: palaver
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DebugConfig holds logging settings. PALAVER_DEBUG, PALAVER_LOG_LEVEL and
// PALAVER_LOG_FORMAT take precedence.
type DebugConfig struct {
	Categories string `yaml:"categories"`
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	v := api.DefaultValidationConfig()
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
			MaxMessages:     v.MaxMessages,
			MaxContentSize:  v.MaxContentSize,
		},
		Backend: BackendConfig{
			Provider:         "openai",
			Timeout:          backend.DefaultTimeout,
			MaxParallelCalls: backend.DefaultMaxParallelCalls,
		},
		Policy: policy.Default(),
		Capabilities: CapabilitiesConfig{
			DateTime: DateTimeConfig{Enabled: true},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
}

// FactoryConfig returns the backend factory configuration.
func (c *Config) FactoryConfig() backend.Config {
	return backend.Config{
		Provider:   c.Backend.Provider,
		Endpoint:   c.Backend.Endpoint,
		Credential: c.Backend.APIKey,
		ModelID:    c.Backend.Model,
		Region:     c.Backend.Region,
		APIVersion: c.Backend.APIVersion,
		Timeout:    c.Backend.Timeout,
		MaxTokens:  c.Backend.MaxTokens,

		MaxParallelCalls: c.Backend.MaxParallelCalls,
	}
}

// Validation returns the request size limits.
func (c *Config) Validation() api.ValidationConfig {
	v := api.DefaultValidationConfig()
	v.MaxMessages = c.Server.MaxMessages
	v.MaxContentSize = c.Server.MaxContentSize
	return v
}

// TracerConfig returns the tracer configuration.
func (c *Config) TracerConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Observability.Tracing.Enabled,
		ServiceName: c.Observability.Tracing.ServiceName,
		SampleRatio: c.Observability.Tracing.SampleRatio,
	}
}

// DebugOptions returns the logger options.
func (c *Config) DebugOptions() debug.Options {
	return debug.Options{
		Categories: c.Debug.Categories,
		Level:      c.Debug.Level,
		Format:     c.Debug.Format,
	}
}
