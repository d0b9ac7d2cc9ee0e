package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var knownProviders = map[string]bool{
	"openai":  true,
	"azure":   true,
	"bedrock": true,
	"gemini":  true,
}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative"))
	}
	if c.Server.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("server.max_concurrent must not be negative, got %d", c.Server.MaxConcurrent))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	// backend.* is checked in depth by the factory; only catch the obvious here.
	if !knownProviders[c.Backend.Provider] {
		errs = append(errs, fmt.Errorf("backend.provider must be one of openai, azure, bedrock, gemini, got %q", c.Backend.Provider))
	}
	if c.Backend.Model == "" {
		errs = append(errs, fmt.Errorf("backend.model is required"))
	}
	if (c.Backend.Provider == "openai" || c.Backend.Provider == "azure") && c.Backend.Endpoint == "" {
		errs = append(errs, fmt.Errorf("backend.endpoint is required for provider %q", c.Backend.Provider))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must be > 0, got %v", c.Backend.Timeout))
	}
	if c.Backend.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("backend.max_tokens must not be negative, got %d", c.Backend.MaxTokens))
	}

	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}

	errs = append(errs, c.Capabilities.validate()...)

	if r := c.Observability.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing.sample_ratio must be in [0, 1], got %v", r))
	}

	return errors.Join(errs...)
}

func (c CapabilitiesConfig) validate() []error {
	var errs []error

	if tz := c.DateTime.TimeZone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("capabilities.datetime.time_zone: %w", err))
		}
	}

	switch c.Weather.Units {
	case "", "metric", "imperial":
	default:
		errs = append(errs, fmt.Errorf("capabilities.weather.units must be \"metric\" or \"imperial\", got %q", c.Weather.Units))
	}

	if c.WebSearch.Enabled && c.WebSearch.URL == "" {
		errs = append(errs, fmt.Errorf("capabilities.websearch.url is required when websearch is enabled"))
	}

	seen := map[string]bool{
		"datetime":  c.DateTime.Enabled,
		"geocoding": c.Geocoding.Enabled,
		"weather":   c.Weather.Enabled,
		"websearch": c.WebSearch.Enabled,
	}
	for i, s := range c.MCP {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("capabilities.mcp[%d].name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("capabilities.mcp[%d].name %q is already in use", i, s.Name))
		}
		seen[s.Name] = true

		if s.URL == "" {
			errs = append(errs, fmt.Errorf("capabilities.mcp[%d].url is required", i))
		} else if u, err := url.Parse(s.URL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("capabilities.mcp[%d].url %q is not a valid URL", i, s.URL))
		}

		switch s.Transport {
		case "", "streamable-http", "sse":
		default:
			errs = append(errs, fmt.Errorf("capabilities.mcp[%d].transport must be \"streamable-http\" or \"sse\", got %q", i, s.Transport))
		}
	}

	return errs
}
