package backend

import (
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single HTTP round-trip when Config.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// Config describes how to reach one language-model backend.
type Config struct {
	// Provider selects the adapter ("openai", "azure", "bedrock", "gemini").
	Provider string

	// Endpoint is the base URL of the backend. Optional for providers with
	// a well-known endpoint (bedrock, gemini).
	Endpoint string

	// Credential is the API key. Providers that support ambient credentials
	// (azure via Entra ID, bedrock via the AWS default chain) fall back to
	// them when it is empty.
	Credential string

	// ModelID is the model name, or the deployment name for azure.
	ModelID string

	// Region is the AWS region for bedrock.
	Region string

	// APIVersion is the Azure OpenAI api-version query parameter.
	APIVersion string

	// Timeout bounds one HTTP round-trip. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxTokens caps each reply. Zero leaves the backend default.
	MaxTokens int

	// MaxParallelCalls bounds concurrent capability calls within one round.
	// Zero means DefaultMaxParallelCalls.
	MaxParallelCalls int
}

// HTTPTimeout returns the configured timeout or DefaultTimeout.
func (c Config) HTTPTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// RequireEndpoint validates that Endpoint is a non-empty absolute http(s) URL.
// Provider constructors call it when they cannot fall back to a default.
func (c Config) RequireEndpoint() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return &ConfigurationError{Field: "endpoint", Message: "must not be empty"}
	}
	return c.checkEndpoint()
}

func (c Config) checkEndpoint() error {
	if c.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return &ConfigurationError{Field: "endpoint", Message: "malformed URL: " + err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationError{Field: "endpoint", Message: "scheme must be http or https, got " + quoteOrEmpty(u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigurationError{Field: "endpoint", Message: "missing host"}
	}
	return nil
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "none"
	}
	return `"` + s + `"`
}
