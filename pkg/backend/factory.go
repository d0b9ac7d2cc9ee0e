package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/rhuss/palaver/pkg/capability"
)

// Constructor builds a Client for a provider. It must not perform network
// I/O; validation failures should be returned as *ConfigurationError.
type Constructor func(cfg Config) (Client, error)

// Factory builds Handles from configuration. Providers are registered by
// name before use; the zero value is not usable, call NewFactory.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory returns a factory with no providers registered.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]Constructor)}
}

// RegisterProvider adds a named provider constructor. Registering a name
// twice replaces the earlier constructor.
func (f *Factory) RegisterProvider(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[strings.ToLower(name)] = ctor
}

// Providers returns the registered provider names in sorted order.
func (f *Factory) Providers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.ctors))
	for name := range f.ctors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build validates cfg and constructs a Handle with no capabilities. Every
// failure is a *ConfigurationError.
func (f *Factory) Build(cfg Config) (*Handle, error) {
	if strings.TrimSpace(cfg.ModelID) == "" {
		return nil, &ConfigurationError{Field: "model_id", Message: "must not be empty"}
	}
	if err := cfg.checkEndpoint(); err != nil {
		return nil, err
	}
	if cfg.MaxTokens < 0 {
		return nil, &ConfigurationError{Field: "max_tokens", Message: "must not be negative"}
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	f.mu.RLock()
	ctor, ok := f.ctors[name]
	f.mu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{
			Field:   "provider",
			Message: fmt.Sprintf("unknown provider %q (available: %s)", cfg.Provider, strings.Join(f.Providers(), ", ")),
		}
	}

	client, err := ctor(cfg)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, &ConfigurationError{Field: "provider", Message: err.Error()}
	}

	slog.Info("backend client configured",
		"provider", client.Name(),
		"model", cfg.ModelID,
		"endpoint", cfg.Endpoint,
	)
	opts := []HandleOption{WithMaxTokens(cfg.MaxTokens)}
	if cfg.MaxParallelCalls > 0 {
		opts = append(opts, WithMaxParallelCalls(cfg.MaxParallelCalls))
	}
	return NewHandle(client, cfg.ModelID, opts...), nil
}

// WithCapabilities derives a handle exposing set. It is a convenience for
// h.WithCapabilities(set).
func (f *Factory) WithCapabilities(h *Handle, set capability.Set) *Handle {
	return h.WithCapabilities(set)
}
