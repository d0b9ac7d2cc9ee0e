package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/palaver/pkg/capability/mcp"
	"github.com/rhuss/palaver/pkg/debug"
	"github.com/rhuss/palaver/pkg/policy"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, PALAVER_CONFIG env, ./config.yaml, /etc/palaver/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. PALAVER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/palaver/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("PALAVER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/palaver/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps PALAVER_* environment variables to config fields.
// Malformed numbers and durations are errors rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("PALAVER_BACKEND_PROVIDER", &cfg.Backend.Provider)
	setString("PALAVER_BACKEND_ENDPOINT", &cfg.Backend.Endpoint)
	setString("PALAVER_BACKEND_API_KEY", &cfg.Backend.APIKey)
	setString("PALAVER_BACKEND_REGION", &cfg.Backend.Region)
	setString("PALAVER_BACKEND_API_VERSION", &cfg.Backend.APIVersion)
	setString("PALAVER_MODEL", &cfg.Backend.Model)

	if v := os.Getenv("PALAVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PALAVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("PALAVER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PALAVER_TIMEOUT: %w", err)
		}
		cfg.Backend.Timeout = d
	}

	if v := os.Getenv("PALAVER_RETURN_SCOPE"); v != "" {
		scope, err := policy.ParseReturnScope(v)
		if err != nil {
			return fmt.Errorf("PALAVER_RETURN_SCOPE: %w", err)
		}
		cfg.Policy.ReturnScope = scope
	}

	if v := os.Getenv("PALAVER_ALLOW_AUTONOMOUS_CALLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PALAVER_ALLOW_AUTONOMOUS_CALLS: %w", err)
		}
		cfg.Policy.AllowAutonomousCalls = b
	}

	// PALAVER_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("PALAVER_MCP_SERVERS"); v != "" {
		servers, err := parseMCPServersJSON(v)
		if err != nil {
			return err
		}
		cfg.Capabilities.MCP = servers
	}

	if v := os.Getenv("PALAVER_WEBSEARCH_URL"); v != "" {
		cfg.Capabilities.WebSearch.URL = v
		cfg.Capabilities.WebSearch.Enabled = true
	}

	return nil
}

// parseMCPServersJSON parses a JSON array of MCP server configurations.
func parseMCPServersJSON(jsonStr string) ([]mcp.ServerConfig, error) {
	var servers []mcp.ServerConfig
	if err := json.Unmarshal([]byte(jsonStr), &servers); err != nil {
		return nil, fmt.Errorf("parsing PALAVER_MCP_SERVERS: %w", err)
	}
	return servers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// backend.api_key_file -> backend.api_key
	if cfg.Backend.APIKeyFile != "" && cfg.Backend.APIKey == "" {
		val, err := readSecretFile(cfg.Backend.APIKeyFile)
		if err != nil {
			return fmt.Errorf("backend.api_key_file: %w", err)
		}
		cfg.Backend.APIKey = val
	}

	// capabilities.geocoding.api_key_file -> capabilities.geocoding.api_key
	geo := &cfg.Capabilities.Geocoding
	if geo.APIKeyFile != "" && geo.APIKey == "" {
		val, err := readSecretFile(geo.APIKeyFile)
		if err != nil {
			return fmt.Errorf("capabilities.geocoding.api_key_file: %w", err)
		}
		geo.APIKey = val
	}

	// capabilities.mcp[*].auth.client_secret_file -> capabilities.mcp[*].auth.client_secret
	for i := range cfg.Capabilities.MCP {
		auth := &cfg.Capabilities.MCP[i].Auth
		if auth.ClientSecretFile != "" && auth.ClientSecret == "" {
			val, err := readSecretFile(auth.ClientSecretFile)
			if err != nil {
				return fmt.Errorf("capabilities.mcp[%d].auth.client_secret_file: %w", i, err)
			}
			auth.ClientSecret = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	slog.Debug("read secret file", "path", path)
	return strings.TrimSpace(string(data)), nil
}
