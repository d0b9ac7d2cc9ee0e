package mcp

// ServerConfig describes one MCP server. Each server becomes one capability
// module whose functions are the server's tools.
type ServerConfig struct {
	// Name is the capability name the server is registered under.
	Name string `yaml:"name" json:"name"`

	// Description overrides the default capability description.
	Description string `yaml:"description" json:"description"`

	// Transport is "streamable-http" (default) or "sse".
	Transport string `yaml:"transport" json:"transport"`

	// URL is the MCP server endpoint.
	URL string `yaml:"url" json:"url"`

	// Headers are sent with every request, typically static API keys.
	Headers map[string]string `yaml:"headers" json:"headers"`

	// Auth configures dynamic credentials.
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Tools restricts the exposed tools to this list. Empty exposes all.
	Tools []string `yaml:"tools" json:"tools"`
}

// AuthConfig configures OAuth 2.0 client credentials for an MCP server.
type AuthConfig struct {
	// Type is "" (none) or "oauth_client_credentials".
	Type         string   `yaml:"type" json:"type"`
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	Scopes       []string `yaml:"scopes" json:"scopes"`

	// ClientSecretFile is read into ClientSecret when that is empty.
	ClientSecretFile string `yaml:"client_secret_file" json:"client_secret_file"`
}
