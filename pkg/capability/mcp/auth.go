package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSource yields bearer tokens for MCP requests.
type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// clientCredentials obtains access tokens via the OAuth 2.0 client_credentials
// grant. Tokens are cached and refreshed once 80% of their lifetime has
// elapsed. A failed refresh falls back to the cached token while it is still
// valid.
type clientCredentials struct {
	cfg AuthConfig

	mu        sync.Mutex
	token     string
	expiry    time.Time
	refreshAt time.Time

	httpClient *http.Client
	now        func() time.Time
}

func newClientCredentials(cfg AuthConfig) *clientCredentials {
	return &clientCredentials{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid access token, fetching a new one when needed.
func (c *clientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.refreshAt) {
		return c.token, nil
	}

	tok, expiresIn, err := c.fetch(ctx)
	if err != nil {
		if c.token != "" && now.Before(c.expiry) {
			return c.token, nil
		}
		return "", fmt.Errorf("acquiring OAuth token: %w", err)
	}

	lifetime := time.Duration(expiresIn) * time.Second
	c.token = tok
	c.expiry = now.Add(lifetime)
	c.refreshAt = now.Add(lifetime * 4 / 5)
	return c.token, nil
}

func (c *clientCredentials) fetch(ctx context.Context) (string, int, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	if len(c.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", 0, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	return tr.AccessToken, tr.ExpiresIn, nil
}

// headerTransport adds static headers and, if configured, a bearer token to
// every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
	tokens  tokenSource
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if t.tokens != nil {
		tok, err := t.tokens.Token(req.Context())
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return t.base.RoundTrip(req)
}

// httpClientFor returns nil when the server needs no extra headers, so the
// SDK uses its default client.
func httpClientFor(cfg ServerConfig) (*http.Client, error) {
	var tokens tokenSource
	switch cfg.Auth.Type {
	case "":
	case "oauth_client_credentials":
		if cfg.Auth.TokenURL == "" || cfg.Auth.ClientID == "" {
			return nil, fmt.Errorf("oauth_client_credentials requires token_url and client_id")
		}
		tokens = newClientCredentials(cfg.Auth)
	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Auth.Type)
	}

	if len(cfg.Headers) == 0 && tokens == nil {
		return nil, nil
	}
	return &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: cfg.Headers,
			tokens:  tokens,
		},
	}, nil
}
