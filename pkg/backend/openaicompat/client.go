package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
	"github.com/rhuss/palaver/pkg/debug"
)

const (
	// DefaultAzureAPIVersion is used when the config leaves APIVersion empty.
	DefaultAzureAPIVersion = "2024-10-21"

	// AzureScope is the Entra ID scope for Azure OpenAI.
	AzureScope = "https://cognitiveservices.azure.com/.default"
)

// Options configures a Client.
type Options struct {
	// Name is reported by Client.Name.
	Name string

	// URL is the full chat completions URL, including any query string.
	URL string

	// APIKey is sent in APIKeyHeader. With the default header it is sent as
	// a Bearer token.
	APIKey       string
	APIKeyHeader string

	// Credential supplies Bearer tokens when APIKey is empty.
	Credential azcore.TokenCredential
	Scope      string

	// OmitModel leaves the model out of the request body. Azure selects
	// the model through the deployment in the URL.
	OmitModel bool

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client performs HTTP requests against an OpenAI-compatible Chat
// Completions endpoint.
type Client struct {
	name       string
	httpClient *http.Client
	url        string
	apiKey     string
	keyHeader  string
	credential azcore.TokenCredential
	scope      string
	omitModel  bool
}

var _ backend.Client = (*Client)(nil)

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = backend.DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	header := opts.APIKeyHeader
	if header == "" {
		header = "Authorization"
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &Client{
		name:       name,
		httpClient: httpClient,
		url:        opts.URL,
		apiKey:     opts.APIKey,
		keyHeader:  header,
		credential: opts.Credential,
		scope:      opts.Scope,
		omitModel:  opts.OmitModel,
	}
}

// NewOpenAI is the backend.Constructor for the "openai" provider.
func NewOpenAI(cfg backend.Config) (backend.Client, error) {
	if err := cfg.RequireEndpoint(); err != nil {
		return nil, err
	}
	return NewClient(Options{
		Name:    "openai",
		URL:     strings.TrimRight(cfg.Endpoint, "/") + "/v1/chat/completions",
		APIKey:  cfg.Credential,
		Timeout: cfg.HTTPTimeout(),
	}), nil
}

// NewAzure is the backend.Constructor for the "azure" provider. The model id
// names the deployment. Without a credential, tokens come from the Azure
// default credential chain (environment, workload identity, managed
// identity, Azure CLI).
func NewAzure(cfg backend.Config) (backend.Client, error) {
	if err := cfg.RequireEndpoint(); err != nil {
		return nil, err
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}

	opts := Options{
		Name:      "azure",
		URL:       AzureURL(cfg.Endpoint, cfg.ModelID, version),
		OmitModel: true,
		Timeout:   cfg.HTTPTimeout(),
	}
	if cfg.Credential != "" {
		opts.APIKey = cfg.Credential
		opts.APIKeyHeader = "api-key"
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, &backend.ConfigurationError{Field: "credential", Message: "no api key and no Azure default credential: " + err.Error()}
		}
		opts.Credential = cred
		opts.Scope = AzureScope
	}
	return NewClient(opts), nil
}

// AzureURL builds the chat completions URL of an Azure OpenAI deployment.
func AzureURL(endpoint, deployment, apiVersion string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(endpoint, "/"), url.PathEscape(deployment), url.QueryEscape(apiVersion))
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Complete performs one non-streaming Chat Completions round-trip.
func (c *Client) Complete(ctx context.Context, req *backend.Request) (*backend.Reply, error) {
	chatReq := TranslateToChat(req)
	if c.omitModel {
		chatReq.Model = ""
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	debug.Trace("backend", "chat completions request", "url", c.url, "body", debug.Truncate(string(body), 4000))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	return TranslateResponse(&chatResp), nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	switch {
	case c.apiKey != "" && c.keyHeader == "Authorization":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	case c.apiKey != "":
		req.Header.Set(c.keyHeader, c.apiKey)
	case c.credential != nil:
		tok, err := c.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{c.scope}})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return api.NewServerError(fmt.Sprintf("acquiring %s token: %s", c.name, err.Error()))
		}
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
