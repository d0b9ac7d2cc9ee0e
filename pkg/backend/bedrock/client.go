// Package bedrock is the backend adapter for Anthropic models served by AWS
// Bedrock through the InvokeModel API.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
	"github.com/rhuss/palaver/pkg/debug"
)

// DefaultRegion is used when the config names no region.
const DefaultRegion = "us-east-1"

// InvokeModelAPI is the subset of the Bedrock runtime client the adapter uses.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client sends Anthropic Messages requests through Bedrock InvokeModel.
type Client struct {
	api    InvokeModelAPI
	region string
}

var _ backend.Client = (*Client)(nil)

// New is the backend.Constructor for the "bedrock" provider.
//
// The credential, when set, has the form "ACCESS_KEY_ID:SECRET_ACCESS_KEY"
// with an optional ":SESSION_TOKEN" suffix. Without it the AWS default
// chain (environment, shared config, web identity, instance role) applies.
// Endpoint overrides the regional Bedrock endpoint. The SDK's own retries are
// disabled; retry policy belongs to the caller.
func New(cfg backend.Config) (backend.Client, error) {
	if !strings.Contains(cfg.ModelID, "anthropic.") {
		return nil, &backend.ConfigurationError{
			Field:   "model_id",
			Message: fmt.Sprintf("bedrock adapter supports Anthropic models only, got %q", cfg.ModelID),
		}
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.Credential != "" {
		provider, err := staticCredentials(cfg.Credential)
		if err != nil {
			return nil, err
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(provider))
	}

	// LoadDefaultConfig only reads the environment and shared files here;
	// credentials are resolved on first use.
	awsCfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, &backend.ConfigurationError{Field: "region", Message: "loading AWS config: " + err.Error()}
	}
	awsCfg.HTTPClient = awsHTTPClient(cfg)

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
		}
		o.RetryMaxAttempts = 1
	})
	return NewWithAPI(client, region), nil
}

// NewWithAPI wraps an existing InvokeModel implementation.
func NewWithAPI(api InvokeModelAPI, region string) *Client {
	return &Client{api: api, region: region}
}

func staticCredentials(credential string) (aws.CredentialsProvider, error) {
	parts := strings.SplitN(credential, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, &backend.ConfigurationError{
			Field:   "credential",
			Message: "bedrock credential must be ACCESS_KEY_ID:SECRET_ACCESS_KEY[:SESSION_TOKEN]",
		}
	}
	session := ""
	if len(parts) == 3 {
		session = parts[2]
	}
	return credentials.NewStaticCredentialsProvider(parts[0], parts[1], session), nil
}

// Name returns "bedrock".
func (c *Client) Name() string {
	return "bedrock"
}

// Complete performs one InvokeModel round-trip.
func (c *Client) Complete(ctx context.Context, req *backend.Request) (*backend.Reply, error) {
	body, err := json.Marshal(TranslateRequest(req))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}
	debug.Trace("backend", "bedrock request", "model", req.Model, "body", debug.Truncate(string(body), 4000))

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, MapError(err)
	}

	var resp MessagesResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("failed to parse bedrock response: %s", err.Error()))
	}
	return TranslateResponse(&resp), nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (c *Client) Close() error {
	return nil
}

// MapError converts a Bedrock SDK error into an APIError.
func MapError(err error) *api.APIError {
	var (
		throttling *types.ThrottlingException
		quota      *types.ServiceQuotaExceededException
		validation *types.ValidationException
		denied     *types.AccessDeniedException
		notFound   *types.ResourceNotFoundException
		timeout    *types.ModelTimeoutException
	)
	switch {
	case errors.As(err, &throttling):
		return api.NewTooManyRequestsError(throttling.ErrorMessage())
	case errors.As(err, &quota):
		return api.NewTooManyRequestsError(quota.ErrorMessage())
	case errors.As(err, &validation):
		return api.NewInvalidRequestError("", validation.ErrorMessage())
	case errors.As(err, &denied):
		return api.NewServerError("bedrock access denied: " + denied.ErrorMessage())
	case errors.As(err, &notFound):
		return api.NewNotFoundError(notFound.ErrorMessage())
	case errors.As(err, &timeout):
		return api.NewTimeoutError(timeout.ErrorMessage())
	default:
		return api.NewBackendError("bedrock error: " + err.Error())
	}
}
