// Package geocoding is a capability module that resolves place names to
// coordinates and back, using a geocode.maps.co compatible API.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rhuss/palaver/pkg/capability"
	"github.com/rhuss/palaver/pkg/capability/rest"
)

// DefaultBaseURL is the public geocode.maps.co endpoint.
const DefaultBaseURL = "https://geocode.maps.co"

const (
	fnSearch  = "search"
	fnReverse = "reverse"
)

var (
	searchParams  = json.RawMessage(`{"type":"object","properties":{"location":{"type":"string","description":"The name of the location, e.g. Seattle, WA"}},"required":["location"]}`)
	reverseParams = json.RawMessage(`{"type":"object","properties":{"latitude":{"type":"number"},"longitude":{"type":"number"}},"required":["latitude","longitude"]}`)
)

// Config configures the module.
type Config struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	HTTPClient *http.Client
}

// Module implements capability.Module.
type Module struct {
	client     *rest.Client
	apiKey     string
	maxResults int
}

var _ capability.Module = (*Module)(nil)

// New creates the module. The API key is required by the public service.
func New(cfg Config) (*Module, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("geocoding: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	return &Module{
		client:     rest.New(cfg.BaseURL, cfg.HTTPClient),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
	}, nil
}

func (m *Module) Description() string {
	return "Latitude and longitude lookup for place names"
}

func (m *Module) Functions() []capability.Function {
	return []capability.Function{
		{Name: fnSearch, Description: "Gets the latitude and longitude for a location", Parameters: searchParams},
		{Name: fnReverse, Description: "Gets the address at a latitude and longitude", Parameters: reverseParams},
	}
}

// place is one entry of the geocoder's reply. Coordinates arrive as strings.
type place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
}

func (m *Module) Invoke(ctx context.Context, call capability.Call) (*capability.Result, error) {
	switch call.Function {
	case fnSearch:
		return m.search(ctx, call)
	case fnReverse:
		return m.reverse(ctx, call)
	}
	return capability.ErrorResult(call.ID, fmt.Sprintf("unknown function %q", call.Function)), nil
}

func (m *Module) search(ctx context.Context, call capability.Call) (*capability.Result, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := capability.DecodeArguments(call, &args); err != nil {
		return capability.ErrorResult(call.ID, err.Error()), nil
	}
	if strings.TrimSpace(args.Location) == "" {
		return capability.ErrorResult(call.ID, "location must not be empty"), nil
	}

	var places []place
	if err := m.client.GetJSON(ctx, "/search", m.query(url.Values{"q": {args.Location}}), &places); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", args.Location, err)
	}
	if len(places) == 0 {
		return &capability.Result{CallID: call.ID, Output: fmt.Sprintf("No location found for %q.", args.Location)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Locations matching %q:\n", args.Location)
	for i, p := range places {
		if i >= m.maxResults {
			break
		}
		fmt.Fprintf(&b, "%d. %s (latitude %s, longitude %s)\n", i+1, p.DisplayName, p.Lat, p.Lon)
	}
	return &capability.Result{CallID: call.ID, Output: b.String()}, nil
}

func (m *Module) reverse(ctx context.Context, call capability.Call) (*capability.Result, error) {
	var args struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := capability.DecodeArguments(call, &args); err != nil {
		return capability.ErrorResult(call.ID, err.Error()), nil
	}
	if args.Latitude == nil || args.Longitude == nil {
		return capability.ErrorResult(call.ID, "latitude and longitude are required"), nil
	}

	q := m.query(url.Values{
		"lat": {strconv.FormatFloat(*args.Latitude, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(*args.Longitude, 'f', -1, 64)},
	})
	var p place
	if err := m.client.GetJSON(ctx, "/reverse", q, &p); err != nil {
		return nil, fmt.Errorf("reverse geocoding: %w", err)
	}
	if p.DisplayName == "" {
		return &capability.Result{CallID: call.ID, Output: "No address found at these coordinates."}, nil
	}
	return &capability.Result{CallID: call.ID, Output: p.DisplayName}, nil
}

func (m *Module) query(q url.Values) url.Values {
	if m.apiKey != "" {
		q.Set("api_key", m.apiKey)
	}
	return q
}
