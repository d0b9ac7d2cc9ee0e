package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/palaver/pkg/capability"
	"github.com/rhuss/palaver/pkg/capability/datetime"
	"github.com/rhuss/palaver/pkg/capability/geocoding"
	"github.com/rhuss/palaver/pkg/capability/mcp"
	"github.com/rhuss/palaver/pkg/capability/weather"
	"github.com/rhuss/palaver/pkg/capability/websearch"
	"github.com/rhuss/palaver/pkg/config"
	"github.com/rhuss/palaver/pkg/debug"
)

// buildRegistry registers every enabled capability module and seals the
// registry. On error, modules registered so far are closed.
func buildRegistry(ctx context.Context, cfg *config.Config) (_ *capability.Registry, err error) {
	reg := capability.New()
	defer func() {
		if err != nil {
			err = errors.Join(err, reg.Close())
		}
	}()

	caps := cfg.Capabilities

	if caps.DateTime.Enabled {
		var opts []datetime.Option
		if caps.DateTime.TimeZone != "" {
			loc, err := time.LoadLocation(caps.DateTime.TimeZone)
			if err != nil {
				return nil, fmt.Errorf("datetime: %w", err)
			}
			opts = append(opts, datetime.WithLocation(loc))
		}
		if err := reg.Register("datetime", datetime.New(opts...)); err != nil {
			return nil, err
		}
	}

	if caps.Geocoding.Enabled {
		m, err := geocoding.New(geocoding.Config{
			BaseURL:    caps.Geocoding.BaseURL,
			APIKey:     caps.Geocoding.APIKey,
			MaxResults: caps.Geocoding.MaxResults,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register("geocoding", m); err != nil {
			return nil, err
		}
	}

	if caps.Weather.Enabled {
		m, err := weather.New(weather.Config{
			BaseURL: caps.Weather.BaseURL,
			Units:   caps.Weather.Units,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register("weather", m); err != nil {
			return nil, err
		}
	}

	if caps.WebSearch.Enabled {
		m, err := websearch.New(websearch.Config{
			Backend:    caps.WebSearch.Backend,
			URL:        caps.WebSearch.URL,
			MaxResults: caps.WebSearch.MaxResults,
			Language:   caps.WebSearch.Language,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register("websearch", m); err != nil {
			return nil, err
		}
	}

	for _, sc := range caps.MCP {
		if err := registerMCP(ctx, reg, sc); err != nil {
			return nil, err
		}
	}

	reg.Seal()
	debug.Log("capabilities", "registry sealed", "modules", reg.Names())
	return reg, nil
}

// registerMCP connects to one MCP server. The session lives as long as ctx,
// so ctx must not be a short-lived handshake context.
func registerMCP(ctx context.Context, reg *capability.Registry, sc mcp.ServerConfig) error {
	m, err := mcp.Connect(ctx, sc)
	if err != nil {
		return err
	}
	if err := reg.Register(sc.Name, m); err != nil {
		return errors.Join(err, m.Close())
	}
	return nil
}
