// Package weather is a capability module that reports current conditions
// and daily forecasts from an Open-Meteo compatible API.
package weather

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

// DefaultBaseURL is the public Open-Meteo endpoint.
const DefaultBaseURL = "https://api.open-meteo.com"

const (
	fnCurrent  = "current"
	fnForecast = "forecast"

	maxForecastDays = 16
)

var (
	currentParams  = json.RawMessage(`{"type":"object","properties":{"latitude":{"type":"number"},"longitude":{"type":"number"}},"required":["latitude","longitude"]}`)
	forecastParams = json.RawMessage(`{"type":"object","properties":{"latitude":{"type":"number"},"longitude":{"type":"number"},"days":{"type":"integer","minimum":1,"maximum":16,"description":"Number of days, default 3"}},"required":["latitude","longitude"]}`)
)

// Config configures the module.
type Config struct {
	BaseURL    string
	Units      string // "metric" (default) or "imperial"
	HTTPClient *http.Client
}

// Module implements capability.Module.
type Module struct {
	client   *rest.Client
	imperial bool
}

var _ capability.Module = (*Module)(nil)

// New creates the module.
func New(cfg Config) (*Module, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("weather: invalid base url %q: %w", cfg.BaseURL, err)
	}
	switch cfg.Units {
	case "", "metric", "imperial":
	default:
		return nil, fmt.Errorf("weather: unknown units %q", cfg.Units)
	}
	return &Module{
		client:   rest.New(cfg.BaseURL, cfg.HTTPClient),
		imperial: cfg.Units == "imperial",
	}, nil
}

func (m *Module) Description() string {
	return "Current weather and daily forecasts by coordinates"
}

func (m *Module) Functions() []capability.Function {
	return []capability.Function{
		{Name: fnCurrent, Description: "Gets the current weather at a latitude and longitude", Parameters: currentParams},
		{Name: fnForecast, Description: "Gets the daily weather forecast at a latitude and longitude", Parameters: forecastParams},
	}
}

type arguments struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Days      int      `json:"days"`
}

type forecastResponse struct {
	Current *struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WeatherCode   int     `json:"weather_code"`
		Precipitation float64 `json:"precipitation"`
	} `json:"current"`
	CurrentUnits map[string]string `json:"current_units"`
	Daily        *struct {
		Time          []string  `json:"time"`
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		Precipitation []float64 `json:"precipitation_sum"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"daily"`
	DailyUnits map[string]string `json:"daily_units"`
}

func (m *Module) Invoke(ctx context.Context, call capability.Call) (*capability.Result, error) {
	if call.Function != fnCurrent && call.Function != fnForecast {
		return capability.ErrorResult(call.ID, fmt.Sprintf("unknown function %q", call.Function)), nil
	}

	var args arguments
	if err := capability.DecodeArguments(call, &args); err != nil {
		return capability.ErrorResult(call.ID, err.Error()), nil
	}
	if args.Latitude == nil || args.Longitude == nil {
		return capability.ErrorResult(call.ID, "latitude and longitude are required"), nil
	}
	if *args.Latitude < -90 || *args.Latitude > 90 || *args.Longitude < -180 || *args.Longitude > 180 {
		return capability.ErrorResult(call.ID, "coordinates out of range"), nil
	}

	q := url.Values{
		"latitude":  {strconv.FormatFloat(*args.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(*args.Longitude, 'f', -1, 64)},
		"timezone":  {"auto"},
	}
	if m.imperial {
		q.Set("temperature_unit", "fahrenheit")
		q.Set("wind_speed_unit", "mph")
		q.Set("precipitation_unit", "inch")
	}

	if call.Function == fnCurrent {
		q.Set("current", "temperature_2m,wind_speed_10m,precipitation,weather_code")
	} else {
		days := args.Days
		if days <= 0 {
			days = 3
		}
		days = min(days, maxForecastDays)
		q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code")
		q.Set("forecast_days", strconv.Itoa(days))
	}

	var fr forecastResponse
	if err := m.client.GetJSON(ctx, "/v1/forecast", q, &fr); err != nil {
		return nil, fmt.Errorf("weather lookup: %w", err)
	}

	if call.Function == fnCurrent {
		if fr.Current == nil {
			return capability.ErrorResult(call.ID, "no current conditions available"), nil
		}
		c := fr.Current
		out := fmt.Sprintf("%s: %s, %.1f%s, wind %.1f %s, precipitation %.1f %s",
			c.Time, describe(c.WeatherCode),
			c.Temperature, fr.CurrentUnits["temperature_2m"],
			c.WindSpeed, fr.CurrentUnits["wind_speed_10m"],
			c.Precipitation, fr.CurrentUnits["precipitation"])
		return &capability.Result{CallID: call.ID, Output: out}, nil
	}

	if fr.Daily == nil || len(fr.Daily.Time) == 0 {
		return capability.ErrorResult(call.ID, "no forecast available"), nil
	}
	d := fr.Daily
	unit := fr.DailyUnits["temperature_2m_max"]
	var b strings.Builder
	for i, day := range d.Time {
		fmt.Fprintf(&b, "%s: %s, %.1f%s to %.1f%s", day, describe(at(d.WeatherCode, i)),
			atf(d.TempMin, i), unit, atf(d.TempMax, i), unit)
		if i < len(d.Precipitation) {
			fmt.Fprintf(&b, ", precipitation %.1f %s", d.Precipitation[i], fr.DailyUnits["precipitation_sum"])
		}
		b.WriteByte('\n')
	}
	return &capability.Result{CallID: call.ID, Output: b.String()}, nil
}

func at(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return -1
}

func atf(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// describe maps WMO weather interpretation codes to text.
func describe(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code >= 1 && code <= 3:
		return "partly cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	}
	return "unknown conditions"
}
