// Package datetime is a capability module that tells the model the current
// date and time and converts between time zones.
package datetime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	_ "time/tzdata" // zone lookups must work in minimal containers

	"github.com/rhuss/palaver/pkg/capability"
)

const (
	fnNow       = "now"
	fnToday     = "today"
	fnConvert   = "convert"
	fnDayOfWeek = "day_of_week"
)

var (
	timezoneParams = json.RawMessage(`{"type":"object","properties":{"timezone":{"type":"string","description":"IANA time zone such as Europe/Berlin. Defaults to the server's zone."}}}`)
	convertParams  = json.RawMessage(`{"type":"object","properties":{"time":{"type":"string","description":"Time in RFC 3339 format, e.g. 2025-03-01T14:00:00Z"},"to_timezone":{"type":"string","description":"Target IANA time zone"}},"required":["time","to_timezone"]}`)
	dateParams     = json.RawMessage(`{"type":"object","properties":{"date":{"type":"string","description":"Date in YYYY-MM-DD format"}},"required":["date"]}`)
)

// Module implements capability.Module.
type Module struct {
	now      func() time.Time
	location *time.Location
}

var _ capability.Module = (*Module)(nil)

// Option configures a Module.
type Option func(*Module)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// WithLocation sets the zone used when the model names none.
func WithLocation(loc *time.Location) Option {
	return func(m *Module) { m.location = loc }
}

// New creates the module.
func New(opts ...Option) *Module {
	m := &Module{now: time.Now, location: time.Local}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Module) Description() string {
	return "Current date and time, time zone conversion"
}

func (m *Module) Functions() []capability.Function {
	return []capability.Function{
		{Name: fnNow, Description: "Get the current date and time", Parameters: timezoneParams},
		{Name: fnToday, Description: "Get today's date", Parameters: timezoneParams},
		{Name: fnConvert, Description: "Convert a point in time to another time zone", Parameters: convertParams},
		{Name: fnDayOfWeek, Description: "Get the day of the week for a date", Parameters: dateParams},
	}
}

func (m *Module) Invoke(_ context.Context, call capability.Call) (*capability.Result, error) {
	var args struct {
		Timezone   string `json:"timezone"`
		Time       string `json:"time"`
		ToTimezone string `json:"to_timezone"`
		Date       string `json:"date"`
	}
	if err := capability.DecodeArguments(call, &args); err != nil {
		return capability.ErrorResult(call.ID, err.Error()), nil
	}

	switch call.Function {
	case fnNow, fnToday:
		loc, err := m.zone(args.Timezone)
		if err != nil {
			return capability.ErrorResult(call.ID, err.Error()), nil
		}
		now := m.now().In(loc)
		if call.Function == fnToday {
			return &capability.Result{CallID: call.ID, Output: now.Format("Monday, January 2, 2006")}, nil
		}
		return &capability.Result{CallID: call.ID, Output: now.Format("Monday, January 2, 2006 15:04:05 MST")}, nil

	case fnConvert:
		t, err := time.Parse(time.RFC3339, args.Time)
		if err != nil {
			return capability.ErrorResult(call.ID, fmt.Sprintf("time must be RFC 3339: %v", err)), nil
		}
		loc, err := m.zone(args.ToTimezone)
		if err != nil {
			return capability.ErrorResult(call.ID, err.Error()), nil
		}
		return &capability.Result{CallID: call.ID, Output: t.In(loc).Format(time.RFC3339)}, nil

	case fnDayOfWeek:
		d, err := time.Parse(time.DateOnly, args.Date)
		if err != nil {
			return capability.ErrorResult(call.ID, fmt.Sprintf("date must be YYYY-MM-DD: %v", err)), nil
		}
		return &capability.Result{CallID: call.ID, Output: d.Weekday().String()}, nil
	}

	return capability.ErrorResult(call.ID, fmt.Sprintf("unknown function %q", call.Function)), nil
}

func (m *Module) zone(name string) (*time.Location, error) {
	if name == "" {
		return m.location, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", name)
	}
	return loc, nil
}
