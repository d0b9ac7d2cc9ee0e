// Package policy describes how the language-model backend is allowed to use
// capabilities during a single completion, and which turns the completion
// returns.
package policy

import (
	"errors"
	"fmt"
)

// DefaultMaxAutonomousCalls bounds the capability rounds of a completion
// when a policy leaves MaxAutonomousCalls at zero.
const DefaultMaxAutonomousCalls = 10

// ReturnScope selects which turns a completion returns. The zero value is
// not a valid scope: callers must pick one.
type ReturnScope int

const (
	scopeUnset ReturnScope = iota
	// FullHistory returns the input conversation followed by the new turns.
	FullHistory
	// NewTurnsOnly returns only the turns produced by the completion.
	NewTurnsOnly
)

var scopeNames = map[ReturnScope]string{
	FullHistory:  "full_history",
	NewTurnsOnly: "new_turns_only",
}

// String returns the wire name of the scope.
func (s ReturnScope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ReturnScope(%d)", int(s))
}

// ParseReturnScope parses a wire name such as "new_turns_only".
func ParseReturnScope(s string) (ReturnScope, error) {
	for scope, name := range scopeNames {
		if name == s {
			return scope, nil
		}
	}
	return scopeUnset, fmt.Errorf("unknown return scope %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s ReturnScope) MarshalText() ([]byte, error) {
	if _, ok := scopeNames[s]; !ok {
		return nil, fmt.Errorf("cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so scopes can be read
// from YAML and JSON.
func (s *ReturnScope) UnmarshalText(b []byte) error {
	v, err := ParseReturnScope(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Policy governs one completion.
type Policy struct {
	// AllowAutonomousCalls lets the backend invoke exposed capabilities
	// without asking the caller. When false no capability is exposed.
	AllowAutonomousCalls bool `yaml:"allow_autonomous_calls" json:"allow_autonomous_calls"`

	// ReturnScope selects the turns the completion returns.
	ReturnScope ReturnScope `yaml:"return_scope" json:"return_scope"`

	// MaxAutonomousCalls is the maximum number of capability rounds before
	// the backend must answer in text. Zero means DefaultMaxAutonomousCalls.
	MaxAutonomousCalls int `yaml:"max_autonomous_calls" json:"max_autonomous_calls"`
}

// Default returns the policy used when nothing else is configured: the
// backend may call every exposed capability, and only new turns are returned.
func Default() Policy {
	return Policy{
		AllowAutonomousCalls: true,
		ReturnScope:          NewTurnsOnly,
		MaxAutonomousCalls:   DefaultMaxAutonomousCalls,
	}
}

// Validate reports every problem with the policy.
func (p Policy) Validate() error {
	var errs []error
	if _, ok := scopeNames[p.ReturnScope]; !ok {
		errs = append(errs, fmt.Errorf("return scope must be %q or %q",
			scopeNames[FullHistory], scopeNames[NewTurnsOnly]))
	}
	if p.MaxAutonomousCalls < 0 {
		errs = append(errs, fmt.Errorf("max autonomous calls must not be negative, got %d", p.MaxAutonomousCalls))
	}
	return errors.Join(errs...)
}

// MaxRounds returns the effective capability round limit.
func (p Policy) MaxRounds() int {
	if p.MaxAutonomousCalls <= 0 {
		return DefaultMaxAutonomousCalls
	}
	return p.MaxAutonomousCalls
}
