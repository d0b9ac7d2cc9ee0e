package policy

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	p := Default()
	if !p.AllowAutonomousCalls {
		t.Error("default policy should allow autonomous calls")
	}
	if p.ReturnScope != NewTurnsOnly {
		t.Errorf("ReturnScope = %s, want new_turns_only", p.ReturnScope)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"full history", Policy{ReturnScope: FullHistory}, false},
		{"new turns only with cap", Policy{AllowAutonomousCalls: true, ReturnScope: NewTurnsOnly, MaxAutonomousCalls: 3}, false},
		{"zero value", Policy{}, true},
		{"out of range scope", Policy{ReturnScope: ReturnScope(42)}, true},
		{"negative cap", Policy{ReturnScope: FullHistory, MaxAutonomousCalls: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxRounds(t *testing.T) {
	if got := (Policy{}).MaxRounds(); got != DefaultMaxAutonomousCalls {
		t.Errorf("MaxRounds() = %d, want %d", got, DefaultMaxAutonomousCalls)
	}
	if got := (Policy{MaxAutonomousCalls: 2}).MaxRounds(); got != 2 {
		t.Errorf("MaxRounds() = %d, want 2", got)
	}
}

func TestParseReturnScope(t *testing.T) {
	for _, s := range []ReturnScope{FullHistory, NewTurnsOnly} {
		got, err := ParseReturnScope(s.String())
		if err != nil || got != s {
			t.Errorf("ParseReturnScope(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseReturnScope("NEW_TURNS_ONLY"); err == nil {
		t.Error("expected error for upper-case name")
	}
	if _, err := ParseReturnScope(""); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestPolicyYAML(t *testing.T) {
	var p Policy
	data := []byte("allow_autonomous_calls: true\nreturn_scope: full_history\nmax_autonomous_calls: 4\n")
	if err := yaml.Unmarshal(data, &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := Policy{AllowAutonomousCalls: true, ReturnScope: FullHistory, MaxAutonomousCalls: 4}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}

	if err := yaml.Unmarshal([]byte("return_scope: sometimes\n"), &p); err == nil {
		t.Error("expected error for unknown scope")
	}
}

func TestPolicyJSON(t *testing.T) {
	data, err := json.Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Policy
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != Default() {
		t.Errorf("got %+v, want %+v", got, Default())
	}

	if _, err := json.Marshal(Policy{}); err == nil {
		t.Error("marshalling an unset scope should fail")
	}
}
