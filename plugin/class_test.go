package plugin

import (
	"testing"
)

type sampleType struct{}

func TestClassOf(t *testing.T) {
	c := ClassOf(&sampleType{})
	if c.Pkg != "github.com/lcx/keel/plugin" || c.Name != "sampleType" {
		t.Errorf("unexpected class %v", c)
	}
	if ClassOf(sampleType{}) != c {
		t.Error("pointer and value must yield the same class")
	}
	if !ClassOf(nil).IsZero() {
		t.Error("nil must yield the zero class")
	}
	if !ClassOf(42).IsZero() {
		t.Error("predeclared types must yield the zero class")
	}
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass("example.com/cache.Store")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Pkg != "example.com/cache" || c.Name != "Store" {
		t.Errorf("unexpected class %v", c)
	}
	if c.String() != "example.com/cache.Store" {
		t.Errorf("unexpected string %q", c.String())
	}

	for _, bad := range []string{"", "nodot", "pkg.", ".Name", "a/b/c"} {
		if _, err := ParseClass(bad); err == nil {
			t.Errorf("ParseClass(%q) expected error", bad)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateStarting, "STARTING"},
		{StateRunning, "RUNNING"},
		{StateStopping, "STOPPING"},
		{StateFailed, "FAILED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
	if StateIdle.Active() || StateFailed.Active() {
		t.Error("idle and failed must not be active")
	}
	if !StateRunning.Active() || !StateStarting.Active() || !StateStopping.Active() {
		t.Error("starting, running and stopping must be active")
	}
}
