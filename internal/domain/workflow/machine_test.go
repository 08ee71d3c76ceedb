package workflow

import (
	"errors"
	"reflect"
	"testing"
)

const (
	alice Identity = "alice"
	bob   Identity = "bob"
)

func TestParseStates(t *testing.T) {
	got := ParseStates([]string{"DRAFT", "IN REVIEW"})
	want := []State{"DRAFT", "IN REVIEW"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseStates() = %v, want %v", got, want)
	}

	if ids := ParseIdentities([]string{"alice"}); !reflect.DeepEqual(ids, []Identity{alice}) {
		t.Errorf("ParseIdentities() = %v, want [alice]", ids)
	}
}

func TestStrings(t *testing.T) {
	got := Strings([]Identity{bob, alice})
	if !reflect.DeepEqual(got, []string{"bob", "alice"}) {
		t.Errorf("Strings() = %v, want [bob alice]", got)
	}

	empty := Strings[State](nil)
	if empty == nil || len(empty) != 0 {
		t.Errorf("Strings(nil) = %#v, want an empty non-nil slice", empty)
	}
}

func TestNewRule_Dedupes(t *testing.T) {
	rule := NewRule(
		[]State{"PENDING", "REJECTED", "PENDING"},
		[]Identity{bob, alice, bob},
	)

	wantDest := []State{"PENDING", "REJECTED"}
	wantAppr := []Identity{bob, alice}
	if !reflect.DeepEqual(rule.Destinations, wantDest) {
		t.Errorf("Destinations = %v, want %v", rule.Destinations, wantDest)
	}
	if !reflect.DeepEqual(rule.Approvers, wantAppr) {
		t.Errorf("Approvers = %v, want %v", rule.Approvers, wantAppr)
	}
}

func TestRule_Check(t *testing.T) {
	rule := NewRule([]State{"PENDING"}, []Identity{alice})

	tests := []struct {
		name    string
		rule    *Rule
		to      State
		caller  Identity
		wantErr error
	}{
		{"authorized approver", &rule, "PENDING", alice, nil},
		{"undeclared destination", &rule, "APPROVED", alice, ErrInvalidState},
		{"undeclared destination beats bad caller", &rule, "APPROVED", bob, ErrInvalidState},
		{"valid destination wrong caller", &rule, "PENDING", bob, ErrUnauthorized},
		{"no rule", nil, "PENDING", alice, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Check("DRAFT", tt.to, tt.caller)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Check() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err    error
		code   Code
		engine bool
	}{
		{ErrNotFound, CodeNotFound, true},
		{ErrUnauthorized, CodeUnauthorized, true},
		{ErrInvalidState, CodeInvalidState, true},
		{errors.New("disk full"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code, ok := CodeOf(tt.err)
			if code != tt.code || ok != tt.engine {
				t.Errorf("CodeOf() = (%d, %v), want (%d, %v)", code, ok, tt.code, tt.engine)
			}
		})
	}

	if CodeInvalidState != 102 {
		t.Errorf("CodeInvalidState = %d, must stay 102", CodeInvalidState)
	}
}

func draftToPending() []Definition {
	return []Definition{
		{State: "DRAFT", Rule: NewRule([]State{"PENDING"}, []Identity{alice})},
	}
}

func TestStateMachine_Fire(t *testing.T) {
	machine := NewMachine("DRAFT", draftToPending())

	if err := machine.Fire("PENDING", alice); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != "PENDING" {
		t.Errorf("State after Fire() = %v, want PENDING", machine.State())
	}

	// No rule out of PENDING: dead end.
	err := machine.Fire("APPROVED", alice)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidState)
	}
	if code, _ := CodeOf(err); code != 102 {
		t.Errorf("CodeOf() = %d, want 102", code)
	}
}

func TestStateMachine_FailedFireKeepsState(t *testing.T) {
	machine := NewMachine("DRAFT", draftToPending())

	if err := machine.Fire("PENDING", bob); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Fire() error = %v, want %v", err, ErrUnauthorized)
	}
	if machine.State() != "DRAFT" {
		t.Errorf("State should remain DRAFT after failed Fire(), got %v", machine.State())
	}
}

func TestStateMachine_Independence(t *testing.T) {
	defs := draftToPending()
	machine1 := NewMachine("DRAFT", defs)
	machine2 := NewMachine("DRAFT", defs)

	if err := machine1.Fire("PENDING", alice); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if machine2.State() != "DRAFT" {
		t.Errorf("machine2 state = %v, want DRAFT (machines should be independent)", machine2.State())
	}
}

func TestStateMachine_FireIntoDeadEnd(t *testing.T) {
	machine := NewMachine("DRAFT", []Definition{
		{State: "DRAFT", Rule: NewRule([]State{"PENDING", "CANCELLED"}, []Identity{alice})},
	})

	if err := machine.Fire("CANCELLED", alice); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if err := machine.Check("DRAFT", alice); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Check() from dead end error = %v, want %v", err, ErrInvalidState)
	}
}

func TestNewMachine_LaterDefinitionReplaces(t *testing.T) {
	machine := NewMachine("DRAFT", []Definition{
		{State: "DRAFT", Rule: NewRule([]State{"PENDING"}, []Identity{alice})},
		{State: "DRAFT", Rule: NewRule([]State{"REJECTED"}, []Identity{bob})},
	})

	if err := machine.Check("PENDING", alice); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Check() error = %v, want %v", err, ErrInvalidState)
	}
	if err := machine.Check("REJECTED", bob); err != nil {
		t.Errorf("Check() unexpected error: %v", err)
	}
}

func TestReachable(t *testing.T) {
	defs := []Definition{
		{State: "DRAFT", Rule: NewRule([]State{"PENDING", "CANCELLED"}, []Identity{alice})},
		{State: "PENDING", Rule: NewRule([]State{"APPROVED", "REJECTED"}, []Identity{bob})},
		{State: "ORPHAN", Rule: NewRule([]State{"DRAFT"}, []Identity{bob})},
	}

	reachable, deadEnds := Reachable("DRAFT", defs)

	wantReachable := []State{"DRAFT", "PENDING", "CANCELLED", "APPROVED", "REJECTED"}
	wantDeadEnds := []State{"CANCELLED", "APPROVED", "REJECTED"}
	if !reflect.DeepEqual(reachable, wantReachable) {
		t.Errorf("reachable = %v, want %v", reachable, wantReachable)
	}
	if !reflect.DeepEqual(deadEnds, wantDeadEnds) {
		t.Errorf("deadEnds = %v, want %v", deadEnds, wantDeadEnds)
	}
}

func TestReachable_InitialWithoutRule(t *testing.T) {
	reachable, deadEnds := Reachable("START", nil)

	if !reflect.DeepEqual(reachable, []State{"START"}) {
		t.Errorf("reachable = %v, want [START]", reachable)
	}
	if !reflect.DeepEqual(deadEnds, []State{"START"}) {
		t.Errorf("deadEnds = %v, want [START]", deadEnds)
	}
}
