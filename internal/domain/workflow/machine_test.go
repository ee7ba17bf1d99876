package workflow

import (
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateInProgress, false},
		{StateCompleted, true},
		{StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"completed", StateCompleted, true},
		{"uppercase", State("PENDING"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_PanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	NewBuilder().Permit(StatePending, TriggerAdvance, State("bogus"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("bogus"))
}

func TestBuilder_PanicsOnConflictingTarget(t *testing.T) {
	b := NewBuilder().Permit(StatePending, TriggerAdvance, StateInProgress)
	b.Permit(StatePending, TriggerAdvance, StateInProgress)

	defer func() {
		if recover() == nil {
			t.Error("Permit() should panic when a trigger already goes elsewhere")
		}
	}()
	b.Permit(StatePending, TriggerAdvance, StateCompleted)
}

func TestStateMachine_Independence(t *testing.T) {
	b := NewBuilder().Permit(StatePending, TriggerAdvance, StateInProgress)

	m1 := b.Build(StatePending)
	m2 := b.Build(StatePending)
	b.Permit(StatePending, TriggerReject, StateRejected)

	if err := m1.Fire(TriggerAdvance); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m2.State() != StatePending {
		t.Errorf("m2 state = %v, want %v", m2.State(), StatePending)
	}
	if m2.CanFire(TriggerReject) {
		t.Error("machines built earlier must not see later builder changes")
	}
}

func TestInstanceMachine_Transitions(t *testing.T) {
	tests := []struct {
		from    State
		trigger Trigger
		want    State
		wantErr bool
	}{
		{StatePending, TriggerAdvance, StateInProgress, false},
		{StatePending, TriggerComplete, StateCompleted, false},
		{StatePending, TriggerReject, StateRejected, false},
		{StateInProgress, TriggerAdvance, StateInProgress, false},
		{StateInProgress, TriggerComplete, StateCompleted, false},
		{StateInProgress, TriggerReject, StateRejected, false},
		{StateCompleted, TriggerAdvance, StateCompleted, true},
		{StateCompleted, TriggerReject, StateCompleted, true},
		{StateRejected, TriggerComplete, StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			m := NewInstanceMachine(tt.from)
			err := m.Fire(tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
				}
			} else if err != nil {
				t.Errorf("Fire() failed: %v", err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %v, want %v", m.State(), tt.want)
			}
		})
	}
}

func TestInstanceMachine_PermittedTriggers(t *testing.T) {
	got := NewInstanceMachine(StateInProgress).PermittedTriggers()
	want := []Trigger{TriggerAdvance, TriggerComplete, TriggerReject}
	if len(got) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if n := len(NewInstanceMachine(StateCompleted).PermittedTriggers()); n != 0 {
		t.Errorf("terminal state has %d triggers, want 0", n)
	}
}
