package workflow

import (
	"fmt"
	"sort"
)

// StateMachine tracks the status of one workflow instance and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has a transition from the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger or returns ErrInvalidTransition, leaving the state unchanged
	Fire(trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current state, sorted
	PermittedTriggers() []Trigger
}

type transitionTable map[State]map[Trigger]State

// Builder collects transitions and produces independent state machines
type Builder struct {
	table transitionTable
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{table: make(transitionTable)}
}

// Permit allows trigger to move from one state to another.
// Panics on unknown states or a conflicting target since the table is assembled at startup.
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}

	byTrigger, ok := b.table[from]
	if !ok {
		byTrigger = make(map[Trigger]State)
		b.table[from] = byTrigger
	}
	if existing, ok := byTrigger[trigger]; ok && existing != to {
		panic(fmt.Sprintf("trigger %s from %s already goes to %s", trigger, from, existing))
	}
	byTrigger[trigger] = to

	return b
}

// Build returns a machine positioned at initial. Later builder changes do not affect it.
func (b *Builder) Build(initial State) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}

	table := make(transitionTable, len(b.table))
	for from, byTrigger := range b.table {
		copied := make(map[Trigger]State, len(byTrigger))
		for trigger, to := range byTrigger {
			copied[trigger] = to
		}
		table[from] = copied
	}

	return &stateMachine{current: initial, table: table}
}

type stateMachine struct {
	current State
	table   transitionTable
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.table[m.current][trigger]
	return ok
}

func (m *stateMachine) Fire(trigger Trigger) error {
	to, ok := m.table[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	byTrigger := m.table[m.current]
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
