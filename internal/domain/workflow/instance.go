package workflow

var instanceTransitions = NewBuilder().
	Permit(StatePending, TriggerAdvance, StateInProgress).
	Permit(StatePending, TriggerComplete, StateCompleted).
	Permit(StatePending, TriggerReject, StateRejected).
	Permit(StateInProgress, TriggerAdvance, StateInProgress).
	Permit(StateInProgress, TriggerComplete, StateCompleted).
	Permit(StateInProgress, TriggerReject, StateRejected)

// NewInstanceMachine returns the lifecycle machine of a workflow instance positioned at current.
// Terminal states have no outgoing transitions.
func NewInstanceMachine(current State) StateMachine {
	return instanceTransitions.Build(current)
}
