package workflow

// Trigger represents the outcome of a quorum evaluation that moves an instance
type Trigger string

const (
	// TriggerAdvance moves the instance to the next step
	TriggerAdvance Trigger = "ADVANCE"
	// TriggerComplete finishes the instance after the last step met quorum
	TriggerComplete Trigger = "COMPLETE"
	// TriggerReject terminates the instance after any rejection at the current step
	TriggerReject Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
