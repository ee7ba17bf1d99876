package event

// Type identifies the type of change feed event
type Type string

const (
	TypeApprovalCreated   Type = "approval.created"
	TypeApprovalDecided   Type = "approval.decided"
	TypeInstanceCreated   Type = "instance.created"
	TypeInstanceAdvanced  Type = "instance.advanced"
	TypeInstanceCompleted Type = "instance.completed"
	TypeInstanceRejected  Type = "instance.rejected"
	TypeInstanceStale     Type = "instance.stale"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApprovalCreated,
		TypeApprovalDecided,
		TypeInstanceCreated,
		TypeInstanceAdvanced,
		TypeInstanceCompleted,
		TypeInstanceRejected,
		TypeInstanceStale:
		return true
	default:
		return false
	}
}

// IsApprovalEvent reports whether the event is a row change on the approval table
func (t Type) IsApprovalEvent() bool {
	return t == TypeApprovalCreated || t == TypeApprovalDecided
}
