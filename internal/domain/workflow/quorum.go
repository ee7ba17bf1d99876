package workflow

// Decision statuses counted by quorum evaluation
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Tally is the count of decisions at one step
type Tally struct {
	Approved int
	Rejected int
	Pending  int
}

// Count tallies a step's approval statuses
func Count(statuses []string) Tally {
	var t Tally
	for _, s := range statuses {
		switch s {
		case ApprovalApproved:
			t.Approved++
		case ApprovalRejected:
			t.Rejected++
		default:
			t.Pending++
		}
	}
	return t
}

// Evaluate decides what the step's tally means for the instance.
// Rejection dominates approval. The second result is false while quorum is not met.
func Evaluate(t Tally, required int, lastStep bool) (Trigger, bool) {
	switch {
	case t.Rejected > 0:
		return TriggerReject, true
	case t.Approved >= required:
		if lastStep {
			return TriggerComplete, true
		}
		return TriggerAdvance, true
	default:
		return "", false
	}
}
