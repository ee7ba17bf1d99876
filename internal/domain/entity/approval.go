package entity

import "time"

// WorkflowApproval is one approver's decision for one instance at one step
type WorkflowApproval struct {
	ID         string     `json:"id"`
	InstanceID string     `json:"instance_id"`
	Step       int        `json:"step"`
	ApproverID string     `json:"approver_id"`
	Status     string     `json:"status"`
	Comment    string     `json:"comment,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

// IsPending reports whether the approver has not decided yet
func (a *WorkflowApproval) IsPending() bool {
	return a.Status == ApprovalStatusPending
}

// PendingApproval is a pending approval joined with its instance and definition
type PendingApproval struct {
	Approval   *WorkflowApproval   `json:"approval"`
	Instance   *WorkflowInstance   `json:"instance"`
	Definition *WorkflowDefinition `json:"definition"`
}

// StepName returns the display name of the approval's step
func (p *PendingApproval) StepName() string {
	if p.Definition == nil || p.Approval == nil {
		return ""
	}
	if s, ok := p.Definition.StepAt(p.Approval.Step); ok {
		return s.Name
	}
	return ""
}

// WorkflowName returns the display name of the definition
func (p *PendingApproval) WorkflowName() string {
	if p.Definition == nil {
		return ""
	}
	return p.Definition.Name
}
