package entity

import "time"

// WorkflowInstance is one running execution of a definition against a business entity
type WorkflowInstance struct {
	ID           string     `json:"id"`
	DefinitionID string     `json:"definition_id"`
	EntityID     string     `json:"entity_id"`
	EntityType   string     `json:"entity_type"`
	EntityTitle  string     `json:"entity_title"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CurrentStep  int        `json:"current_step"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// InstanceCursor is the last row of a page ordered by (updated_at, id)
type InstanceCursor struct {
	UpdatedAt time.Time
	ID        string
}

// IsTerminal reports whether the instance is completed or rejected
func (i *WorkflowInstance) IsTerminal() bool {
	return IsTerminalInstanceStatus(i.Status)
}

// InstanceFilter narrows instance listings. Empty fields match everything.
type InstanceFilter struct {
	Status     string
	EntityType string
	EntityID   string
	Limit      int
}

// InstanceDetail is an instance with everything needed to render it
type InstanceDetail struct {
	Instance   *WorkflowInstance   `json:"instance"`
	Definition *WorkflowDefinition `json:"definition"`
	Approvals  []*WorkflowApproval `json:"approvals"`
	History    []*InstanceHistory  `json:"history"`
}
