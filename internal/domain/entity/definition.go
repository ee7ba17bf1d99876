package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/grc-approval/internal/domain/errs"
)

// WorkflowDefinition is an immutable approval template. A step's position is its step number.
type WorkflowDefinition struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	EntityType  string         `json:"entity_type" yaml:"entity_type"`
	Steps       []WorkflowStep `json:"steps" yaml:"steps"`
	CreatedAt   time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time      `json:"updated_at" yaml:"-"`
}

// WorkflowStep is one stage of a definition
type WorkflowStep struct {
	Step              int      `json:"step" yaml:"step"`
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description,omitempty" yaml:"description,omitempty"`
	ApproverRoles     []string `json:"approver_roles" yaml:"approver_roles"`
	RequiredApprovals int      `json:"required_approvals" yaml:"required_approvals"`
}

// StepAt returns the step at index n
func (d *WorkflowDefinition) StepAt(n int) (WorkflowStep, bool) {
	if n < 0 || n >= len(d.Steps) {
		return WorkflowStep{}, false
	}
	return d.Steps[n], true
}

// IsLastStep reports whether n is the final step
func (d *WorkflowDefinition) IsLastStep(n int) bool {
	return n == len(d.Steps)-1
}

// Validate returns a ValidationError for the first structural defect of the definition.
// Quorum achievability against real role membership is checked by the definition service.
func (d *WorkflowDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errs.Invalid("name", "must not be empty")
	}
	if strings.TrimSpace(d.EntityType) == "" {
		return errs.Invalid("entity_type", "must not be empty")
	}
	if len(d.Steps) == 0 {
		return errs.Invalid("steps", "definition has no steps")
	}

	for i, s := range d.Steps {
		prefix := fmt.Sprintf("steps[%d]", i)
		if s.Step != i {
			return errs.Invalid(prefix+".step", fmt.Sprintf("step number %d does not match position %d", s.Step, i))
		}
		if strings.TrimSpace(s.Name) == "" {
			return errs.Invalid(prefix+".name", "must not be empty")
		}
		if len(s.ApproverRoles) == 0 {
			return errs.Invalid(prefix+".approver_roles", "must list at least one role")
		}
		seen := make(map[string]bool, len(s.ApproverRoles))
		for _, r := range s.ApproverRoles {
			if strings.TrimSpace(r) == "" {
				return errs.Invalid(prefix+".approver_roles", "role id must not be empty")
			}
			if seen[r] {
				return errs.Invalid(prefix+".approver_roles", fmt.Sprintf("duplicate role %q", r))
			}
			seen[r] = true
		}
		if s.RequiredApprovals < 1 {
			return errs.Invalid(prefix+".required_approvals", "must be at least 1")
		}
	}

	return nil
}
