package workflow

import (
	"context"

	"github.com/garyjia/grc-approval/internal/domain/entity"
)

// Engine runs multi-step approval workflows: instantiate, decide, list pending
type Engine interface {
	// Instantiate starts a definition against a business entity and fans out step 0
	Instantiate(ctx context.Context, req InstantiateRequest) (*entity.WorkflowInstance, error)

	// Decide records an approver's decision and advances or terminates the instance
	Decide(ctx context.Context, req DecideRequest) (*entity.WorkflowApproval, error)

	// ListPending returns the approver's pending approvals with instance and definition
	ListPending(ctx context.Context, approverID string) ([]*entity.PendingApproval, error)

	// GetInstance returns an instance with its definition, approvals and history
	GetInstance(ctx context.Context, id string) (*entity.InstanceDetail, error)

	// ListInstances returns instances matching filter, newest first
	ListInstances(ctx context.Context, filter entity.InstanceFilter) ([]*entity.WorkflowInstance, error)
}

// InstantiateRequest identifies the definition and the entity that needs approval
type InstantiateRequest struct {
	DefinitionID string `json:"definition_id"`
	EntityID     string `json:"entity_id"`
	EntityType   string `json:"entity_type"`
	EntityTitle  string `json:"entity_title"`
	ActorID      string `json:"actor_id,omitempty"`
}

// DecideRequest is an approver's decision on one approval row
type DecideRequest struct {
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment,omitempty"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
