package port

import (
	"context"
	"time"

	"github.com/garyjia/grc-approval/internal/domain/entity"
)

// DefinitionRepository defines persistence operations for WorkflowDefinition.
// Definitions are immutable once created.
type DefinitionRepository interface {
	Create(ctx context.Context, def *entity.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error)
	List(ctx context.Context, entityType string) ([]*entity.WorkflowDefinition, error)
}

// InstanceRepository defines persistence operations for WorkflowInstance
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error)
	List(ctx context.Context, filter entity.InstanceFilter) ([]*entity.WorkflowInstance, error)

	// UpdateProgress moves the instance only if it is still at (fromStep, fromStatus).
	// It returns false when another writer got there first.
	UpdateProgress(ctx context.Context, id string, fromStep int, fromStatus string, toStep int, toStatus string) (bool, error)

	// ListStale returns non-terminal instances not updated since before, ordered by
	// (updated_at, id). A non-nil after resumes strictly past that row.
	ListStale(ctx context.Context, before time.Time, after *entity.InstanceCursor, limit int) ([]*entity.WorkflowInstance, error)
}

// ApprovalRepository defines persistence operations for WorkflowApproval
type ApprovalRepository interface {
	// CreateBatch inserts all approvals of one step
	CreateBatch(ctx context.Context, approvals []*entity.WorkflowApproval) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowApproval, error)

	// Decide sets status and comment only while the approval is pending.
	// It returns false when the approval was already decided.
	Decide(ctx context.Context, id, status, comment string, at time.Time) (bool, error)

	ListByInstanceStep(ctx context.Context, instanceID string, step int) ([]*entity.WorkflowApproval, error)
	ListByInstance(ctx context.Context, instanceID string) ([]*entity.WorkflowApproval, error)

	// ListPendingByApprover returns pending approvals joined with instance and definition, newest first
	ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.PendingApproval, error)
}

// HistoryRepository defines persistence operations for InstanceHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.InstanceHistory) error
	GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.InstanceHistory, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByUser(ctx context.Context, userID, status string, limit int) ([]*entity.Notification, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// RoleRepository defines persistence operations for Role and UserRole
type RoleRepository interface {
	Upsert(ctx context.Context, role *entity.Role) error
	GetByID(ctx context.Context, id string) (*entity.Role, error)
	Assign(ctx context.Context, userID, roleID string) error
	ListByUser(ctx context.Context, userID string) ([]*entity.Role, error)
	ListUserIDs(ctx context.Context, roleID string) ([]string, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
