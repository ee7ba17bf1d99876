package entity

// Status constants for WorkflowInstance
const (
	InstanceStatusPending    = "pending"
	InstanceStatusInProgress = "in_progress"
	InstanceStatusCompleted  = "completed"
	InstanceStatusRejected   = "rejected"
)

// Status constants for WorkflowApproval
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Notification type constants
const (
	NotificationTypeInfo    = "info"
	NotificationTypeWarning = "warning"
	NotificationTypeSuccess = "success"
	NotificationTypeError   = "error"
)

// Notification status constants
const (
	NotificationStatusUnread   = "unread"
	NotificationStatusRead     = "read"
	NotificationStatusArchived = "archived"
)

// History action constants
const (
	ActionInstantiated = "INSTANTIATED"
	ActionAdvanced     = "ADVANCED"
	ActionCompleted    = "COMPLETED"
	ActionRejected     = "REJECTED"
)

// IsTerminalInstanceStatus reports whether an instance status can no longer change
func IsTerminalInstanceStatus(status string) bool {
	return status == InstanceStatusCompleted || status == InstanceStatusRejected
}

// IsDecision reports whether status is a valid approver decision
func IsDecision(status string) bool {
	return status == ApprovalStatusApproved || status == ApprovalStatusRejected
}
