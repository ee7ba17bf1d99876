package port

import (
	"context"

	"github.com/garyjia/grc-approval/internal/domain/event"
)

// RoleResolver expands approver roles into concrete approver identities
type RoleResolver interface {
	// ResolveApprovers returns the distinct principals designated by roles, in role order
	ResolveApprovers(ctx context.Context, roles []string) ([]string, error)
}

// Notice is a fire-and-forget notification addressed to one or more users
type Notice struct {
	Recipients        []string
	Title             string
	Message           string
	Type              string
	RelatedEntityType string
	RelatedEntityID   string
}

// NotificationSink accepts notices. Failures are reported but must not block a workflow transition.
type NotificationSink interface {
	Notify(ctx context.Context, notice Notice) error
}

// EventPublisher forwards change feed events outside the process
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Close() error
}
