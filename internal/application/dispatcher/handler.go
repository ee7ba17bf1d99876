package dispatcher

import (
	"context"

	"github.com/garyjia/grc-approval/internal/domain/event"
)

// AnyType subscribes a handler to every event type
const AnyType event.Type = "*"

// Handler processes change feed events
type Handler func(ctx context.Context, evt *event.Event) error

// Filter selects the events a stream receives
type Filter func(evt *event.Event) bool

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// ForApprover keeps approval row events addressed to one approver
func ForApprover(approverID string) Filter {
	return func(evt *event.Event) bool {
		return evt.Type.IsApprovalEvent() && evt.IsFor(approverID)
	}
}
