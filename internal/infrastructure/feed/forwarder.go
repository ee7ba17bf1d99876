package feed

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/event"
)

const forwarderHandlerName = "feed-forwarder"

// Forwarder relays every dispatched event to an external publisher
type Forwarder struct {
	publisher  port.EventPublisher
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewForwarder creates a new forwarder
func NewForwarder(publisher port.EventPublisher, d dispatcher.Dispatcher, logger *zap.Logger) *Forwarder {
	return &Forwarder{publisher: publisher, dispatcher: d, logger: logger}
}

// Start subscribes to all event types
func (f *Forwarder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isRunning {
		return fmt.Errorf("feed forwarder already running")
	}
	f.dispatcher.Subscribe(dispatcher.AnyType, forwarderHandlerName, f.forward)
	f.isRunning = true
	return nil
}

// Stop unsubscribes and closes the publisher
func (f *Forwarder) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isRunning {
		return nil
	}
	f.dispatcher.Unsubscribe(dispatcher.AnyType, forwarderHandlerName)
	f.isRunning = false
	return f.publisher.Close()
}

// Name returns the worker name for identification
func (f *Forwarder) Name() string {
	return "FeedForwarder"
}

func (f *Forwarder) forward(ctx context.Context, evt *event.Event) error {
	if err := f.publisher.Publish(ctx, evt); err != nil {
		f.logger.Error("Failed to forward change feed event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Error(err))
		return err
	}
	return nil
}
