package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/application/service"
	"github.com/garyjia/grc-approval/internal/domain/event"
	"go.uber.org/zap"
)

const archiveHandlerName = "audit-archive"

// ArchiveWorker writes the audit workbook of every instance that reaches a
// terminal state to file storage.
type ArchiveWorker struct {
	exporter   service.ExportService
	dispatcher dispatcher.Dispatcher
	timeout    time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(exporter service.ExportService, d dispatcher.Dispatcher, timeout time.Duration, logger *zap.Logger) *ArchiveWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArchiveWorker{
		exporter:   exporter,
		dispatcher: d,
		timeout:    timeout,
		logger:     logger,
	}
}

// Start subscribes to terminal instance events
func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("archive worker already running")
	}
	w.dispatcher.Subscribe(event.TypeInstanceCompleted, archiveHandlerName, w.handle)
	w.dispatcher.Subscribe(event.TypeInstanceRejected, archiveHandlerName, w.handle)
	w.isRunning = true
	return nil
}

// Stop removes the subscriptions
func (w *ArchiveWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}
	w.dispatcher.Unsubscribe(event.TypeInstanceCompleted, archiveHandlerName)
	w.dispatcher.Unsubscribe(event.TypeInstanceRejected, archiveHandlerName)
	w.isRunning = false
	return nil
}

// Name returns the worker name for identification
func (w *ArchiveWorker) Name() string {
	return "ArchiveWorker"
}

func (w *ArchiveWorker) handle(ctx context.Context, evt *event.Event) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	path, err := w.exporter.Archive(ctx, evt.InstanceID)
	if err != nil {
		w.logger.Error("Failed to archive audit trail",
			zap.String("instance_id", evt.InstanceID),
			zap.String("event_type", evt.Type.String()),
			zap.Error(err))
		return err
	}

	w.logger.Info("Audit trail archived",
		zap.String("instance_id", evt.InstanceID),
		zap.String("path", path))
	return nil
}
