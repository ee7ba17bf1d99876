package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/domain/event"
	"go.uber.org/zap"
)

// StaleWorkerConfig holds configuration for the stale instance detector
type StaleWorkerConfig struct {
	PollInterval time.Duration
	StaleAfter   time.Duration
	BatchSize    int
}

// DefaultStaleWorkerConfig returns default configuration
func DefaultStaleWorkerConfig() StaleWorkerConfig {
	return StaleWorkerConfig{
		PollInterval: 5 * time.Minute,
		StaleAfter:   72 * time.Hour,
		BatchSize:    100,
	}
}

// StaleInstanceWorker reports pending or in-progress instances that have not
// moved for longer than StaleAfter. Each instance is reported once per idle period.
type StaleInstanceWorker struct {
	config     StaleWorkerConfig
	instances  port.InstanceRepository
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	reported  map[string]time.Time
}

// NewStaleInstanceWorker creates a new stale instance worker
func NewStaleInstanceWorker(config StaleWorkerConfig, instances port.InstanceRepository, d dispatcher.Dispatcher, logger *zap.Logger) *StaleInstanceWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultStaleWorkerConfig().BatchSize
	}
	return &StaleInstanceWorker{
		config:     config,
		instances:  instances,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
		reported:   make(map[string]time.Time),
	}
}

// Start begins the polling loop
func (w *StaleInstanceWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("stale instance worker already running")
	}
	if w.config.PollInterval <= 0 || w.config.StaleAfter <= 0 {
		return fmt.Errorf("stale instance worker needs positive poll interval and threshold")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("StaleInstanceWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Duration("stale_after", w.config.StaleAfter))

	go w.pollLoop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current scan to finish
func (w *StaleInstanceWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Name returns the worker name for identification
func (w *StaleInstanceWorker) Name() string {
	return "StaleInstanceWorker"
}

func (w *StaleInstanceWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Scan(ctx); err != nil {
				w.logger.Error("Failed to scan for stale instances", zap.Error(err))
			}
		}
	}
}

// Scan runs one detection pass and returns how many instances were reported
func (w *StaleInstanceWorker) Scan(ctx context.Context) (int, error) {
	now := w.now()
	stale, err := w.listStale(ctx, now.Add(-w.config.StaleAfter))
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]time.Time, len(stale))
	count := 0
	for _, inst := range stale {
		current[inst.ID] = inst.UpdatedAt
		if last, ok := w.reported[inst.ID]; ok && last.Equal(inst.UpdatedAt) {
			continue
		}

		idle := now.Sub(inst.UpdatedAt)
		w.logger.Warn("Workflow instance is stale",
			zap.String("instance_id", inst.ID),
			zap.String("status", inst.Status),
			zap.Int("current_step", inst.CurrentStep),
			zap.Duration("idle", idle))

		w.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeInstanceStale, inst.ID, map[string]interface{}{
			"status":       inst.Status,
			"current_step": inst.CurrentStep,
			"entity_type":  inst.EntityType,
			"entity_id":    inst.EntityID,
			"idle_seconds": int64(idle.Seconds()),
		}))
		count++
	}
	w.reported = current

	return count, nil
}

// listStale pages through every stale instance, BatchSize rows at a time
func (w *StaleInstanceWorker) listStale(ctx context.Context, before time.Time) ([]*entity.WorkflowInstance, error) {
	var (
		all   []*entity.WorkflowInstance
		after *entity.InstanceCursor
	)
	for {
		page, err := w.instances.ListStale(ctx, before, after, w.config.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list stale instances: %w", err)
		}
		all = append(all, page...)
		if len(page) < w.config.BatchSize {
			return all, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last := page[len(page)-1]
		after = &entity.InstanceCursor{UpdatedAt: last.UpdatedAt, ID: last.ID}
	}
}
