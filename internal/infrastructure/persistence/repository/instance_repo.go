package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

const instanceColumns = `id, definition_id, entity_id, entity_type, entity_title, created_by,
	current_step, status, created_at, updated_at, completed_at`

// Create inserts a workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		instance.ID,
		instance.DefinitionID,
		instance.EntityID,
		instance.EntityType,
		instance.EntityTitle,
		instance.CreatedBy,
		instance.CurrentStep,
		instance.Status,
		utc(instance.CreatedAt),
		utc(instance.UpdatedAt),
		nullTime(instance.CompletedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}
	return nil
}

// GetByID returns nil when the instance does not exist
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances WHERE id = ?`, id)

	instance, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// List returns instances matching filter, newest first
func (r *InstanceRepository) List(ctx context.Context, filter entity.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	var where []string
	var args []interface{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return r.query(ctx, query, args...)
}

// UpdateProgress is a compare-and-set on (current_step, status)
func (r *InstanceRepository) UpdateProgress(ctx context.Context, id string, fromStep int, fromStatus string, toStep int, toStatus string) (bool, error) {
	now := r.now().UTC()
	var completedAt sql.NullTime
	if entity.IsTerminalInstanceStatus(toStatus) {
		completedAt = sql.NullTime{Time: now, Valid: true}
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_instances
		SET current_step = ?, status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ? AND current_step = ? AND status = ?
	`, toStep, toStatus, now, completedAt, id, fromStep, fromStatus)
	if err != nil {
		r.logger.Error("Failed to update instance progress", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update instance progress: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListStale returns pending or in-progress instances idle since before, oldest first.
// Pages are keyed on (updated_at, id) so ties on updated_at are never skipped.
func (r *InstanceRepository) ListStale(ctx context.Context, before time.Time, after *entity.InstanceCursor, limit int) ([]*entity.WorkflowInstance, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE status IN (?, ?) AND updated_at < ?`
	args := []interface{}{entity.InstanceStatusPending, entity.InstanceStatusInProgress, before.UTC()}
	if after != nil {
		at := after.UpdatedAt.UTC()
		query += ` AND (updated_at > ? OR (updated_at = ? AND id > ?))`
		args = append(args, at, at, after.ID)
	}
	query += ` ORDER BY updated_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	return r.query(ctx, query, args...)
}

func (r *InstanceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowInstance, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query instances", zap.Error(err))
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func scanInstance(s rowScanner) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	var completedAt sql.NullTime
	if err := s.Scan(
		&instance.ID,
		&instance.DefinitionID,
		&instance.EntityID,
		&instance.EntityType,
		&instance.EntityTitle,
		&instance.CreatedBy,
		&instance.CurrentStep,
		&instance.Status,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	instance.CompletedAt = timePtr(completedAt)
	return &instance, nil
}
