package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record and sets its ID
func (r *HistoryRepository) Create(ctx context.Context, history *entity.InstanceHistory) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_instance_history (
			instance_id, action, from_status, to_status, from_step, to_step,
			actor_id, approval_id, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		history.InstanceID,
		history.Action,
		history.FromStatus,
		history.ToStatus,
		history.FromStep,
		history.ToStep,
		history.ActorID,
		history.ApprovalID,
		history.Comment,
		utc(history.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("instance_id", history.InstanceID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByInstanceID returns an instance's audit trail in insertion order
func (r *HistoryRepository) GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.InstanceHistory, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, instance_id, action, from_status, to_status, from_step, to_step,
			actor_id, approval_id, comment, created_at
		FROM workflow_instance_history
		WHERE instance_id = ?
		ORDER BY id ASC
	`, instanceID)
	if err != nil {
		r.logger.Error("Failed to get history by instance ID", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.InstanceHistory
	for rows.Next() {
		var record entity.InstanceHistory
		if err := rows.Scan(
			&record.ID,
			&record.InstanceID,
			&record.Action,
			&record.FromStatus,
			&record.ToStatus,
			&record.FromStep,
			&record.ToStep,
			&record.ActorID,
			&record.ApprovalID,
			&record.Comment,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}
