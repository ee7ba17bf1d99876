package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `id, instance_id, step, approver_id, status, comment, created_at, updated_at, decided_at`

// CreateBatch inserts all approvals of one step in a single transaction
func (r *ApprovalRepository) CreateBatch(ctx context.Context, approvals []*entity.WorkflowApproval) error {
	if len(approvals) == 0 {
		return nil
	}

	insert := func(exec sqlite.Executor) error {
		for _, a := range approvals {
			_, err := exec.ExecContext(ctx, `
				INSERT INTO workflow_approvals (`+approvalColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				a.ID,
				a.InstanceID,
				a.Step,
				a.ApproverID,
				a.Status,
				a.Comment,
				utc(a.CreatedAt),
				utc(a.UpdatedAt),
				nullTime(a.DecidedAt),
			)
			if err != nil {
				r.logger.Error("Failed to create approval",
					zap.String("instance_id", a.InstanceID),
					zap.String("approver_id", a.ApproverID),
					zap.Error(err))
				return fmt.Errorf("failed to create approval for %s: %w", a.ApproverID, err)
			}
		}
		return nil
	}

	if sqlite.InTransaction(ctx) {
		return insert(sqlite.Conn(ctx, r.db))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := insert(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit approvals: %w", err)
	}
	return nil
}

// GetByID returns nil when the approval does not exist
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowApproval, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM workflow_approvals WHERE id = ?`, id)

	approval, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return approval, nil
}

// Decide applies a decision only while the approval is still pending
func (r *ApprovalRepository) Decide(ctx context.Context, id, status, comment string, at time.Time) (bool, error) {
	at = at.UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_approvals
		SET status = ?, comment = ?, updated_at = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`, status, comment, at, at, id, entity.ApprovalStatusPending)
	if err != nil {
		r.logger.Error("Failed to decide approval", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to decide approval: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByInstanceStep returns the approvals of one step in creation order
func (r *ApprovalRepository) ListByInstanceStep(ctx context.Context, instanceID string, step int) ([]*entity.WorkflowApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+` FROM workflow_approvals
		WHERE instance_id = ? AND step = ?
		ORDER BY created_at ASC, id ASC
	`, instanceID, step)
}

// ListByInstance returns every approval of an instance ordered by step
func (r *ApprovalRepository) ListByInstance(ctx context.Context, instanceID string) ([]*entity.WorkflowApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+` FROM workflow_approvals
		WHERE instance_id = ?
		ORDER BY step ASC, created_at ASC, id ASC
	`, instanceID)
}

// ListPendingByApprover joins pending approvals with their instance and definition
func (r *ApprovalRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.PendingApproval, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT
			a.id, a.instance_id, a.step, a.approver_id, a.status, a.comment,
			a.created_at, a.updated_at, a.decided_at,
			i.id, i.definition_id, i.entity_id, i.entity_type, i.entity_title, i.created_by,
			i.current_step, i.status, i.created_at, i.updated_at, i.completed_at,
			d.id, d.name, d.description, d.entity_type, d.steps, d.created_at, d.updated_at
		FROM workflow_approvals a
		JOIN workflow_instances i ON i.id = a.instance_id
		JOIN workflow_definitions d ON d.id = i.definition_id
		WHERE a.approver_id = ? AND a.status = ?
		ORDER BY a.created_at DESC, a.id ASC
	`, approverID, entity.ApprovalStatusPending)
	if err != nil {
		r.logger.Error("Failed to list pending approvals", zap.String("approver_id", approverID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	defer rows.Close()

	var out []*entity.PendingApproval
	for rows.Next() {
		var (
			a                    entity.WorkflowApproval
			i                    entity.WorkflowInstance
			d                    entity.WorkflowDefinition
			decidedAt, completed sql.NullTime
			steps                string
		)
		if err := rows.Scan(
			&a.ID, &a.InstanceID, &a.Step, &a.ApproverID, &a.Status, &a.Comment,
			&a.CreatedAt, &a.UpdatedAt, &decidedAt,
			&i.ID, &i.DefinitionID, &i.EntityID, &i.EntityType, &i.EntityTitle, &i.CreatedBy,
			&i.CurrentStep, &i.Status, &i.CreatedAt, &i.UpdatedAt, &completed,
			&d.ID, &d.Name, &d.Description, &d.EntityType, &steps, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending approval: %w", err)
		}
		a.DecidedAt = timePtr(decidedAt)
		i.CompletedAt = timePtr(completed)
		if err := decodeSteps(steps, &d); err != nil {
			return nil, err
		}
		out = append(out, &entity.PendingApproval{Approval: &a, Instance: &i, Definition: &d})
	}
	return out, rows.Err()
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowApproval, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query approvals", zap.Error(err))
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*entity.WorkflowApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

func scanApproval(s rowScanner) (*entity.WorkflowApproval, error) {
	var a entity.WorkflowApproval
	var decidedAt sql.NullTime
	if err := s.Scan(
		&a.ID,
		&a.InstanceID,
		&a.Step,
		&a.ApproverID,
		&a.Status,
		&a.Comment,
		&a.CreatedAt,
		&a.UpdatedAt,
		&decidedAt,
	); err != nil {
		return nil, err
	}
	a.DecidedAt = timePtr(decidedAt)
	return &a, nil
}
