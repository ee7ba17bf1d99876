package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// RoleRepository implements port.RoleRepository. Permissions are stored as a JSON array.
type RoleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB, logger *zap.Logger) port.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts a role or replaces its name, description and permissions
func (r *RoleRepository) Upsert(ctx context.Context, role *entity.Role) error {
	perms := role.Permissions
	if perms == nil {
		perms = []string{}
	}
	encoded, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO roles (id, name, description, permissions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			permissions = excluded.permissions
	`, role.ID, role.Name, role.Description, string(encoded), utc(role.CreatedAt))
	if err != nil {
		r.logger.Error("Failed to upsert role", zap.String("id", role.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert role: %w", err)
	}
	return nil
}

// GetByID returns nil when the role does not exist
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*entity.Role, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, description, permissions, created_at FROM roles WHERE id = ?`, id)

	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get role", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// Assign gives userID the role. Assigning twice is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, userID, roleID string) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, role_id) DO NOTHING
	`, userID, roleID, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to assign role", zap.String("user_id", userID), zap.String("role_id", roleID), zap.Error(err))
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// ListByUser returns the roles assigned to a user ordered by role id
func (r *RoleRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Role, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT ro.id, ro.name, ro.description, ro.permissions, ro.created_at
		FROM roles ro
		JOIN user_roles ur ON ur.role_id = ro.id
		WHERE ur.user_id = ?
		ORDER BY ro.id ASC
	`, userID)
	if err != nil {
		r.logger.Error("Failed to list user roles", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var roles []*entity.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListUserIDs returns the members of a role in assignment order
func (r *RoleRepository) ListUserIDs(ctx context.Context, roleID string) ([]string, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT user_id FROM user_roles WHERE role_id = ? ORDER BY created_at ASC, user_id ASC
	`, roleID)
	if err != nil {
		r.logger.Error("Failed to list role members", zap.String("role_id", roleID), zap.Error(err))
		return nil, fmt.Errorf("failed to list role members: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role member: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func scanRole(s rowScanner) (*entity.Role, error) {
	var role entity.Role
	var perms string
	if err := s.Scan(&role.ID, &role.Name, &role.Description, &perms, &role.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(perms), &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions of role %s: %w", role.ID, err)
	}
	return &role, nil
}
