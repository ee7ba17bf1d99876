package service

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/domain/errs"
)

// PermissionBypassApproval lets a user skip creating an approval workflow
const PermissionBypassApproval = "workflow:bypass"

// RBACService answers role and permission questions and resolves approver roles to users
type RBACService interface {
	port.RoleResolver

	GetUserRoles(ctx context.Context, userID string) ([]*entity.Role, error)
	HasPermission(ctx context.Context, userID, permission string) (bool, error)
	GetUsersByRole(ctx context.Context, roleID string) ([]string, error)

	// CanBypassApproval reports whether the user may act without starting a workflow
	CanBypassApproval(ctx context.Context, userID string) (bool, error)

	SaveRole(ctx context.Context, role *entity.Role) error
	AssignRole(ctx context.Context, userID, roleID string) error
}

type rbacServiceImpl struct {
	roleRepo port.RoleRepository
	logger   Logger
}

// NewRBACService creates a new RBACService
func NewRBACService(roleRepo port.RoleRepository, logger Logger) RBACService {
	return &rbacServiceImpl{roleRepo: roleRepo, logger: logger}
}

func (s *rbacServiceImpl) GetUserRoles(ctx context.Context, userID string) ([]*entity.Role, error) {
	roles, err := s.roleRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get user roles", "user_id", userID, "error", err)
		return nil, errs.Store("list user roles", err)
	}
	return roles, nil
}

func (s *rbacServiceImpl) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.HasPermission(permission) {
			return true, nil
		}
	}
	return false, nil
}

func (s *rbacServiceImpl) GetUsersByRole(ctx context.Context, roleID string) ([]string, error) {
	users, err := s.roleRepo.ListUserIDs(ctx, roleID)
	if err != nil {
		s.logger.Error("Failed to get users by role", "role_id", roleID, "error", err)
		return nil, errs.Store("list role users", err)
	}
	return users, nil
}

func (s *rbacServiceImpl) CanBypassApproval(ctx context.Context, userID string) (bool, error) {
	return s.HasPermission(ctx, userID, PermissionBypassApproval)
}

// ResolveApprovers expands each role to its members. A role without members
// stands for itself so that steps naming unmanaged principals still fan out.
func (s *rbacServiceImpl) ResolveApprovers(ctx context.Context, roles []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, role := range roles {
		users, err := s.GetUsersByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			add(role)
			continue
		}
		for _, u := range users {
			add(u)
		}
	}
	return out, nil
}

func (s *rbacServiceImpl) SaveRole(ctx context.Context, role *entity.Role) error {
	if strings.TrimSpace(role.ID) == "" {
		return errs.Invalid("id", "must not be empty")
	}
	if role.Name == "" {
		role.Name = role.ID
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now()
	}
	if err := s.roleRepo.Upsert(ctx, role); err != nil {
		return errs.Store("save role", err)
	}
	s.logger.Info("Role saved", "role_id", role.ID, "permissions", len(role.Permissions))
	return nil
}

func (s *rbacServiceImpl) AssignRole(ctx context.Context, userID, roleID string) error {
	if userID == "" || roleID == "" {
		return errs.Invalid("user_role", "user_id and role_id are required")
	}
	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return errs.Store("get role", err)
	}
	if role == nil {
		return errs.NotFound("role", roleID)
	}
	if err := s.roleRepo.Assign(ctx, userID, roleID); err != nil {
		return errs.Store("assign role", err)
	}
	s.logger.Info("Role assigned", "user_id", userID, "role_id", roleID)
	return nil
}
