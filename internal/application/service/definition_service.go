package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/domain/errs"
)

// DefinitionService authors workflow definitions
type DefinitionService interface {
	// Create validates and stores a definition. When a role resolver is configured
	// every step's quorum must be reachable by the approvers its roles resolve to.
	Create(ctx context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error)
	Get(ctx context.Context, id string) (*entity.WorkflowDefinition, error)
	List(ctx context.Context, entityType string) ([]*entity.WorkflowDefinition, error)
}

type definitionServiceImpl struct {
	definitionRepo port.DefinitionRepository
	resolver       port.RoleResolver
	logger         Logger
}

// NewDefinitionService creates a new DefinitionService. resolver may be nil.
func NewDefinitionService(definitionRepo port.DefinitionRepository, resolver port.RoleResolver, logger Logger) DefinitionService {
	return &definitionServiceImpl{
		definitionRepo: definitionRepo,
		resolver:       resolver,
		logger:         logger,
	}
}

func (s *definitionServiceImpl) Create(ctx context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkQuorum(ctx, def); err != nil {
		return nil, err
	}

	if def.ID == "" {
		def.ID = uuid.NewString()
	} else {
		existing, err := s.definitionRepo.GetByID(ctx, def.ID)
		if err != nil {
			return nil, errs.Store("get definition", err)
		}
		if existing != nil {
			return nil, errs.Conflict("workflow definition", def.ID, "already exists")
		}
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.definitionRepo.Create(ctx, def); err != nil {
		s.logger.Error("Failed to create definition", "name", def.Name, "error", err)
		return nil, errs.Store("create definition", err)
	}

	s.logger.Info("Workflow definition created", "id", def.ID, "name", def.Name, "steps", len(def.Steps))
	return def, nil
}

// checkQuorum rejects steps whose required approvals exceed the distinct approvers available
func (s *definitionServiceImpl) checkQuorum(ctx context.Context, def *entity.WorkflowDefinition) error {
	for _, step := range def.Steps {
		available := len(step.ApproverRoles)
		if s.resolver != nil {
			approvers, err := s.resolver.ResolveApprovers(ctx, step.ApproverRoles)
			if err != nil {
				return errs.Store("resolve approvers", err)
			}
			if len(approvers) > 0 {
				available = len(approvers)
			}
		}
		if step.RequiredApprovals > available {
			return errs.Invalid(fmt.Sprintf("steps[%d].required_approvals", step.Step),
				fmt.Sprintf("requires %d approvals but only %d approvers are reachable", step.RequiredApprovals, available))
		}
	}
	return nil
}

func (s *definitionServiceImpl) Get(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	def, err := s.definitionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errs.Store("get definition", err)
	}
	if def == nil {
		return nil, errs.NotFound("workflow definition", id)
	}
	return def, nil
}

func (s *definitionServiceImpl) List(ctx context.Context, entityType string) ([]*entity.WorkflowDefinition, error) {
	defs, err := s.definitionRepo.List(ctx, entityType)
	if err != nil {
		return nil, errs.Store("list definitions", err)
	}
	return defs, nil
}
