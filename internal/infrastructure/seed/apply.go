package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/application/service"
	"github.com/garyjia/grc-approval/internal/domain/errs"
)

// Result counts what Apply wrote
type Result struct {
	Roles       int
	Assignments int
	Definitions int
	Skipped     int
}

// Apply writes roles, then assignments, then definitions, so that quorum
// checks on definitions see the seeded role members. Definitions whose id
// already exists are skipped; any other failure stops the run.
func Apply(ctx context.Context, b *Bundle, rbac service.RBACService, definitions service.DefinitionService, logger *zap.Logger) (Result, error) {
	var res Result

	for i := range b.Roles {
		if err := rbac.SaveRole(ctx, &b.Roles[i]); err != nil {
			return res, fmt.Errorf("role %q: %w", b.Roles[i].ID, err)
		}
		res.Roles++
	}

	for _, a := range b.Assignments {
		if err := rbac.AssignRole(ctx, a.UserID, a.RoleID); err != nil {
			return res, fmt.Errorf("assign %q to %q: %w", a.RoleID, a.UserID, err)
		}
		res.Assignments++
	}

	for i := range b.Definitions {
		def := &b.Definitions[i]
		if _, err := definitions.Create(ctx, def); err != nil {
			if errors.Is(err, errs.ErrConflict) {
				logger.Info("Definition already present, skipping", zap.String("id", def.ID))
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("definition %q: %w", def.Name, err)
		}
		res.Definitions++
	}

	logger.Info("Seed applied",
		zap.Int("roles", res.Roles),
		zap.Int("assignments", res.Assignments),
		zap.Int("definitions", res.Definitions),
		zap.Int("skipped", res.Skipped))
	return res, nil
}
