package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/application/service"
	"github.com/garyjia/grc-approval/internal/domain/errs"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/grc-approval/pkg/database"
	"github.com/garyjia/grc-approval/pkg/utils"
)

const sample = `
roles:
  - id: risk-manager
    name: Risk Manager
    permissions: [risk:write]
  - id: ciso
    name: CISO
    permissions: [workflow:bypass]
assignments:
  - user_id: alice
    role_id: risk-manager
  - user_id: bob
    role_id: risk-manager
  - user_id: carol
    role_id: ciso
definitions:
  - id: risk-acceptance
    name: Risk acceptance
    entity_type: risk
    steps:
      - step: 0
        name: Review
        approver_roles: [risk-manager]
        required_approvals: 2
      - step: 1
        name: Sign-off
        approver_roles: [ciso]
        required_approvals: 1
`

func TestParse(t *testing.T) {
	b, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, b.Roles, 2)
	assert.Equal(t, []string{"risk:write"}, b.Roles[0].Permissions)
	require.Len(t, b.Assignments, 3)
	require.Len(t, b.Definitions, 1)
	assert.Equal(t, 2, b.Definitions[0].Steps[0].RequiredApprovals)
	assert.Equal(t, []string{"ciso"}, b.Definitions[0].Steps[1].ApproverRoles)

	_, err = Parse([]byte("   \n"))
	assert.Error(t, err)

	_, err = Parse([]byte("definitions:\n  - name: x\n    requierd: 1\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	b, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, b.Definitions, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "grc.db")}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	_, err = database.NewMigrator(db, zap.NewNop()).Run(context.Background(), database.Migrations())
	require.NoError(t, err)

	logger := utils.NewKVLogger(zap.NewNop())
	rbac := service.NewRBACService(repository.NewRoleRepository(db.DB, zap.NewNop()), logger)
	defs := service.NewDefinitionService(repository.NewDefinitionRepository(db.DB, zap.NewNop()), rbac, logger)
	ctx := context.Background()

	b, err := Parse([]byte(sample))
	require.NoError(t, err)
	res, err := Apply(ctx, b, rbac, defs, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Roles: 2, Assignments: 3, Definitions: 1}, res)

	b, err = Parse([]byte(sample))
	require.NoError(t, err)
	res, err = Apply(ctx, b, rbac, defs, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped, "re-seeding is idempotent")

	broken, err := Parse([]byte(`
definitions:
  - name: Too strict
    entity_type: control
    steps:
      - step: 0
        name: Review
        approver_roles: [ciso]
        required_approvals: 3
`))
	require.NoError(t, err)
	_, err = Apply(ctx, broken, rbac, defs, zap.NewNop())
	assert.ErrorIs(t, err, errs.ErrValidation)
}
