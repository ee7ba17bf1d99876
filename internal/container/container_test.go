package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/garyjia/grc-approval/internal/application/workflow"
	"github.com/garyjia/grc-approval/internal/domain/entity"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "grc.db")
	cfg.Export.Dir = filepath.Join(dir, "exports")
	cfg.Server.Host = "127.0.0.1"
	cfg.Workflow.StaleCheckInterval = time.Hour
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewContainer(nil, logger)
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Feed.Enabled = true
	cfg.Feed.URL = ""
	_, err = NewContainer(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.url")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, c.Serve(ctx), "serving before start")

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start")

	health := c.Health(ctx)
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.True(t, health.Components["database"].Healthy)
	assert.NotNil(t, c.Server())
	// stale detector and archiver; no feed forwarder without NATS
	assert.Equal(t, 2, c.Workers().GetWorkerCount())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(ctx), "start after close")
}

func TestContainer_ApprovalArchivedOnCompletion(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	svc := c.Services()
	require.NoError(t, svc.RBAC.SaveRole(ctx, &entity.Role{ID: "reviewer", Name: "Reviewer"}))
	require.NoError(t, svc.RBAC.AssignRole(ctx, "alice", "reviewer"))

	_, err = svc.Definitions.Create(ctx, &entity.WorkflowDefinition{
		ID:         "policy-exception",
		Name:       "Policy exception",
		EntityType: "policy",
		Steps: []entity.WorkflowStep{
			{Step: 0, Name: "Review", ApproverRoles: []string{"reviewer"}, RequiredApprovals: 1},
		},
	})
	require.NoError(t, err)

	instance, err := svc.Engine.Instantiate(ctx, workflow.InstantiateRequest{
		DefinitionID: "policy-exception",
		EntityID:     "pol-7",
		EntityType:   "policy",
		EntityTitle:  "Password rotation",
		ActorID:      "owner",
	})
	require.NoError(t, err)

	pending, err := svc.Engine.ListPending(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = svc.Engine.Decide(ctx, workflow.DecideRequest{
		ApprovalID: pending[0].Approval.ID,
		Decision:   entity.ApprovalStatusApproved,
	})
	require.NoError(t, err)

	detail, err := svc.Engine.GetInstance(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InstanceStatusCompleted, detail.Instance.Status)

	notices, err := c.Repositories().Notification.ListByUser(ctx, "alice", "", 10)
	require.NoError(t, err)
	assert.Len(t, notices, 1)

	pattern := filepath.Join(cfg.Export.Dir, "*", "workflow-"+instance.ID+".xlsx")
	assert.Eventually(t, func() bool {
		matches, _ := filepath.Glob(pattern)
		return len(matches) == 1
	}, 5*time.Second, 20*time.Millisecond)
}
