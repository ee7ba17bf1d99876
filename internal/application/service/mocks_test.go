package service

import (
	"context"
	"sync"

	"github.com/garyjia/grc-approval/internal/application/workflow"
	"github.com/garyjia/grc-approval/internal/domain/entity"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockNotificationRepo struct {
	created          []*entity.Notification
	createFunc       func(ctx context.Context, n *entity.Notification) error
	listByUserFunc   func(ctx context.Context, userID, status string, limit int) ([]*entity.Notification, error)
	updateStatusFunc func(ctx context.Context, id, status string) error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, n); err != nil {
			return err
		}
	}
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID, status string, limit int) ([]*entity.Notification, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, status, limit)
	}
	return nil, nil
}

func (m *mockNotificationRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

type mockRoleRepo struct {
	roles   map[string]*entity.Role
	members map[string][]string
	listErr error
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{roles: map[string]*entity.Role{}, members: map[string][]string{}}
}

func (m *mockRoleRepo) Upsert(ctx context.Context, role *entity.Role) error {
	m.roles[role.ID] = role
	return nil
}

func (m *mockRoleRepo) GetByID(ctx context.Context, id string) (*entity.Role, error) {
	return m.roles[id], nil
}

func (m *mockRoleRepo) Assign(ctx context.Context, userID, roleID string) error {
	m.members[roleID] = append(m.members[roleID], userID)
	return nil
}

func (m *mockRoleRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Role, error) {
	var out []*entity.Role
	for roleID, users := range m.members {
		for _, u := range users {
			if u == userID {
				out = append(out, m.roles[roleID])
			}
		}
	}
	return out, nil
}

func (m *mockRoleRepo) ListUserIDs(ctx context.Context, roleID string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.members[roleID], nil
}

type mockDefinitionRepo struct {
	defs      map[string]*entity.WorkflowDefinition
	createErr error
}

func (m *mockDefinitionRepo) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.defs[def.ID] = def
	return nil
}

func (m *mockDefinitionRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	return m.defs[id], nil
}

func (m *mockDefinitionRepo) List(ctx context.Context, entityType string) ([]*entity.WorkflowDefinition, error) {
	var out []*entity.WorkflowDefinition
	for _, d := range m.defs {
		if entityType == "" || d.EntityType == entityType {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockEngine struct {
	workflow.Engine
	getInstanceFunc func(ctx context.Context, id string) (*entity.InstanceDetail, error)
}

func (m *mockEngine) GetInstance(ctx context.Context, id string) (*entity.InstanceDetail, error) {
	return m.getInstanceFunc(ctx, id)
}

type mockStorage struct {
	saved map[string][]byte
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	m.saved[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return m.saved[path], nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.saved[path]
	return ok
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/archive/" + relativePath
}
