package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/application/service"
	"github.com/garyjia/grc-approval/internal/application/workflow"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/domain/event"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/grc-approval/pkg/database"
	"github.com/garyjia/grc-approval/pkg/utils"
)

type testEnv struct {
	router     *gin.Engine
	dispatcher dispatcher.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "grc.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = database.NewMigrator(db, zap.NewNop()).Run(context.Background(), database.Migrations())
	require.NoError(t, err)

	zl := zap.NewNop()
	logger := utils.NewKVLogger(zl)
	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })

	rbac := service.NewRBACService(repository.NewRoleRepository(db.DB, zl), logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db.DB, zl), logger)
	definitionRepo := repository.NewDefinitionRepository(db.DB, zl)
	engine := workflow.NewEngine(
		definitionRepo,
		repository.NewInstanceRepository(db.DB, zl),
		repository.NewApprovalRepository(db.DB, zl),
		repository.NewHistoryRepository(db.DB, zl),
		sqlite.NewDB(db.DB, zl),
		workflow.WithDispatcher(d),
		workflow.WithRoleResolver(rbac),
		workflow.WithNotificationSink(notifications),
		workflow.WithLogger(logger),
	)

	server := NewServer(DefaultServerConfig(), Services{
		Engine:        engine,
		Definitions:   service.NewDefinitionService(definitionRepo, rbac, logger),
		Notifications: notifications,
		RBAC:          rbac,
		Export:        service.NewExportService(engine, nil, logger),
		Dispatcher:    d,
	}, logger)

	return &testEnv{router: server.Router(), dispatcher: d}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// decode re-encodes resp.Data into out
func decode(t *testing.T, resp Response, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

var twoStepDefinition = map[string]interface{}{
	"id":          "risk-acceptance",
	"name":        "Risk acceptance",
	"entity_type": "risk",
	"steps": []map[string]interface{}{
		{"step": 0, "name": "Review", "approver_roles": []string{"risk-manager"}, "required_approvals": 1},
		{"step": 1, "name": "Sign-off", "approver_roles": []string{"cfo"}, "required_approvals": 1},
	},
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestDefinitionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/definitions", twoStepDefinition)
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)

	w, resp = env.do(t, http.MethodPost, "/api/v1/definitions", twoStepDefinition)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, resp.Error, "already exists")

	w, resp = env.do(t, http.MethodPost, "/api/v1/definitions", map[string]interface{}{
		"name": "Empty", "entity_type": "risk", "steps": []interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error, "steps")

	w, resp = env.do(t, http.MethodGet, "/api/v1/definitions?entity_type=risk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var defs []entity.WorkflowDefinition
	decode(t, resp, &defs)
	assert.Len(t, defs, 1)

	w, _ = env.do(t, http.MethodGet, "/api/v1/definitions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovalLifecycle(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodPost, "/api/v1/definitions", twoStepDefinition)
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := env.do(t, http.MethodPost, "/api/v1/instances", map[string]string{
		"definition_id": "risk-acceptance",
		"entity_id":     "risk-42",
		"entity_type":   "risk",
		"entity_title":  "Vendor breach",
		"actor_id":      "owner",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	var instance entity.WorkflowInstance
	decode(t, resp, &instance)
	assert.Equal(t, entity.InstanceStatusPending, instance.Status)

	pendingFor := func(approver string) []PendingApprovalResponse {
		w, resp := env.do(t, http.MethodGet, "/api/v1/approvals/pending?approver_id="+approver, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var out []PendingApprovalResponse
		decode(t, resp, &out)
		return out
	}

	review := pendingFor("risk-manager")
	require.Len(t, review, 1)
	assert.Equal(t, "Review", review[0].StepName)
	assert.Equal(t, "Risk acceptance", review[0].WorkflowName)

	decisionPath := "/api/v1/approvals/" + review[0].ApprovalID + "/decision"

	w, _ = env.do(t, http.MethodPost, decisionPath, map[string]string{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.do(t, http.MethodPost, decisionPath, map[string]string{"decision": "approved", "comment": " ok \x00"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	var approval entity.WorkflowApproval
	decode(t, resp, &approval)
	assert.Equal(t, "ok", approval.Comment)

	w, resp = env.do(t, http.MethodPost, decisionPath, map[string]string{"decision": "rejected"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, MsgAlreadyDecided, resp.Error)

	assert.Empty(t, pendingFor("risk-manager"))
	signOff := pendingFor("cfo")
	require.Len(t, signOff, 1)

	w, _ = env.do(t, http.MethodPost, "/api/v1/approvals/"+signOff[0].ApprovalID+"/decision", map[string]string{"decision": "approved"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/instances/"+instance.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail entity.InstanceDetail
	decode(t, resp, &detail)
	assert.Equal(t, entity.InstanceStatusCompleted, detail.Instance.Status)
	assert.Len(t, detail.Approvals, 2)
	assert.NotEmpty(t, detail.History)

	w, resp = env.do(t, http.MethodGet, "/api/v1/instances?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []entity.WorkflowInstance
	decode(t, resp, &list)
	assert.Len(t, list, 1)

	w, _ = env.do(t, http.MethodGet, "/api/v1/instances/"+instance.ID+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "workflow-"+instance.ID+".xlsx")
	assert.NotZero(t, w.Body.Len())

	w, resp = env.do(t, http.MethodGet, "/api/v1/users/risk-manager/notifications?status=unread", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []entity.Notification
	decode(t, resp, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, workflow.TitleApprovalRequired, notes[0].Title)
	assert.Equal(t, `A new risk "Vendor breach" requires your approval.`, notes[0].Message)

	w, _ = env.do(t, http.MethodPost, "/api/v1/notifications/"+notes[0].ID+"/read", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/users/owner/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, resp, &notes)
	require.Len(t, notes, 2)
	titles := []string{notes[0].Title, notes[1].Title}
	assert.ElementsMatch(t, []string{workflow.TitleApprovalRequired, workflow.TitleApprovalCompleted}, titles)
}

func TestCreateInstance_EntityTypeFromDefinition(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodPost, "/api/v1/definitions", twoStepDefinition)
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := env.do(t, http.MethodPost, "/api/v1/instances", map[string]string{
		"definition_id": "risk-acceptance",
		"entity_id":     "risk-43",
		"entity_title":  "Untyped request",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	var instance entity.WorkflowInstance
	decode(t, resp, &instance)
	assert.Equal(t, "risk", instance.EntityType)
	assert.Equal(t, "risk-43", instance.EntityID)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/v1/instances/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/approvals/missing/decision", map[string]string{"decision": "approved"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/approvals/pending", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/instances", map[string]string{
		"definition_id": "missing", "entity_id": "r1", "entity_type": "risk",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/instances", map[string]string{
		"definition_id": "missing", "entity_id": "r1", "entity_type": "risk", "actor_id": "bad actor",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/users/alice/notifications?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := env.do(t, http.MethodGet, "/api/v1/users/alice/permissions/workflow:bypass", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var perm PermissionResponse
	decode(t, resp, &perm)
	assert.False(t, perm.Granted)
	assert.Equal(t, "workflow:bypass", perm.Permission)

	w, _ = env.do(t, http.MethodGet, "/api/v1/users/alice/roles", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// streamRecorder adds the CloseNotify support gin's Stream requires and
// lets the test read the body while the handler is still writing.
type streamRecorder struct {
	*httptest.ResponseRecorder
	mu     sync.Mutex
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(b)
}

func (r *streamRecorder) WriteString(s string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.WriteString(s)
}

func (r *streamRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *streamRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestStreamApprovals(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/v1/approvals/stream", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals/stream?approver_id=alice", nil).WithContext(ctx)
	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.router.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool {
		return len(env.dispatcher.ListHandlers(dispatcher.AnyType)) > 0
	}, time.Second, 5*time.Millisecond)

	base := event.NewEvent(event.TypeApprovalCreated, "i1", map[string]interface{}{"step": 0})
	require.NoError(t, env.dispatcher.Dispatch(ctx, base.ForApproval("a-bob", "bob")))
	require.NoError(t, env.dispatcher.Dispatch(ctx, base.ForApproval("a-alice", "alice")))
	require.NoError(t, env.dispatcher.Dispatch(ctx, event.NewEvent(event.TypeInstanceCreated, "i1", nil)))

	require.Eventually(t, func() bool {
		return strings.Contains(rec.body(), "a-alice")
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after the client went away")
	}

	body := rec.body()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event:approval.created")
	assert.Contains(t, body, `"approval_id":"a-alice"`)
	assert.NotContains(t, body, "a-bob")
	assert.NotContains(t, body, "instance.created")
}
