package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/domain/errs"
	"github.com/garyjia/grc-approval/internal/domain/event"
	domainwf "github.com/garyjia/grc-approval/internal/domain/workflow"
)

// Notification titles
const (
	TitleApprovalRequired  = "New Approval Required"
	TitleApprovalCompleted = "Approval Completed"
	TitleApprovalRejected  = "Approval Rejected"
)

type engineImpl struct {
	definitions port.DefinitionRepository
	instances   port.InstanceRepository
	approvals   port.ApprovalRepository
	history     port.HistoryRepository
	txManager   port.TransactionManager

	resolver   port.RoleResolver
	sink       port.NotificationSink
	dispatcher dispatcher.Dispatcher
	logger     Logger

	now   func() time.Time
	newID func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher publishes instance and approval changes on the change feed
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithRoleResolver expands approver roles into users at fan-out time.
// Without a resolver role ids are used as approver ids.
func WithRoleResolver(r port.RoleResolver) EngineOption {
	return func(e *engineImpl) {
		e.resolver = r
	}
}

// WithNotificationSink sets where approval notices are sent
func WithNotificationSink(s port.NotificationSink) EngineOption {
	return func(e *engineImpl) {
		e.sink = s
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides record id generation
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = newID
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	definitions port.DefinitionRepository,
	instances port.InstanceRepository,
	approvals port.ApprovalRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		definitions: definitions,
		instances:   instances,
		approvals:   approvals,
		history:     history,
		txManager:   txManager,
		logger:      nopLogger{},
		now:         time.Now,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// progress is a committed instance transition whose side effects are still to be emitted
type progress struct {
	instance   *entity.WorkflowInstance
	trigger    domainwf.Trigger
	fromStep   int
	fromStatus string
	created    []*entity.WorkflowApproval
}

func (e *engineImpl) Instantiate(ctx context.Context, req InstantiateRequest) (*entity.WorkflowInstance, error) {
	if strings.TrimSpace(req.DefinitionID) == "" {
		return nil, errs.Invalid("definition_id", "must not be empty")
	}
	if strings.TrimSpace(req.EntityID) == "" {
		return nil, errs.Invalid("entity_id", "must not be empty")
	}

	def, err := e.loadDefinition(ctx, req.DefinitionID)
	if err != nil {
		return nil, err
	}
	if len(def.Steps) == 0 {
		return nil, errs.Invalid("steps", fmt.Sprintf("definition %s has no steps", def.ID))
	}

	entityType := req.EntityType
	if entityType == "" {
		entityType = def.EntityType
	}

	now := e.now()
	instance := &entity.WorkflowInstance{
		ID:           e.newID(),
		DefinitionID: def.ID,
		EntityID:     req.EntityID,
		EntityType:   entityType,
		EntityTitle:  req.EntityTitle,
		CreatedBy:    req.ActorID,
		CurrentStep:  0,
		Status:       entity.InstanceStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var created []*entity.WorkflowApproval
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instances.Create(txCtx, instance); err != nil {
			return errs.Store("create instance", err)
		}

		var err error
		created, err = e.fanOut(txCtx, instance, def.Steps[0])
		if err != nil {
			return err
		}

		return e.recordHistory(txCtx, &entity.InstanceHistory{
			InstanceID: instance.ID,
			Action:     entity.ActionInstantiated,
			ToStatus:   instance.Status,
			ToStep:     0,
			ActorID:    req.ActorID,
		})
	})
	if err != nil {
		e.logger.Error("Failed to instantiate workflow", "definition_id", def.ID, "entity_id", req.EntityID, "error", err)
		return nil, errs.Store("transaction", err)
	}

	e.logger.Info("Workflow instantiated",
		"instance_id", instance.ID,
		"definition_id", def.ID,
		"entity_type", instance.EntityType,
		"entity_id", instance.EntityID,
		"approvals", len(created),
	)

	correlation := uuid.NewString()
	e.publish(ctx, event.NewEventWithCorrelation(event.TypeInstanceCreated, instance.ID, map[string]interface{}{
		"definition_id": def.ID,
		"entity_type":   instance.EntityType,
		"entity_id":     instance.EntityID,
	}, correlation))
	e.announceStep(ctx, instance, created, correlation, req.ActorID)

	return instance, nil
}

func (e *engineImpl) Decide(ctx context.Context, req DecideRequest) (*entity.WorkflowApproval, error) {
	if strings.TrimSpace(req.ApprovalID) == "" {
		return nil, errs.Invalid("approval_id", "must not be empty")
	}
	if !entity.IsDecision(req.Decision) {
		return nil, errs.Invalid("decision", fmt.Sprintf("must be %q or %q, got %q",
			entity.ApprovalStatusApproved, entity.ApprovalStatusRejected, req.Decision))
	}

	var (
		decided *entity.WorkflowApproval
		moved   *progress
	)
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		approval, err := e.approvals.GetByID(txCtx, req.ApprovalID)
		if err != nil {
			return errs.Store("get approval", err)
		}
		if approval == nil {
			return errs.NotFound("approval", req.ApprovalID)
		}
		if !approval.IsPending() {
			return errs.Conflict("approval", approval.ID, "already "+approval.Status)
		}

		now := e.now()
		ok, err := e.approvals.Decide(txCtx, approval.ID, req.Decision, req.Comment, now)
		if err != nil {
			return errs.Store("decide approval", err)
		}
		if !ok {
			return errs.Conflict("approval", approval.ID, "already decided")
		}
		approval.Status = req.Decision
		approval.Comment = req.Comment
		approval.UpdatedAt = now
		approval.DecidedAt = &now
		decided = approval

		moved, err = e.evaluate(txCtx, approval)
		return err
	})
	if err != nil {
		e.logger.Error("Failed to decide approval", "approval_id", req.ApprovalID, "decision", req.Decision, "error", err)
		return nil, errs.Store("transaction", err)
	}

	e.logger.Info("Approval decided",
		"approval_id", decided.ID,
		"instance_id", decided.InstanceID,
		"step", decided.Step,
		"approver_id", decided.ApproverID,
		"decision", decided.Status,
	)

	correlation := uuid.NewString()
	e.publish(ctx, event.NewEventWithCorrelation(event.TypeApprovalDecided, decided.InstanceID, map[string]interface{}{
		"step":     decided.Step,
		"decision": decided.Status,
	}, correlation).ForApproval(decided.ID, decided.ApproverID))

	if moved != nil {
		e.emitProgress(ctx, moved, correlation)
	}

	return decided, nil
}

// evaluate recomputes the quorum of the approval's step from every row of that step
// and moves the instance when the step is decided. It returns nil when nothing changed.
func (e *engineImpl) evaluate(ctx context.Context, approval *entity.WorkflowApproval) (*progress, error) {
	instance, err := e.instances.GetByID(ctx, approval.InstanceID)
	if err != nil {
		return nil, errs.Store("get instance", err)
	}
	if instance == nil {
		return nil, errs.NotFound("workflow instance", approval.InstanceID)
	}
	if instance.IsTerminal() {
		e.logger.Info("Decision recorded on finished instance", "instance_id", instance.ID, "status", instance.Status)
		return nil, nil
	}
	if approval.Step != instance.CurrentStep {
		e.logger.Info("Decision recorded on inactive step",
			"instance_id", instance.ID, "step", approval.Step, "current_step", instance.CurrentStep)
		return nil, nil
	}

	def, err := e.loadDefinition(ctx, instance.DefinitionID)
	if err != nil {
		return nil, err
	}
	step, ok := def.StepAt(instance.CurrentStep)
	if !ok {
		return nil, errs.Store("load step", fmt.Errorf("instance %s is at step %d, definition %s has %d steps",
			instance.ID, instance.CurrentStep, def.ID, len(def.Steps)))
	}

	rows, err := e.approvals.ListByInstanceStep(ctx, instance.ID, instance.CurrentStep)
	if err != nil {
		return nil, errs.Store("list step approvals", err)
	}
	statuses := make([]string, len(rows))
	for i, r := range rows {
		statuses[i] = r.Status
	}

	tally := domainwf.Count(statuses)
	trigger, decided := domainwf.Evaluate(tally, step.RequiredApprovals, def.IsLastStep(instance.CurrentStep))
	if !decided {
		return nil, nil
	}

	machine := domainwf.NewInstanceMachine(domainwf.State(instance.Status))
	if err := machine.Fire(trigger); err != nil {
		return nil, fmt.Errorf("instance %s: %w", instance.ID, err)
	}

	p := &progress{
		trigger:    trigger,
		fromStep:   instance.CurrentStep,
		fromStatus: instance.Status,
	}
	toStep := instance.CurrentStep
	if trigger == domainwf.TriggerAdvance {
		toStep++
	}
	toStatus := machine.State().String()

	ok, err = e.instances.UpdateProgress(ctx, instance.ID, p.fromStep, p.fromStatus, toStep, toStatus)
	if err != nil {
		return nil, errs.Store("update instance", err)
	}
	if !ok {
		e.logger.Info("Instance already moved by a concurrent decision", "instance_id", instance.ID, "step", p.fromStep)
		return nil, nil
	}

	now := e.now()
	instance.CurrentStep = toStep
	instance.Status = toStatus
	instance.UpdatedAt = now
	if instance.IsTerminal() {
		instance.CompletedAt = &now
	}
	p.instance = instance

	if trigger == domainwf.TriggerAdvance {
		p.created, err = e.fanOut(ctx, instance, def.Steps[toStep])
		if err != nil {
			return nil, err
		}
	}

	err = e.recordHistory(ctx, &entity.InstanceHistory{
		InstanceID: instance.ID,
		Action:     historyAction(trigger),
		FromStatus: p.fromStatus,
		ToStatus:   toStatus,
		FromStep:   p.fromStep,
		ToStep:     toStep,
		ActorID:    approval.ApproverID,
		ApprovalID: approval.ID,
		Comment:    approval.Comment,
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (e *engineImpl) ListPending(ctx context.Context, approverID string) ([]*entity.PendingApproval, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, errs.Invalid("approver_id", "must not be empty")
	}

	pending, err := e.approvals.ListPendingByApprover(ctx, approverID)
	if err != nil {
		e.logger.Error("Failed to list pending approvals", "approver_id", approverID, "error", err)
		return nil, errs.Store("list pending approvals", err)
	}
	if pending == nil {
		pending = []*entity.PendingApproval{}
	}
	return pending, nil
}

func (e *engineImpl) GetInstance(ctx context.Context, id string) (*entity.InstanceDetail, error) {
	instance, err := e.instances.GetByID(ctx, id)
	if err != nil {
		return nil, errs.Store("get instance", err)
	}
	if instance == nil {
		return nil, errs.NotFound("workflow instance", id)
	}

	def, err := e.loadDefinition(ctx, instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	approvals, err := e.approvals.ListByInstance(ctx, id)
	if err != nil {
		return nil, errs.Store("list approvals", err)
	}

	history, err := e.history.GetByInstanceID(ctx, id)
	if err != nil {
		return nil, errs.Store("list history", err)
	}

	return &entity.InstanceDetail{
		Instance:   instance,
		Definition: def,
		Approvals:  approvals,
		History:    history,
	}, nil
}

func (e *engineImpl) ListInstances(ctx context.Context, filter entity.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	instances, err := e.instances.List(ctx, filter)
	if err != nil {
		return nil, errs.Store("list instances", err)
	}
	return instances, nil
}

func (e *engineImpl) loadDefinition(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	def, err := e.definitions.GetByID(ctx, id)
	if err != nil {
		return nil, errs.Store("get definition", err)
	}
	if def == nil {
		return nil, errs.NotFound("workflow definition", id)
	}
	return def, nil
}

// fanOut creates one pending approval per approver designated by the step's roles
func (e *engineImpl) fanOut(ctx context.Context, instance *entity.WorkflowInstance, step entity.WorkflowStep) ([]*entity.WorkflowApproval, error) {
	approvers, err := e.resolveApprovers(ctx, step.ApproverRoles)
	if err != nil {
		return nil, err
	}

	now := e.now()
	rows := make([]*entity.WorkflowApproval, 0, len(approvers))
	for _, approverID := range approvers {
		rows = append(rows, &entity.WorkflowApproval{
			ID:         e.newID(),
			InstanceID: instance.ID,
			Step:       step.Step,
			ApproverID: approverID,
			Status:     entity.ApprovalStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := e.approvals.CreateBatch(ctx, rows); err != nil {
		return nil, errs.Store("create approvals", err)
	}
	return rows, nil
}

func (e *engineImpl) resolveApprovers(ctx context.Context, roles []string) ([]string, error) {
	if e.resolver != nil {
		approvers, err := e.resolver.ResolveApprovers(ctx, roles)
		if err != nil {
			return nil, errs.Store("resolve approvers", err)
		}
		if len(approvers) > 0 {
			return dedupe(approvers), nil
		}
	}
	return dedupe(roles), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (e *engineImpl) recordHistory(ctx context.Context, h *entity.InstanceHistory) error {
	h.CreatedAt = e.now()
	if err := e.history.Create(ctx, h); err != nil {
		return errs.Store("create history", err)
	}
	return nil
}

func historyAction(trigger domainwf.Trigger) string {
	switch trigger {
	case domainwf.TriggerComplete:
		return entity.ActionCompleted
	case domainwf.TriggerReject:
		return entity.ActionRejected
	default:
		return entity.ActionAdvanced
	}
}

// emitProgress publishes the committed transition and notifies the people it concerns
func (e *engineImpl) emitProgress(ctx context.Context, p *progress, correlation string) {
	instance := p.instance
	payload := map[string]interface{}{
		"from_step":   p.fromStep,
		"to_step":     instance.CurrentStep,
		"from_status": p.fromStatus,
		"to_status":   instance.Status,
	}

	switch p.trigger {
	case domainwf.TriggerAdvance:
		e.logger.Info("Workflow advanced", "instance_id", instance.ID, "step", instance.CurrentStep)
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeInstanceAdvanced, instance.ID, payload, correlation))
		e.announceStep(ctx, instance, p.created, correlation)

	case domainwf.TriggerComplete:
		e.logger.Info("Workflow completed", "instance_id", instance.ID)
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeInstanceCompleted, instance.ID, payload, correlation))
		e.notifyOwner(ctx, instance, TitleApprovalCompleted,
			fmt.Sprintf("%s \"%s\" has been approved.", instance.EntityType, instance.EntityTitle), entity.NotificationTypeSuccess)

	case domainwf.TriggerReject:
		e.logger.Info("Workflow rejected", "instance_id", instance.ID, "step", instance.CurrentStep)
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeInstanceRejected, instance.ID, payload, correlation))
		e.notifyOwner(ctx, instance, TitleApprovalRejected,
			fmt.Sprintf("%s \"%s\" was rejected.", instance.EntityType, instance.EntityTitle), entity.NotificationTypeError)
	}
}

// announceStep tells the approvers of a newly active step that their approval is required.
// Extra recipients, such as the creator on instantiation, get the same notice once.
func (e *engineImpl) announceStep(ctx context.Context, instance *entity.WorkflowInstance, created []*entity.WorkflowApproval, correlation string, extra ...string) {
	recipients := make([]string, 0, len(created)+len(extra))
	seen := make(map[string]bool, len(created)+len(extra))
	for _, a := range created {
		if !seen[a.ApproverID] {
			seen[a.ApproverID] = true
			recipients = append(recipients, a.ApproverID)
		}
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeApprovalCreated, instance.ID, map[string]interface{}{
			"step": a.Step,
		}, correlation).ForApproval(a.ID, a.ApproverID))
	}
	for _, id := range extra {
		if id != "" && !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}

	e.notify(ctx, port.Notice{
		Recipients:        recipients,
		Title:             TitleApprovalRequired,
		Message:           fmt.Sprintf("A new %s \"%s\" requires your approval.", instance.EntityType, instance.EntityTitle),
		Type:              entity.NotificationTypeInfo,
		RelatedEntityType: instance.EntityType,
		RelatedEntityID:   instance.EntityID,
	})
}

func (e *engineImpl) notifyOwner(ctx context.Context, instance *entity.WorkflowInstance, title, message, kind string) {
	if instance.CreatedBy == "" {
		return
	}
	e.notify(ctx, port.Notice{
		Recipients:        []string{instance.CreatedBy},
		Title:             title,
		Message:           message,
		Type:              kind,
		RelatedEntityType: instance.EntityType,
		RelatedEntityID:   instance.EntityID,
	})
}

// notify is fire-and-forget: failures are logged and never undo a committed transition
func (e *engineImpl) notify(ctx context.Context, notice port.Notice) {
	if e.sink == nil || len(notice.Recipients) == 0 {
		return
	}
	if err := e.sink.Notify(ctx, notice); err != nil {
		e.logger.Error("Failed to send notification",
			"title", notice.Title,
			"related_entity_id", notice.RelatedEntityID,
			"error", err,
		)
	}
}

func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}
