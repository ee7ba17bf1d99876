package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/application/workflow"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/pkg/utils"
)

const streamBuffer = 64

// DecisionRequest is the body of POST /api/v1/approvals/:id/decision
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// PendingApprovalResponse flattens a pending approval for the approver's inbox
type PendingApprovalResponse struct {
	ApprovalID   string    `json:"approval_id"`
	InstanceID   string    `json:"instance_id"`
	Step         int       `json:"step"`
	StepName     string    `json:"step_name"`
	WorkflowName string    `json:"workflow_name"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	EntityTitle  string    `json:"entity_title"`
	CreatedAt    time.Time `json:"created_at"`
}

func toPendingResponse(p *entity.PendingApproval) PendingApprovalResponse {
	return PendingApprovalResponse{
		ApprovalID:   p.Approval.ID,
		InstanceID:   p.Instance.ID,
		Step:         p.Approval.Step,
		StepName:     p.StepName(),
		WorkflowName: p.WorkflowName(),
		EntityType:   p.Instance.EntityType,
		EntityID:     p.Instance.EntityID,
		EntityTitle:  p.Instance.EntityTitle,
		CreatedAt:    p.Approval.CreatedAt,
	}
}

// ListPending handles GET /api/v1/approvals/pending?approver_id=
func (h *Handlers) ListPending(c *gin.Context) {
	pending, err := h.services.Engine.ListPending(c.Request.Context(), c.Query("approver_id"))
	if err != nil {
		h.fail(c, "list pending", err)
		return
	}

	out := make([]PendingApprovalResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, toPendingResponse(p))
	}
	h.ok(c, http.StatusOK, out)
}

// Decide handles POST /api/v1/approvals/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	approval, err := h.services.Engine.Decide(c.Request.Context(), workflow.DecideRequest{
		ApprovalID: c.Param("id"),
		Decision:   req.Decision,
		Comment:    utils.SanitizeComment(req.Comment),
	})
	if err != nil {
		h.fail(c, "decide", err)
		return
	}
	h.ok(c, http.StatusOK, approval)
}

// StreamApprovals handles GET /api/v1/approvals/stream?approver_id= as Server-Sent Events.
// Each approval row change addressed to the approver is sent as an event named after its type.
func (h *Handlers) StreamApprovals(c *gin.Context) {
	approverID := c.Query("approver_id")
	if approverID == "" {
		h.badRequest(c, "approver_id is required")
		return
	}

	ctx := c.Request.Context()
	events := h.services.Dispatcher.Stream(ctx, streamBuffer, dispatcher.ForApprover(approverID))

	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	h.logger.Info("Approval stream opened", "approver_id", approverID)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(evt.Type.String(), evt)
			return true
		case <-heartbeat.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		}
	})
	h.logger.Info("Approval stream closed", "approver_id", approverID)
}
