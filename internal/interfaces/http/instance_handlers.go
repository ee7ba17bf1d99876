package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/grc-approval/internal/application/workflow"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CreateInstanceRequest is the body of POST /api/v1/instances
type CreateInstanceRequest struct {
	DefinitionID string `json:"definition_id" binding:"required"`
	EntityID     string `json:"entity_id"`
	EntityType   string `json:"entity_type"`
	EntityTitle  string `json:"entity_title"`
	ActorID      string `json:"actor_id"`
}

// ListInstancesRequest represents query parameters for listing instances
type ListInstancesRequest struct {
	Status     string `form:"status"`
	EntityType string `form:"entity_type"`
	EntityID   string `form:"entity_id"`
	Limit      int    `form:"limit"`
}

// CreateInstance handles POST /api/v1/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.ActorID != "" {
		if err := utils.ValidateIdentifier("actor_id", req.ActorID); err != nil {
			h.badRequest(c, err.Error())
			return
		}
	}

	instance, err := h.services.Engine.Instantiate(c.Request.Context(), workflow.InstantiateRequest{
		DefinitionID: req.DefinitionID,
		EntityID:     utils.SanitizeString(req.EntityID),
		EntityType:   req.EntityType,
		EntityTitle:  utils.SanitizeString(req.EntityTitle),
		ActorID:      req.ActorID,
	})
	if err != nil {
		h.fail(c, "instantiate", err)
		return
	}
	h.ok(c, http.StatusCreated, instance)
}

// ListInstances handles GET /api/v1/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var req ListInstancesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}

	instances, err := h.services.Engine.ListInstances(c.Request.Context(), entity.InstanceFilter{
		Status:     req.Status,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Limit:      req.Limit,
	})
	if err != nil {
		h.fail(c, "list instances", err)
		return
	}
	if instances == nil {
		instances = []*entity.WorkflowInstance{}
	}
	h.ok(c, http.StatusOK, instances)
}

// GetInstance handles GET /api/v1/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	detail, err := h.services.Engine.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get instance", err)
		return
	}
	h.ok(c, http.StatusOK, detail)
}

// ExportInstance handles GET /api/v1/instances/:id/export
func (h *Handlers) ExportInstance(c *gin.Context) {
	content, name, err := h.services.Export.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "export instance", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, content)
}
