package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/grc-approval/internal/domain/entity"
)

// CreateDefinition handles POST /api/v1/definitions
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var def entity.WorkflowDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	created, err := h.services.Definitions.Create(c.Request.Context(), &def)
	if err != nil {
		h.fail(c, "create definition", err)
		return
	}
	h.ok(c, http.StatusCreated, created)
}

// ListDefinitions handles GET /api/v1/definitions?entity_type=
func (h *Handlers) ListDefinitions(c *gin.Context) {
	defs, err := h.services.Definitions.List(c.Request.Context(), c.Query("entity_type"))
	if err != nil {
		h.fail(c, "list definitions", err)
		return
	}
	if defs == nil {
		defs = []*entity.WorkflowDefinition{}
	}
	h.ok(c, http.StatusOK, defs)
}

// GetDefinition handles GET /api/v1/definitions/:id
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.services.Definitions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get definition", err)
		return
	}
	h.ok(c, http.StatusOK, def)
}
