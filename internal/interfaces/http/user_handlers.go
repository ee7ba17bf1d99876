package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/grc-approval/internal/domain/entity"
)

// PermissionResponse answers a permission check
type PermissionResponse struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
	Granted    bool   `json:"granted"`
}

// ListNotifications handles GET /api/v1/users/:id/notifications?status=&limit=
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.services.Notifications.ListForUser(c.Request.Context(), c.Param("id"), c.Query("status"), limit)
	if err != nil {
		h.fail(c, "list notifications", err)
		return
	}
	if list == nil {
		list = []*entity.Notification{}
	}
	h.ok(c, http.StatusOK, list)
}

// MarkNotificationRead handles POST /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if err := h.services.Notifications.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "mark notification read", err)
		return
	}
	h.ok(c, http.StatusOK, gin.H{"id": c.Param("id"), "status": entity.NotificationStatusRead})
}

// GetUserRoles handles GET /api/v1/users/:id/roles
func (h *Handlers) GetUserRoles(c *gin.Context) {
	roles, err := h.services.RBAC.GetUserRoles(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get user roles", err)
		return
	}
	if roles == nil {
		roles = []*entity.Role{}
	}
	h.ok(c, http.StatusOK, roles)
}

// CheckPermission handles GET /api/v1/users/:id/permissions/:permission
func (h *Handlers) CheckPermission(c *gin.Context) {
	userID, permission := c.Param("id"), c.Param("permission")

	granted, err := h.services.RBAC.HasPermission(c.Request.Context(), userID, permission)
	if err != nil {
		h.fail(c, "check permission", err)
		return
	}
	h.ok(c, http.StatusOK, PermissionResponse{UserID: userID, Permission: permission, Granted: granted})
}
