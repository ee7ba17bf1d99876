package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/grc-approval/internal/domain/errs"
)

// Version is reported by the health check
var Version = "dev"

// Client-facing messages for errors whose detail stays in the logs
const (
	MsgAlreadyDecided = "this approval was already decided"
	MsgActionFailed   = "action failed, try again"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services  Services
	heartbeat time.Duration
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, heartbeat time.Duration, logger Logger) *Handlers {
	if heartbeat <= 0 {
		heartbeat = DefaultServerConfig().StreamHeartbeat
	}
	return &Handlers{
		services:  services,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps the error taxonomy to status codes. Store and unexpected
// failures are logged and reported with a generic message.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	var (
		notFound *errs.NotFoundError
		invalid  *errs.ValidationError
		conflict *errs.ConflictError
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.As(err, &conflict):
		msg := err.Error()
		if conflict.Resource == "approval" {
			msg = MsgAlreadyDecided
		}
		c.JSON(http.StatusConflict, Response{Success: false, Error: msg})
	default:
		h.logger.Error("Request failed", "operation", op, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: MsgActionFailed})
	}
}
