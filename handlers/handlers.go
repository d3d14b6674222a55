package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"procurement-client/apierr"
	"procurement-client/models"
	"procurement-client/repository"
	"procurement-client/services"
	"procurement-client/session"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct{}

// sendSuccess sends a success envelope
func (h *BaseHandler) sendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, models.NewSuccessResponse(data))
}

// sendFailure sends an error envelope with an explicit code
func (h *BaseHandler) sendFailure(c *gin.Context, status int, code, message, hint string) {
	c.AbortWithStatusJSON(status, models.NewErrorResponseWithHint(code, message, status, hint))
}

// sendError classifies err and sends the user-facing message.
func (h *BaseHandler) sendError(c *gin.Context, err error) {
	aerr := apierr.From(err)
	resp := models.NewErrorResponseWithHint(aerr.Code, aerr.Message, aerr.Status, aerr.Hint)
	if fields, ok := aerr.Details["validation_errors"]; ok {
		resp.Error.Fields = map[string]interface{}{"validation_errors": fields}
	}
	c.AbortWithStatusJSON(aerr.Status, resp)
}

// sendQuery renders a cached query or explains why it has no data yet.
func sendQuery[T any](h *BaseHandler, c *gin.Context, q repository.Query[T], data interface{}, count int) {
	switch q.State {
	case repository.StateLoaded:
		h.sendSuccess(c, http.StatusOK, models.ListResponse{Items: data, TotalCount: count})
	case repository.StateFailed:
		h.sendFailure(c, http.StatusBadGateway, apierr.CodeBadGateway, q.Error, "Retry with ?refresh=true")
	default:
		h.sendFailure(c, http.StatusConflict, apierr.CodeNotLoaded, "query is "+string(q.State), "Retry with ?refresh=true")
	}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	BaseHandler
	healthService *services.HealthService
	session       *session.Controller
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService, sess *session.Controller) *HealthHandler {
	return &HealthHandler{healthService: healthService, session: sess}
}

// HandleHealth handles health check requests
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /health [get]
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	account := ""
	if s := h.session.Snapshot(); s.Connected() {
		account = s.Account.Hex()
	}
	h.sendSuccess(c, http.StatusOK, h.healthService.GetHealthStatus(account))
}
