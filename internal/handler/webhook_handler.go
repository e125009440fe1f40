package handler

import (
	"io"
	"net/http"

	"webcollect/config"
	"webcollect/internal/logging"
	"webcollect/internal/middleware"
	"webcollect/internal/service"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	svc    *service.WebhookService
	logger logging.Logger
}

func NewWebhookHandler(svc *service.WebhookService, logger logging.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, logger: logger}
}

// Handle processes a WebCollect event. The body is passed through untouched;
// the service decides the status.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, middleware.MaxWebhookBody))
	if err != nil {
		h.logger.Error("Reading webhook body failed: "+err.Error(), nil)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	h.logger.Debug("raw body", map[string]any{"body": string(body)})
	status := h.svc.HandleWebhook(c.Request.Context(), body)
	switch status {
	case http.StatusOK:
		c.JSON(status, gin.H{"received": true})
	case http.StatusBadRequest:
		c.JSON(status, gin.H{"error": "invalid json"})
	default:
		c.JSON(status, gin.H{"error": "processing failed"})
	}
}

// RequireRouteToken guards the legacy "/?wc-api=<token>" entry point.
func (h *WebhookHandler) RequireRouteToken(c *gin.Context) {
	if c.Query("wc-api") != config.WebhookRoute {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Next()
}
