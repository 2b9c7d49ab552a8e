package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mediaforge-backend/internal/platform/apierr"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

// WebhookHandler is a receiver for smoke-testing webhook delivery end to end.
type WebhookHandler struct {
	log *logger.Logger
}

func NewWebhookHandler(log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{log: log.With("handler", "WebhookHandler")}
}

// POST /api/webhooks/test
func (h *WebhookHandler) TestReceiver(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		respondErr(c, apierr.BadRequest("invalid_request", err))
		return
	}
	h.log.Info("Test webhook received", "job_id", body["job_id"], "status", body["status"])
	c.JSON(http.StatusOK, gin.H{"status": "received", "data": body})
}
