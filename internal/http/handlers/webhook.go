package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/calcbridge-backend/internal/http/response"
	"github.com/yungbote/calcbridge-backend/internal/platform/apierr"
	"github.com/yungbote/calcbridge-backend/internal/services"
)

type WebhookHandler struct {
	progress services.CalcProgressService
}

func NewWebhookHandler(progress services.CalcProgressService) *WebhookHandler {
	return &WebhookHandler{progress: progress}
}

// CalcUpdate accepts a progress report from the calculation worker.
//
// POST /api/:version/webhooks/calc_update
func (h *WebhookHandler) CalcUpdate(c *gin.Context) {
	var payload services.WebhookPayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.RespondAPIError(c, apierr.BadRequest("invalid_webhook", errors.New("body must be a JSON object")))
			return
		}
	}
	reqID, err := h.progress.AcceptWebhook(c.Request.Context(), payload, c.Request.URL.Query())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"reqId": reqID})
}
