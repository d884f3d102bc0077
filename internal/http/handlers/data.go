package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/http/response"
	"github.com/yungbote/calcbridge-backend/internal/platform/apierr"
	"github.com/yungbote/calcbridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/calcbridge-backend/internal/services"
)

type DataHandler struct {
	store services.DataStoreService
}

func NewDataHandler(store services.DataStoreService) *DataHandler {
	return &DataHandler{store: store}
}

// GET /api/data
func (h *DataHandler) List(c *gin.Context) {
	accepted, err := h.store.List(c.Request.Context(), sessionID(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if !accepted {
		response.RespondNoContent(c)
		return
	}
	response.RespondAccepted(c, gin.H{"status": "accepted"})
}

// POST /api/data
func (h *DataHandler) Create(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", errors.New("body must be a JSON object")))
		return
	}
	if err := h.store.Create(c.Request.Context(), sessionID(c), req.Content); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"status": "accepted"})
}

// DELETE /api/data
func (h *DataHandler) Delete(c *gin.Context) {
	var req struct {
		UUID string `json:"uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", errors.New("body must be a JSON object")))
		return
	}
	if err := h.store.DeleteLocal(c.Request.Context(), sessionID(c), req.UUID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"status": "accepted"})
}

func sessionID(c *gin.Context) uuid.UUID {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.SessionID
	}
	return uuid.Nil
}
