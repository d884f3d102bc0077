package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/calcbridge-backend/internal/http/response"
	"github.com/yungbote/calcbridge-backend/internal/platform/apierr"
	"github.com/yungbote/calcbridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// SSEStream registers the caller's identity with the hub and streams until
// the client disconnects.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if !rd.Authenticated() {
		response.RespondAPIError(c, apierr.Unauthorized(errors.New("not authenticated")))
		return
	}
	client := h.hub.Register(realtime.Identity{
		UserID:        rd.UserID,
		SessionID:     rd.SessionID,
		SessionUserID: rd.SessionUserID,
	})
	h.log.Info("SSE stream open", "user_id", rd.UserID, "session_id", rd.SessionID, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.Close(client)
}
