package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/calcbridge-backend/internal/http/response"
	"github.com/yungbote/calcbridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/calcbridge-backend/internal/services"
)

type CalculationHandler struct {
	progress services.CalcProgressService
}

func NewCalculationHandler(progress services.CalcProgressService) *CalculationHandler {
	return &CalculationHandler{progress: progress}
}

// GET /api/:version/calculations
func (h *CalculationHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		rd = &ctxutil.RequestData{}
	}
	rows, err := h.progress.ListForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"data": rows, "total": len(rows)})
}
