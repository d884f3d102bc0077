package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/calcbridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/calcbridge-backend/internal/http/middleware"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	CORSOrigins    []string

	RealtimeHandler    *httpH.RealtimeHandler
	WebhookHandler     *httpH.WebhookHandler
	CalculationHandler *httpH.CalculationHandler
	DataHandler        *httpH.DataHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("calcbridge"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Webhooks (auth optional: a session owner may attach a pending query)
	if cfg.WebhookHandler != nil {
		hooks := api.Group("/:version/webhooks")
		if cfg.AuthMiddleware != nil {
			hooks.Use(cfg.AuthMiddleware.OptionalAuth())
		}
		hooks.POST("/calc_update", cfg.WebhookHandler.CalcUpdate)
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Calculations (out-of-band poll)
		if cfg.CalculationHandler != nil {
			protected.GET("/:version/calculations", cfg.CalculationHandler.List)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		// Session data store
		if cfg.DataHandler != nil {
			protected.GET("/data", cfg.DataHandler.List)
			protected.POST("/data", cfg.DataHandler.Create)
			protected.DELETE("/data", cfg.DataHandler.Delete)
		}
	}

	return r
}
