package app

import (
	httpserver "github.com/yungbote/calcbridge-backend/internal/http"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *httpserver.Server {
	return httpserver.NewServer(cfg.Addr(), httpserver.RouterConfig{
		Log:                log,
		AuthMiddleware:     middleware.Auth,
		CORSOrigins:        cfg.CORSOrigins,
		HealthHandler:      handlers.Health,
		RealtimeHandler:    handlers.Realtime,
		WebhookHandler:     handlers.Webhook,
		CalculationHandler: handlers.Calculation,
		DataHandler:        handlers.Data,
	})
}
