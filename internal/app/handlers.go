package app

import (
	httpH "github.com/yungbote/calcbridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/calcbridge-backend/internal/http/middleware"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

type Handlers struct {
	Health      *httpH.HealthHandler
	Realtime    *httpH.RealtimeHandler
	Webhook     *httpH.WebhookHandler
	Calculation *httpH.CalculationHandler
	Data        *httpH.DataHandler
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(),
		Realtime:    httpH.NewRealtimeHandler(log, hub),
		Webhook:     httpH.NewWebhookHandler(services.Progress),
		Calculation: httpH.NewCalculationHandler(services.Progress),
		Data:        httpH.NewDataHandler(services.DataStore),
	}
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}
