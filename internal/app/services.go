package app

import (
	"fmt"

	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"github.com/yungbote/calcbridge-backend/internal/realtime"
	"github.com/yungbote/calcbridge-backend/internal/realtime/bus"
	"github.com/yungbote/calcbridge-backend/internal/services"
	"github.com/yungbote/calcbridge-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Auth      services.AuthService
	Notifier  services.CalcNotifier
	Pending   services.PendingQueryStore
	Preparer  services.LibraryPreparer
	Cascade   services.CompletionCascade
	Purger    *services.CalculationPurger
	Scheduler services.CleanupScheduler
	Progress  services.CalcProgressService
	DataStore services.DataStoreService

	// Bus is nil without Redis; notifications then stay on this instance.
	Bus            bus.Bus
	TemporalWorker *temporalworker.Runner
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *realtime.Hub) (Services, error) {
	log.Info("Wiring services...")

	var out Services
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.Redis != nil {
		b, err := bus.NewRedisBus(log, clients.Redis, cfg.Redis.Channel)
		if err != nil {
			return Services{}, fmt.Errorf("init realtime bus: %w", err)
		}
		out.Bus = b
		emitter = &services.BusEmitter{Bus: b, Hub: hub, Log: log}
	}
	out.Notifier = services.NewCalcNotifier(emitter)

	out.Auth = services.NewAuthService(log, repos.UserSession, cfg.JWTSecretKey)

	var sessionData services.SessionDataRepo
	if clients.Redis != nil {
		out.Pending = services.NewRedisPendingQueryStore(log, clients.Redis, cfg.PendingQueryTTL)
		sessionData = services.NewRedisSessionDataRepo(clients.Redis, cfg.DataStoreTTL)
	} else {
		out.Pending = services.NewMemoryPendingQueryStore(cfg.PendingQueryTTL)
		sessionData = services.NewMemorySessionDataRepo(cfg.DataStoreTTL)
	}

	out.Preparer = services.NewLibraryPreparer(log, repos.Collection, repos.DataSource)
	out.Cascade = services.NewCompletionCascade(log, repos.User, repos.Collection, repos.DataSource, out.Preparer, out.Pending, out.Notifier)

	out.Purger = services.NewCalculationPurger(log, repos.Calculation)
	if clients.Temporal != nil {
		out.Scheduler = services.NewTemporalScheduler(log, clients.Temporal, cfg.Temporal.TaskQueue, cfg.CleanupGrace)
		runner, err := temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, out.Purger)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.TemporalWorker = runner
	} else {
		out.Scheduler = services.NewTimerScheduler(log, cfg.CleanupGrace, out.Purger)
	}

	out.Progress = services.NewCalcProgressService(log, repos.Calculation, out.Pending, out.Cascade, out.Scheduler, out.Notifier)
	out.DataStore = services.NewDataStoreService(log, sessionData, clients.Upstream, out.Notifier, services.DataStoreOptions{
		ForwardDelete: cfg.DataStoreForwardDelete,
	})

	return out, nil
}
