package app

import (
	"context"
	"fmt"

	"github.com/yungbote/calcbridge-backend/internal/data/db"
	httpserver "github.com/yungbote/calcbridge-backend/internal/http"
	"github.com/yungbote/calcbridge-backend/internal/observability"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	PG       *db.PostgresService
	Clients  Clients
	Repos    Repos
	Services Services
	Hub      *realtime.Hub
	Server   *httpserver.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewWithLevel(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	hub := realtime.NewHub(log)
	reposet := wireRepos(pg.DB(), log)
	serviceset, err := wireServices(log, cfg, reposet, clients, hub)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, hub)
	middleware := wireMiddleware(log, serviceset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		PG:           pg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Hub:          hub,
		Server:       wireServer(log, cfg, handlerset, middleware),
		otelShutdown: otelShutdown,
	}, nil
}

// Start runs background consumers: the cross-instance bus forwarder and the
// Temporal cleanup worker.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Services.Bus != nil {
		if err := a.Services.Bus.StartForwarder(ctx, func(m realtime.Message) { a.Hub.Broadcast(m) }); err != nil {
			return fmt.Errorf("start realtime forwarder: %w", err)
		}
	}
	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until the listener fails or Close shuts it down.
func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run()
}

// Close drains requests and in-flight deliveries before releasing clients.
// Armed in-process cleanup timers are dropped; rows they would have deleted
// are left for the next completion or a manual purge.
func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()

	// Ends open SSE streams so the server can drain.
	if a.Hub != nil {
		a.Hub.CloseAll()
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown incomplete", "error", err)
		}
	}
	if a.Services.Progress != nil {
		a.Services.Progress.Wait()
	}
	if a.Services.DataStore != nil {
		a.Services.DataStore.Wait()
	}
	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Close()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Bus != nil {
		_ = a.Services.Bus.Close()
	}
	a.Clients.Close()
	if a.PG != nil {
		if err := a.PG.Close(); err != nil {
			a.Log.Warn("Postgres close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
