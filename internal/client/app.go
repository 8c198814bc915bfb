package client

import (
	"context"
	"fmt"

	"github.com/woodshedapp/woodshed/internal/adapter"
	"github.com/woodshedapp/woodshed/internal/auth"
	"github.com/woodshedapp/woodshed/internal/bus"
	"github.com/woodshedapp/woodshed/internal/config"
	"github.com/woodshedapp/woodshed/internal/linker"
	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/internal/netmon"
	"github.com/woodshedapp/woodshed/internal/reconcile"
	"github.com/woodshedapp/woodshed/internal/service"
	"github.com/woodshedapp/woodshed/internal/store"
	"github.com/woodshedapp/woodshed/internal/workers"
)

// App owns the full client dependency graph and its lifecycle.
type App struct {
	cfg    *config.ClientConfig
	logger *logger.Logger

	storages     *store.ClientStorages
	events       *bus.Bus
	server       *adapter.HTTPServerAdapter
	manager      *auth.Manager
	monitor      *netmon.Monitor
	reconciler   *reconcile.Reconciler
	linker       *linker.Linker
	orchestrator *service.Orchestrator
	job          service.Job
	workers      *workers.Workers
}

// NewApp wires the client: open and initialize the store, rebuild the
// identity index from it, then construct the networking stack around the
// event bus. The credential manager and the adapter reference each other,
// so the manager is attached to the adapter after both exist.
func NewApp(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	storages, err := store.NewClientStorages(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	reconciler := reconcile.New(log)
	if err = reconciler.Rebuild(ctx, storages.Sessions, storages.Queue); err != nil {
		_ = storages.Close()
		return nil, err
	}

	events := bus.New()
	server := adapter.NewHTTPServerAdapter(cfg.Adapter, log)
	manager := auth.NewManager(server.Refresh, events, cfg.Adapter.RefreshTimeout, log)
	server.UseCredentialManager(manager)

	monitor := netmon.New(server, log)
	lnk := linker.New(reconciler, log)
	orchestrator := service.NewOrchestrator(storages, server, reconciler, lnk, monitor, events, log)
	job := service.NewSyncJob(orchestrator)

	return &App{
		cfg:          cfg,
		logger:       log,
		storages:     storages,
		events:       events,
		server:       server,
		manager:      manager,
		monitor:      monitor,
		reconciler:   reconciler,
		linker:       lnk,
		orchestrator: orchestrator,
		job:          job,
		workers: workers.New(
			workers.NewProbeWorker(monitor, cfg.Workers.ProbeInterval),
			workers.NewSyncWorker(job, cfg.Workers.SyncInterval),
		),
	}, nil
}

// Run implements Client. It starts the background workers, kicks a drain
// whenever connectivity comes back, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			if err := a.orchestrator.DrainQueue(runCtx); err != nil {
				a.logger.Warn().Err(err).
					Str("func", "App.Run").
					Msg("connectivity-triggered drain failed")
			}
		}()
	})
	defer unsubscribe()

	a.workers.Run(runCtx)
	a.logger.Info().Str("func", "App.Run").Msg("client started")

	<-runCtx.Done()
	a.workers.Wait()

	if err := a.storages.Close(); err != nil {
		return fmt.Errorf("close local storage: %w", err)
	}
	return nil
}

// Login authenticates against the server and stores the resulting pair.
// Stored credentials unblock the drain path, so one is kicked right after.
func (a *App) Login(ctx context.Context, email, password string) error {
	pair, err := a.server.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.manager.SetPair(pair)

	go func() { _ = a.orchestrator.DrainQueue(ctx) }()
	return nil
}

// Register creates an account and stores the resulting pair.
func (a *App) Register(ctx context.Context, email, password string) error {
	pair, err := a.server.Register(ctx, email, password)
	if err != nil {
		return err
	}
	a.manager.SetPair(pair)
	return nil
}

// Logout clears credentials. Pending queue entries stay durable and drain
// after the next login.
func (a *App) Logout() {
	a.manager.Logout("user requested")
}

// Sessions exposes the session service to whatever surface embeds the app.
func (a *App) Sessions() service.SessionService {
	return a.orchestrator
}
