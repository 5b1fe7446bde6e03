package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"hypolab/internal/broadcast"
	"hypolab/internal/config"
	"hypolab/internal/db"
	"hypolab/internal/engine"
	"hypolab/internal/engine/auth"
	"hypolab/internal/logging"
	"hypolab/internal/migrate"
	"hypolab/internal/server"
	"hypolab/internal/store"
)

// App holds one fully wired process: store, hub, engine and HTTP handler.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Hub      *broadcast.Hub
	Engine   engine.Engine
	Handler  http.Handler
	Registry *prometheus.Registry
	Webhooks *server.WebhookDispatcher
	// ConfigPath, when set, is watched while serving; log level edits apply
	// without a restart.
	ConfigPath string

	db  *sql.DB
	log *logrus.Entry
}

// ResolveConfig prefers an explicit file, then the workspace hypolab.yml,
// then built-in defaults.
func ResolveConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(workspace)
}

// Build wires every component described by cfg. The caller owns Close.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Configure(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	a := &App{Config: cfg, log: logging.NewLogger("app")}

	a.Store = store.New()
	seed := a.Store.SeedStages
	if cfg.SeedEnabled() {
		seed = a.Store.Seed
	}
	if err := seed(); err != nil {
		return nil, fmt.Errorf("seed store: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Hub = broadcast.NewHub(broadcast.Settings{
		SessionBuffer: cfg.Broadcast.SessionBuffer,
		WriteTimeout:  time.Duration(cfg.Broadcast.WriteTimeoutSeconds) * time.Second,
	}, broadcast.WithMetrics(broadcast.NewMetrics(a.Registry)))

	a.Engine = engine.New(a.Store, a.Hub, cfg)
	if cfg.Journal.Enabled {
		conn, err := openJournal(ctx, cfg.Journal.Workspace)
		if err != nil {
			a.Hub.Close()
			return nil, err
		}
		a.db = conn
		a.Engine = a.Engine.WithJournal(conn)
	}

	handler, err := server.New(server.Config{
		Engine:   a.Engine,
		Auth:     auth.Service{Secret: cfg.Auth.JWTSecret},
		BasePath: cfg.Server.BasePath,
		Sessions: a.Hub,
		WSPath:   cfg.Server.WSPath,
		Registry: a.Registry,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Handler = handler
	a.Webhooks = server.NewWebhookDispatcher(a.Engine.Repo, cfg.Webhooks)
	if a.Webhooks == nil && len(cfg.Webhooks) > 0 {
		a.log.Warn("webhooks configured but the journal is disabled; skipping delivery")
	}
	return a, nil
}

func openJournal(ctx context.Context, workspace string) (*sql.DB, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return conn, nil
}

// Serve listens on the configured address until ctx is done, then shuts the
// server down and disconnects every session.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.Webhooks != nil {
		go a.Webhooks.Run(ctx)
	}
	if a.ConfigPath != "" {
		w, err := config.NewWatcher(a.ConfigPath, 0, a.applyReload)
		if err != nil {
			a.log.WithError(err).Warn("config watch disabled")
		} else {
			go w.Run(ctx)
		}
	}
	srv := &http.Server{Addr: a.Config.Server.Addr, Handler: a.Handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		a.Hub.Close()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx)
	}()
	a.log.WithFields(logrus.Fields{
		"addr":      a.Config.Server.Addr,
		"base_path": a.Config.Server.BasePath,
		"ws_path":   a.Config.Server.WSPath,
		"journal":   a.db != nil,
	}).Info("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) applyReload(cfg *config.Config) {
	if err := logging.SetLevel(cfg.Logging.Level); err != nil {
		a.log.WithError(err).Warn("log level not applied")
	}
}

// Close releases the hub and the journal connection.
func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
