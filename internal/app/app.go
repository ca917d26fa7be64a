// Package app wires the research harness: tools, audited executor, agent,
// thread store, and the HTTP facade.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	deepagent "github.com/yukot/deepagent"
	"github.com/yukot/deepagent/audit"
	"github.com/yukot/deepagent/facade"
	"github.com/yukot/deepagent/internal/config"
	"github.com/yukot/deepagent/observer"
	"github.com/yukot/deepagent/redisclient"
	"github.com/yukot/deepagent/research"
	"github.com/yukot/deepagent/tools/search"
)

// App holds the assembled harness.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	agent   deepagent.Agent
	threads facade.ThreadStore
	redis   *redisclient.Client

	shutdownTracer func(context.Context) error
}

// New assembles the harness from config. Redis is optional: when the
// connection fails the facade falls back to in-memory thread state.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{cfg: cfg, logger: logger}

	var tracer deepagent.Tracer
	if cfg.Tracer.Enabled {
		shutdown, err := observer.Init(ctx, "research-agent")
		if err != nil {
			return nil, fmt.Errorf("app: tracer init: %w", err)
		}
		a.shutdownTracer = shutdown
		tracer = observer.NewTracer()
	}

	registry := deepagent.NewToolRegistry()
	registry.Add(search.New(cfg.Search.APIKey, search.WithLogger(logger)))

	exec := deepagent.NewToolExecutor(registry)
	node, err := audit.NewNode(exec, audit.Config{
		Tools:     registry.AllDefinitions(),
		Dir:       auditDir(cfg),
		Workspace: cfg.Audit.Workspace,
		Name:      cfg.Audit.Name,
		Logger:    logger,
		Tracer:    tracer,
	})
	if err != nil {
		return nil, err
	}

	svc := research.New(registry, node, research.WithLogger(logger))
	agent, err := svc.Agent()
	if err != nil {
		return nil, err
	}
	a.agent = agent

	a.threads = facade.NewMemoryThreadStore()
	if rdb, err := redisclient.New(ctx, cfg.Redis.URL, redisclient.WithLogger(logger)); err != nil {
		logger.Warn("redis unavailable, using in-memory thread state", "err", err)
	} else {
		a.redis = rdb
		a.threads = facade.NewRedisThreadStore(rdb, 0)
	}

	return a, nil
}

func auditDir(cfg config.Config) string {
	if cfg.Audit.Dir == audit.DefaultDirName {
		// Relative default lives under the workspace root.
		return ""
	}
	return cfg.Audit.Dir
}

// Agent returns the assembled research agent.
func (a *App) Agent() deepagent.Agent { return a.agent }

// Serve runs the HTTP facade until ctx is canceled, then shuts down
// gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := facade.New(a.agent, a.threads, facade.WithLogger(a.logger))
	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("facade listening", "addr", a.cfg.Server.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// ServeWithSignal wraps Serve with OS signal handling for graceful shutdown.
func (a *App) ServeWithSignal() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Close releases external resources.
func (a *App) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close", "err", err)
		}
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Error("tracer shutdown", "err", err)
		}
	}
}
