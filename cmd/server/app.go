package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/offload/internal/config"
	"github.com/phrazzld/offload/internal/execctx"
	"github.com/phrazzld/offload/internal/funcs"
	"github.com/phrazzld/offload/internal/platform/logger"
	"github.com/phrazzld/offload/internal/session"
	"github.com/phrazzld/offload/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	registry *task.Registry
	host     execctx.Host
	store    *session.Store
}

// initializeApp loads configuration, sets up logging and builds the application.
func initializeApp(configPath string) (*application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"host", cfg.Executor.Host,
		"max_sessions", cfg.Sessions.MaxSessions)

	return newApplication(cfg, log)
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(cfg *config.Config, log *slog.Logger) (*application, error) {
	registry := funcs.NewRegistry()

	host, err := newHost(cfg.Executor, registry, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize execution host: %w", err)
	}

	app := &application{
		config:   cfg,
		logger:   log,
		registry: registry,
		host:     host,
		store:    session.NewStore(host, task.NewSerializer(registry), cfg.Sessions.MaxSessions, log),
	}

	log.Info("Application initialized successfully", "functions", registry.Names())
	return app, nil
}

// newHost builds the execution host named by the executor configuration.
// The process host defaults to re-running this binary as a worker.
func newHost(cfg config.ExecutorConfig, registry *task.Registry, log *slog.Logger) (execctx.Host, error) {
	switch cfg.Host {
	case config.HostGoroutine:
		return execctx.NewGoroutineHost(registry, log), nil
	case config.HostProcess:
		command := cfg.WorkerCommand
		if len(command) == 0 {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("failed to locate executable: %w", err)
			}
			command = []string{exe, workerCommand}
		}
		return execctx.NewProcessHost(command, nil, log)
	default:
		return nil, fmt.Errorf("unknown execution host %q", cfg.Host)
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if err := app.store.Close(); err != nil {
		app.logger.Error("Error closing sessions", "error", err)
	}
	app.logger.Info("Application shutdown completed")
}
