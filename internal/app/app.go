// Package app wires the tontine client together and runs it in the
// configured mode: one-shot CLI commands (login, logout, dashboard,
// archive), the refresh loop (monitor) or the HTTP server.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/tontine/internal/config"
	"github.com/alanyoungcy/tontine/internal/telemetry"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	closers []func()
}

// New creates a new App from the given configuration and logger. CLI output
// goes to stdout.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
}

// Run wires all dependencies, runs the configured mode and blocks until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
		ServiceName: a.cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("app: telemetry: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	})

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "login":
		return a.LoginMode(ctx, deps)
	case "logout":
		return a.LogoutMode(ctx, deps)
	case "dashboard":
		return a.DashboardMode(ctx, deps)
	case "monitor":
		return a.MonitorMode(ctx, deps)
	case "server":
		return a.ServerMode(ctx, deps)
	case "archive":
		return a.ArchiveMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
