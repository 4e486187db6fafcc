// Command tontine is the entry point of the tontine client. It loads
// configuration, validates it, sets up signal handling and runs the
// configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/tontine/internal/app"
	"github.com/alanyoungcy/tontine/internal/config"
	"github.com/alanyoungcy/tontine/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	mode := flag.String("mode", "", "override the configured mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %q: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	logger := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Debug("configuration loaded", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = application.Run(ctx)
	stop()
	application.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
