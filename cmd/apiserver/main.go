// Command apiserver serves the read and admin HTTP API of Issue-Intelligence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/Issue-Intelligence/internal/bootstrap"
	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/Issue-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: search ./configs/config.yaml, ./config.yaml, /etc/issue-intel/config.yaml)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync(logger) }()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("api server exited with error", logging.Err(err))
		_ = logging.Sync(logger)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting Issue-Intelligence API server",
		logging.String("version", version),
		logging.Int("http_port", cfg.Server.Port),
	)

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Messaging: true})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to release resources", logging.Err(err))
		}
	}()

	if configPath != "" {
		if err := app.WatchConfig(configPath); err != nil {
			logger.Warn("configuration hot reload disabled", logging.Err(err))
		}
	}

	// A nil *DetectionRequester must not reach the handler as a non-nil
	// interface.
	var requester handlers.DetectionRequester
	if app.Requester != nil {
		requester = app.Requester
	}

	routerCfg := httpserver.RouterConfig{
		IssueHandler:     handlers.NewIssueHandler(app.Issues),
		SentimentHandler: handlers.NewSentimentHandler(app.Reader),
		DetectionHandler: handlers.NewDetectionHandler(requester),
		HealthHandler:    handlers.NewHealthHandler(version, app.Metrics, app.HealthCheckers()...),
		Logger:           logger,
		Logging:          middleware.DefaultLoggingConfig(),
		Recorder:         app.Metrics,
		Mode:             cfg.Server.Mode,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = app.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	return srv.Run(ctx)
}
