// Command worker runs scheduled issue detection and sentiment aggregation,
// and consumes on-demand detection requests from Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/Issue-Intelligence/internal/bootstrap"
	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/Issue-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var version = "dev"

const defaultHealthPort = 9091

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: search ./configs/config.yaml, ./config.yaml, /etc/issue-intel/config.yaml)")
	interval := flag.Duration("interval", 0, "detection schedule interval (overrides worker.schedule_interval)")
	once := flag.Bool("once", false, "run a single detection pass over every topic and exit")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Worker.ScheduleInterval = *interval
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync(logger) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, *once, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		_ = logging.Sync(logger)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, configPath string, once bool, logger logging.Logger) error {
	logger.Info("starting Issue-Intelligence worker",
		logging.String("version", version),
		logging.Duration("interval", cfg.Worker.ScheduleInterval),
		logging.Int("concurrency", cfg.Worker.Concurrency),
	)

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Messaging: true, EnsureTopics: !once})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to release resources", logging.Err(err))
		}
	}()

	if once {
		sum, err := app.Runner.RunAll(ctx)
		if sum != nil {
			logger.Info("single detection pass finished",
				logging.Int("topics", sum.Topics),
				logging.Int("failed", sum.Failed),
			)
		}
		return err
	}

	if configPath != "" {
		if err := app.WatchConfig(configPath); err != nil {
			logger.Warn("configuration hot reload disabled", logging.Err(err))
		}
	}

	if cfg.Kafka.Enabled {
		if _, err := app.StartDetectionConsumer(ctx); err != nil {
			return fmt.Errorf("failed to start detection request consumer: %w", err)
		}
		logger.Info("consuming detection requests", logging.String("topic", cfg.Kafka.DetectionRequestTopic))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Runner.Run(gctx, cfg.Worker.ScheduleInterval)
	})
	g.Go(func() error {
		return healthServer(cfg, app, logger).Run(gctx)
	})

	err = g.Wait()
	logger.Info("Issue-Intelligence worker stopped")
	return err
}

// healthServer exposes /healthz, /readyz and the metrics endpoint on the
// metrics port.
func healthServer(cfg *config.Config, app *bootstrap.App, logger logging.Logger) *httpserver.Server {
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, app.Metrics, app.HealthCheckers()...),
		Mode:          "release",
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = app.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	port := cfg.Metrics.Port
	if port == 0 {
		port = defaultHealthPort
	}
	return httpserver.NewServer(config.ServerConfig{
		Port:            port,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, httpserver.NewRouter(routerCfg), logger)
}
