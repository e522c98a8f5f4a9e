// Command issuectl is the operator CLI of Issue-Intelligence.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/Issue-Intelligence/internal/bootstrap"
	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, factory()); err != nil {
		stop()
		os.Exit(1)
	}
}

func factory() cli.Factory {
	return cli.Factory{
		Services: func(ctx context.Context, cfg *config.Config, log logging.Logger) (*cli.Services, func() error, error) {
			// On-demand runs publish their issue events like the worker does,
			// but never consume detection requests.
			app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{Messaging: true, SkipMigrations: true})
			if err != nil {
				return nil, nil, err
			}
			return &cli.Services{
				Runner:    app.Runner,
				Previewer: app,
				Sentiment: app.Reader,
				Issues:    app.Issues,
			}, app.Close, nil
		},
		Migrations: func(cfg *config.Config, log logging.Logger) cli.MigrationService {
			return postgres.NewMigrator(postgres.BuildDSN(cfg.Database), log)
		},
	}
}
