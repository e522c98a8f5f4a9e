// Package cli implements issuectl, the operator command line of
// Issue-Intelligence.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
}

// Factory builds the services commands run against. Services is only
// called by commands that need the store, so "migrate" and "--help" work
// without Redis or Kafka.
type Factory struct {
	Services   func(ctx context.Context, cfg *config.Config, log logging.Logger) (*Services, func() error, error)
	Migrations func(cfg *config.Config, log logging.Logger) MigrationService
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool

	factory  Factory
	once     sync.Once
	services *Services
	closeFn  func() error
	err      error
}

// Services connects on first use and caches the result for the rest of the
// command.
func (c *CLIContext) Services(ctx context.Context) (*Services, error) {
	c.once.Do(func() {
		if c.factory.Services == nil {
			c.err = errors.New(errors.ErrCodeServiceUnavailable, "no service factory configured")
			return
		}
		c.services, c.closeFn, c.err = c.factory.Services(ctx, c.Config, c.Logger)
	})
	return c.services, c.err
}

// Migrations returns the schema migrator.
func (c *CLIContext) Migrations() (MigrationService, error) {
	if c.factory.Migrations == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "no migration factory configured")
	}
	return c.factory.Migrations(c.Config, c.Logger), nil
}

func (c *CLIContext) close() {
	if c.closeFn == nil {
		return
	}
	if err := c.closeFn(); err != nil {
		c.Logger.Warn("failed to release resources", logging.Err(err))
	}
	c.closeFn = nil
}

// NewRootCommand creates the root command with its global flags and every
// subcommand.
func NewRootCommand(f Factory) *cobra.Command {
	cmd, _ := newRootCommand(f)
	return cmd
}

// newRootCommand also returns the cleanup that releases whatever the
// executed command connected to. Cobra skips post-run hooks after a
// failed RunE, so the caller defers it instead.
func newRootCommand(f Factory) (*cobra.Command, func()) {
	opts := &RootOptions{}
	var (
		cliCtx *CLIContext
		cancel context.CancelFunc
	)
	cleanup := func() {
		if cliCtx != nil {
			cliCtx.close()
		}
		if cancel != nil {
			cancel()
		}
	}

	cmd := &cobra.Command{
		Use:   "issuectl",
		Short: "Issue-Intelligence CLI: issue detection, lifecycle and sentiment tooling",
		Long: `issuectl operates an Issue-Intelligence deployment: it runs detection on
demand, previews clustering, recomputes sentiment aggregations and baselines,
inspects and archives issues, and manages the database schema.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cliCtx, err = newCLIContext(opts, f)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if opts.Timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			}
			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: search ./configs/config.yaml, ./config.yaml, /etc/issue-intel/config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "table", "output format (table, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "global operation timeout")

	cmd.AddCommand(
		newDetectCmd(),
		newClusterCmd(),
		newAggregateCmd(),
		newBaselineCmd(),
		newIssueCmd(),
		newMigrateCmd(),
	)
	return cmd, cleanup
}

func newCLIContext(opts *RootOptions, f Factory) (*CLIContext, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}

	level := opts.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("logger initialization failed: %w", err)
	}

	switch strings.ToLower(opts.OutputFormat) {
	case "table", "json":
	default:
		return nil, fmt.Errorf("invalid output format %q (must be table or json)", opts.OutputFormat)
	}

	return &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		factory:      f,
	}, nil
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeValidation, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeValidation, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// servicesFor resolves the CLIContext and its services in one step.
func servicesFor(cmd *cobra.Command) (*Services, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return cc.Services(cmd.Context())
}

// Execute runs the CLI against f.
func Execute(ctx context.Context, f Factory) error {
	rootCmd, cleanup := newRootCommand(f)
	defer cleanup()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

// tableProvider is implemented by results that render as a table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult outputs data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "json"
	if cc, err := GetCLIContext(cmd); err == nil {
		format = cc.OutputFormat
	}

	if tp, ok := data.(tableProvider); ok && format == "table" {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printJSON(cmd, data)
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, colWidths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// padRight pads s with spaces to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func formatFloat(v float64) string { return fmt.Sprintf("%.2f", v) }

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
