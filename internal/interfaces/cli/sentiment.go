package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func newAggregateCmd() *cobra.Command {
	var windows []string

	cmd := &cobra.Command{
		Use:   "aggregate <topic|issue> <key>",
		Short: "Recompute sentiment aggregations",
		Long: `Recompute the sentiment aggregation and trend of a topic or an issue for the
given windows (default: every configured window). Windows with too few scored
mentions are skipped.`,
		Example: `  issuectl aggregate topic acme --window 1h,24h
  issuectl aggregate issue 3f0c1e9a-...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := sentiment.ParseType(args[0])
			if err != nil {
				return err
			}
			ws, err := parseWindowFlags(windows)
			if err != nil {
				return err
			}
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			aggs, err := svc.Sentiment.Aggregate(cmd.Context(), typ, args[1], ws)
			if err != nil {
				return err
			}
			return PrintResult(cmd, aggregationsView(aggs))
		},
	}

	cmd.Flags().StringSliceVarP(&windows, "window", "w", nil, "windows to compute (15m, 1h, 24h, 7d, 30d)")
	return cmd
}

func parseWindowFlags(raw []string) ([]sentiment.Window, error) {
	var parts []string
	for _, r := range raw {
		for _, p := range strings.Split(r, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return sentiment.ParseWindows(parts)
}

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect and refresh topic sentiment baselines",
	}
	cmd.AddCommand(newBaselineRefreshCmd(), newBaselineShowCmd())
	return cmd
}

func newBaselineRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [topic]",
		Short: "Recompute the baseline of one topic, or of every topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			topic := ""
			if len(args) == 1 {
				topic = args[0]
			}
			n, err := svc.Sentiment.RefreshBaseline(cmd.Context(), topic)
			if err != nil {
				return err
			}
			if topic != "" && n == 0 {
				PrintSuccess(cmd, "baseline of "+topic+" not refreshed: sample below minimum")
				return nil
			}
			PrintSuccess(cmd, strconv.Itoa(n)+" baseline(s) refreshed")
			return nil
		},
	}
}

func newBaselineShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <topic>",
		Short: "Show the stored baseline of a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			base, err := svc.Sentiment.Baseline(cmd.Context(), args[0])
			if err != nil {
				if errors.IsCode(err, errors.ErrCodeBaselineNotFound) {
					PrintSuccess(cmd, "topic "+args[0]+" has no baseline yet")
					return nil
				}
				return err
			}
			return PrintResult(cmd, baselineView{base})
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

type aggregationsView []*sentiment.Aggregation

func (v aggregationsView) TableHeaders() []string {
	return []string{"TYPE", "KEY", "WINDOW", "MENTIONS", "INDEX", "NORMALIZED", "WEIGHTED", "WINDOW_END"}
}

func (v aggregationsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, a := range v {
		rows = append(rows, []string{
			string(a.Type),
			a.Key,
			string(a.Window),
			strconv.Itoa(a.MentionCount),
			formatFloat(a.Index),
			formatOptional(a.NormalizedIndex),
			formatFloat(a.WeightedScore),
			formatTime(a.WindowEnd),
		})
	}
	return rows
}

type baselineView struct {
	*sentiment.Baseline
}

func (v baselineView) TableHeaders() []string {
	return []string{"TOPIC", "INDEX", "WEIGHTED", "SAMPLE", "LOOKBACK_DAYS", "COMPUTED_AT"}
}

func (v baselineView) TableRows() [][]string {
	return [][]string{{
		v.TopicKey,
		formatFloat(v.Index),
		formatFloat(v.WeightedScore),
		strconv.Itoa(v.SampleSize),
		strconv.Itoa(v.LookbackDays),
		formatTime(v.ComputedAt),
	}}
}
