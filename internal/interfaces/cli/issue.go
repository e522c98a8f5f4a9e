package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func newIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "issue",
		Aliases: []string{"issues"},
		Short:   "Inspect and administer issues",
	}
	cmd.AddCommand(
		newIssueListCmd(),
		newIssueShowCmd(),
		newIssueHistoryCmd(),
		newIssueArchiveCmd(),
		newIssueRebuildCentroidCmd(),
	)
	return cmd
}

func newIssueListCmd() *cobra.Command {
	var (
		topic           string
		states          []string
		minPriority     float64
		includeArchived bool
		limit           int
		offset          int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			if minPriority < 0 || minPriority > 100 {
				return errors.InvalidParam(fmt.Sprintf("min-priority must be between 0 and 100, got %g", minPriority))
			}
			if limit < 1 || limit > 100 {
				return errors.InvalidParam(fmt.Sprintf("limit must be between 1 and 100, got %d", limit))
			}

			opts := []issue.ListOption{issue.WithLimit(limit), issue.WithOffset(offset)}
			if topic != "" {
				opts = append(opts, issue.WithTopic(topic))
			}
			for _, raw := range states {
				for _, part := range strings.Split(raw, ",") {
					if strings.TrimSpace(part) == "" {
						continue
					}
					st, err := issue.ParseState(part)
					if err != nil {
						return err
					}
					opts = append(opts, issue.WithStates(st))
				}
			}
			if minPriority > 0 {
				opts = append(opts, issue.WithMinPriority(minPriority))
			}
			if includeArchived {
				opts = append(opts, issue.WithArchived())
			}

			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			items, total, err := svc.Issues.List(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			return PrintResult(cmd, issueListView{Items: items, Total: total})
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "filter by topic key")
	cmd.Flags().StringSliceVar(&states, "state", nil, "filter by state (emerging, active, escalated, stabilizing, resolved, archived)")
	cmd.Flags().Float64Var(&minPriority, "min-priority", 0, "minimum priority score (0-100)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "include archived issues")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size (1-100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func newIssueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			iss, err := svc.Issues.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, issueDetailView{iss})
		},
	}
}

func newIssueHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the state transitions of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			trs, err := svc.Issues.Transitions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, transitionsView(trs))
		},
	}
}

func newIssueArchiveCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive an issue",
		Long: `Archive an issue. Archived issues no longer receive mentions, are hidden
from default listings, and are never reactivated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			iss, err := svc.Issues.Archive(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("issue %s archived (%s)", iss.ID, iss.StateReason))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "archived via issuectl", "reason recorded on the transition")
	return cmd
}

func newIssueRebuildCentroidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-centroid <id>",
		Short: "Recompute the cached centroid from every linked mention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			iss, err := svc.Issues.RebuildCentroid(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("centroid of %s rebuilt (%d dimensions)", iss.ID, len(iss.Centroid)))
			return nil
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

type issueListView struct {
	Items []*issue.Issue `json:"items"`
	Total int64          `json:"total"`
}

func (v issueListView) TableHeaders() []string {
	return []string{"ID", "TOPIC", "STATE", "PRIORITY", "BAND", "MENTIONS", "VELOCITY%", "LAST_ACTIVITY", "LABEL"}
}

func (v issueListView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Items))
	for _, iss := range v.Items {
		rows = append(rows, []string{
			iss.ID,
			iss.TopicKey,
			string(iss.State),
			formatFloat(iss.PriorityScore),
			string(iss.PriorityBand),
			strconv.Itoa(iss.MentionCount),
			formatFloat(iss.VelocityPercent),
			formatTime(iss.LastActivity),
			iss.Label,
		})
	}
	return rows
}

type issueDetailView struct {
	*issue.Issue
}

func (v issueDetailView) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (v issueDetailView) TableRows() [][]string {
	iss := v.Issue
	resolved := "-"
	if iss.ResolvedAt != nil {
		resolved = formatTime(*iss.ResolvedAt)
	}
	return [][]string{
		{"id", iss.ID},
		{"label", iss.Label},
		{"topic", iss.TopicKey},
		{"state", fmt.Sprintf("%s (%s)", iss.State, iss.StateReason)},
		{"priority", fmt.Sprintf("%s [%s]", formatFloat(iss.PriorityScore), iss.PriorityBand)},
		{"mentions", strconv.Itoa(iss.MentionCount)},
		{"volume", fmt.Sprintf("%d (previous %d, velocity %s%%)", iss.VolumeCurrent, iss.VolumePrevious, formatFloat(iss.VelocityPercent))},
		{"sentiment_index", formatOptional(iss.Sentiment.Index)},
		{"severity", formatOptional(iss.Sentiment.Severity)},
		{"keywords", strings.Join(iss.TopKeywords, ", ")},
		{"sources", strings.Join(iss.TopSources, ", ")},
		{"regions", strings.Join(iss.Regions, ", ")},
		{"start_time", formatTime(iss.StartTime)},
		{"last_activity", formatTime(iss.LastActivity)},
		{"resolved_at", resolved},
	}
}

type transitionsView []*issue.StateTransition

func (v transitionsView) TableHeaders() []string {
	return []string{"AT", "FROM", "TO", "REASON"}
}

func (v transitionsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, tr := range v {
		rows = append(rows, []string{formatTime(tr.OccurredAt), string(tr.From), string(tr.To), tr.Reason})
	}
	return rows
}
