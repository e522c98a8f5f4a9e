package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/Issue-Intelligence/internal/application/detection"
	"github.com/turtacn/Issue-Intelligence/internal/application/scheduler"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func newDetectCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "detect [topic]",
		Short: "Run issue detection now",
		Long: `Run detection for one topic, or for every topic with --all. Each topic is
processed in its own transaction; issue events are published after commit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.InvalidParam("pass exactly one of a topic or --all")
			}
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}

			if all {
				sum, err := svc.Runner.RunAll(cmd.Context())
				if sum != nil {
					if perr := PrintResult(cmd, summaryView{sum}); perr != nil {
						return perr
					}
				}
				return err
			}

			res, err := svc.Runner.RunTopic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, topicRunView{res})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "run every topic that has mentions")
	return cmd
}

func newClusterCmd() *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "cluster <topic>",
		Short: "Preview clustering for a topic without writing",
		Long: `Cluster the unlinked mentions of a topic and show, per cluster, whether it
would join an existing issue, create a new one, or be skipped. Nothing is
written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFor(cmd)
			if err != nil {
				return err
			}
			p, err := svc.Previewer.Preview(cmd.Context(), args[0], merge)
			if err != nil {
				return err
			}
			return PrintResult(cmd, previewView{p})
		},
	}

	cmd.Flags().BoolVar(&merge, "merge", false, "apply the centroid merge pass")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

type topicRunView struct {
	*scheduler.TopicResult
}

func (v topicRunView) TableHeaders() []string {
	return []string{"TOPIC", "INPUT", "DROPPED", "CLUSTERS", "MATCHED", "CREATED", "SKIPPED", "LINKED", "TRANSITIONS", "EVENTS", "AGGREGATIONS"}
}

func (v topicRunView) TableRows() [][]string {
	d := v.Detection
	return [][]string{{
		d.TopicKey,
		strconv.Itoa(d.Stats.Input),
		strconv.Itoa(d.Stats.Dropped()),
		strconv.Itoa(d.Clusters),
		strconv.Itoa(d.Matched),
		strconv.Itoa(d.Created),
		strconv.Itoa(d.Skipped),
		strconv.Itoa(d.Linked),
		strconv.Itoa(d.Transitions),
		strconv.Itoa(len(d.Events)),
		strconv.Itoa(v.Aggregations),
	}}
}

type summaryView struct {
	*scheduler.Summary
}

func (v summaryView) TableHeaders() []string {
	return []string{"TOPICS", "SUCCEEDED", "BUSY", "FAILED", "CREATED", "MATCHED", "LINKED", "EVENTS", "DURATION"}
}

func (v summaryView) TableRows() [][]string {
	s := v.Summary
	return [][]string{{
		strconv.Itoa(s.Topics),
		strconv.Itoa(s.Succeeded),
		strconv.Itoa(s.Busy),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Created),
		strconv.Itoa(s.Matched),
		strconv.Itoa(s.Linked),
		strconv.Itoa(s.Events),
		s.Duration.String(),
	}}
}

type previewView struct {
	*detection.Preview
}

func (v previewView) TableHeaders() []string {
	return []string{"#", "SIZE", "START", "END", "ACTION", "LABEL"}
}

func (v previewView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Clusters))
	for i, c := range v.Clusters {
		action := "create"
		switch {
		case c.MatchIssueID != "":
			action = fmt.Sprintf("join %s (%.3f)", c.MatchIssueID, c.MatchSimilarity)
		case c.SpanTooWide:
			action = "skip: span too wide"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(c.Size),
			formatTime(c.Start),
			formatTime(c.End),
			action,
			c.Label,
		})
	}
	return rows
}
