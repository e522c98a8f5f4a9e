package detection

import (
	"context"
	"strings"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/clustering"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// ClusterPreview describes what detection would do with one cluster.
type ClusterPreview struct {
	clustering.Summary
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
	// MatchIssueID is the issue the cluster would join; empty when it would
	// create a new issue or be skipped.
	MatchIssueID    string  `json:"match_issue_id,omitempty"`
	MatchSimilarity float64 `json:"match_similarity,omitempty"`
	SpanTooWide     bool    `json:"span_too_wide,omitempty"`
}

// Preview is the read-only outcome of clustering a topic.
type Preview struct {
	TopicKey string           `json:"topic_key"`
	Stats    clustering.Stats `json:"stats"`
	Clusters []ClusterPreview `json:"clusters"`
}

// Preview clusters the unlinked mentions of topicKey and reports how each
// cluster would be handled, without writing anything. merge applies the
// centroid merge pass regardless of configuration.
func (d *Detector) Preview(ctx context.Context, sc scope.Scope, topicKey string, merge bool) (*Preview, error) {
	if strings.TrimSpace(topicKey) == "" {
		return nil, errors.New(errors.ErrCodeTopicRequired, "topic key cannot be empty")
	}
	clusters, stats, err := d.cluster(ctx, sc, topicKey, merge || d.cfg.MergePass)
	if err != nil {
		return nil, err
	}
	cands, err := d.loadCandidates(ctx, sc, topicKey, d.now())
	if err != nil {
		return nil, err
	}

	out := &Preview{TopicKey: topicKey, Stats: stats, Clusters: make([]ClusterPreview, 0, len(clusters))}
	for _, c := range clusters {
		texts := make([]string, len(c.Mentions))
		for i, m := range c.Mentions {
			texts[i] = m.Text
		}
		p := ClusterPreview{
			Summary:  c.Summarize(),
			Label:    d.metadata.Label(c.Mentions, topicKey),
			Keywords: d.metadata.Keywords(texts),
		}
		if best, sim := d.bestMatch(c, cands); best != nil {
			p.MatchIssueID = best.iss.ID
			p.MatchSimilarity = sim
		} else {
			p.SpanTooWide = c.Span() > d.cfg.maxSpan()
		}
		out.Clusters = append(out.Clusters, p)
	}
	return out, nil
}
