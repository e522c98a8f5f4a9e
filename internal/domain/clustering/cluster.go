// Package clustering groups a topic's unlinked mentions into time-bounded,
// similarity-connected clusters. Clusters are transient and live for a
// single detection run.
package clustering

import (
	"sort"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/similarity"
)

// Cluster is a connected group of mentions from one time window.
type Cluster struct {
	Mentions []*mention.Mention
	Centroid []float64
}

// newCluster builds a cluster and its mean centroid. Members must carry valid
// embeddings of one dimension.
func newCluster(members []*mention.Mention) (*Cluster, error) {
	sortByTime(members)
	vectors := make([][]float64, len(members))
	for i, m := range members {
		vectors[i] = m.Embedding
	}
	centroid, err := similarity.Centroid(vectors)
	if err != nil {
		return nil, err
	}
	return &Cluster{Mentions: members, Centroid: centroid}, nil
}

// Size returns the number of member mentions.
func (c *Cluster) Size() int { return len(c.Mentions) }

// Start returns the earliest member timestamp.
func (c *Cluster) Start() time.Time {
	if len(c.Mentions) == 0 {
		return time.Time{}
	}
	return c.Mentions[0].PublishedAt
}

// End returns the latest member timestamp.
func (c *Cluster) End() time.Time {
	if len(c.Mentions) == 0 {
		return time.Time{}
	}
	return c.Mentions[len(c.Mentions)-1].PublishedAt
}

// Span is End minus Start.
func (c *Cluster) Span() time.Duration { return c.End().Sub(c.Start()) }

// MentionIDs returns member ids in time order.
func (c *Cluster) MentionIDs() []string { return mention.IDs(c.Mentions) }

// Summary is a read-only projection of a cluster for previews and logs.
type Summary struct {
	Size       int       `json:"size"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	MentionIDs []string  `json:"mention_ids"`
}

// Summarize projects c.
func (c *Cluster) Summarize() Summary {
	return Summary{Size: c.Size(), Start: c.Start(), End: c.End(), MentionIDs: c.MentionIDs()}
}

// sortClusters orders clusters largest first; ties go to the earlier start,
// then the lower first mention id, so runs are reproducible.
func sortClusters(clusters []*Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.Size() != b.Size() {
			return a.Size() > b.Size()
		}
		if !a.Start().Equal(b.Start()) {
			return a.Start().Before(b.Start())
		}
		return a.Mentions[0].ID < b.Mentions[0].ID
	})
}

func sortByTime(mentions []*mention.Mention) {
	sort.SliceStable(mentions, func(i, j int) bool {
		a, b := mentions[i], mentions[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.ID < b.ID
	})
}
