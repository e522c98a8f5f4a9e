package detection

import (
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/domain/clustering"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
)

// Config holds everything a Detector needs. Build it with ConfigFrom or
// DefaultConfig; there is no package level state.
type Config struct {
	Clustering clustering.Config

	IssueSimilarityThreshold float64
	CentroidSampleSize       int
	VelocityWindow           time.Duration
	// MaxSpanFactor bounds the span of a cluster that may seed a new issue
	// to MaxSpanFactor × Clustering.TimeWindow.
	MaxSpanFactor float64
	// MaxMentions limits the unlinked mentions read per run; 0 is unbounded.
	MaxMentions int
	MergePass   bool

	IssueAggregationWindows []sentiment.Window
	// ReactivationWindow lets issues resolved within this period match new
	// clusters again; 0 disables it.
	ReactivationWindow time.Duration

	Lifecycle issue.LifecycleConfig
	Weights   issue.Weights
	Metadata  issue.MetadataConfig
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	c, _ := ConfigFrom(config.Default())
	return c
}

// ConfigFrom maps the loaded configuration onto a Config.
func ConfigFrom(c *config.Config) (Config, error) {
	d := c.Detection
	windows, err := sentiment.ParseWindows(d.IssueAggregationWindows)
	if err != nil {
		return Config{}, err
	}
	l := c.Lifecycle
	return Config{
		Clustering: clustering.Config{
			SimilarityThreshold: d.SimilarityThreshold,
			MinClusterSize:      d.MinClusterSize,
			TimeWindow:          d.TimeWindow(),
			EmbeddingDim:        d.EmbeddingDim,
			ANN: clustering.ANNConfig{
				Enabled:       d.ANN.Enabled,
				MinWindowSize: d.ANN.MinWindowSize,
				Neighbors:     d.ANN.Neighbors,
				M:             d.ANN.M,
				EfSearch:      d.ANN.EfSearch,
			},
		},
		IssueSimilarityThreshold: d.IssueSimilarityThreshold,
		CentroidSampleSize:       d.CentroidSampleSize,
		VelocityWindow:           d.VelocityWindow(),
		MaxSpanFactor:            d.MaxSpanFactor,
		MaxMentions:              d.MaxMentions,
		MergePass:                d.MergePass,
		IssueAggregationWindows:  windows,
		ReactivationWindow:       time.Duration(l.ReactivationWindowDays) * 24 * time.Hour,
		Lifecycle: issue.LifecycleConfig{
			ResolvedAfter:          time.Duration(l.ResolvedThresholdDays) * 24 * time.Hour,
			EmergingWindow:         time.Duration(l.EmergingThresholdHours) * time.Hour,
			EmergingMinMentions:    l.EmergingMinMentions,
			EscalationIndex:        l.EscalationIndex,
			EscalationMinMentions:  l.EscalationMinMentions,
			StabilizingVelocity:    l.StabilizingVelocity,
			StabilizingMinMentions: l.StabilizingMinMentions,
			ActiveMinMentions:      l.ActiveMinMentions,
		},
		Weights: issue.Weights{
			Sentiment: c.Priority.SentimentWeight,
			Volume:    c.Priority.VolumeWeight,
			Time:      c.Priority.TimeWeight,
			Velocity:  c.Priority.VelocityWeight,
		},
		Metadata: issue.MetadataConfig{
			TopKeywords:    d.TopKeywords,
			TopSources:     d.TopSources,
			MaxRegions:     d.MaxRegions,
			ExtraStopwords: d.ExtraStopwords,
		},
	}, nil
}

// maxSpan is the longest cluster span allowed to create an issue.
func (c Config) maxSpan() time.Duration {
	return time.Duration(c.MaxSpanFactor * float64(c.Clustering.TimeWindow))
}
