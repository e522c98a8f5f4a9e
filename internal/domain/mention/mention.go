// Package mention models the already-scored content units produced by the
// upstream analysis pipeline. Mentions are read-only here; only links to
// issues are written by this service.
package mention

import (
	"time"
)

// SentimentLabel is the categorical sentiment assigned upstream.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentMixed    SentimentLabel = "mixed"
)

// Mention is a single scored content record associated with one topic.
type Mention struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// Embedding is nil when the analysis store has not been consulted yet.
	Embedding []float64 `json:"-"`

	SentimentLabel SentimentLabel `json:"sentiment_label,omitempty"`
	// SentimentScore is in [-1, 1]; nil when the mention is unscored.
	SentimentScore      *float64           `json:"sentiment_score,omitempty"`
	EmotionLabel        string             `json:"emotion_label,omitempty"`
	EmotionDistribution map[string]float64 `json:"emotion_distribution,omitempty"`
	// InfluenceWeight is nil when unknown; such mentions never aggregate.
	InfluenceWeight *float64 `json:"influence_weight,omitempty"`
	// ConfidenceWeight defaults to 1 when nil.
	ConfidenceWeight *float64 `json:"confidence_weight,omitempty"`

	TopicKey        string    `json:"topic_key"`
	TopicConfidence float64   `json:"topic_confidence"`
	Source          string    `json:"source,omitempty"`
	Region          string    `json:"region,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
}

// Confidence returns the confidence weight, defaulting to 1.
func (m *Mention) Confidence() float64 {
	if m.ConfidenceWeight == nil {
		return 1
	}
	return *m.ConfidenceWeight
}

// Scored reports whether the mention qualifies for sentiment aggregation.
func (m *Mention) Scored() bool {
	return m.SentimentScore != nil && m.InfluenceWeight != nil
}

// IDs returns the identifiers of mentions in order.
func IDs(mentions []*Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.ID
	}
	return out
}

// Float returns a pointer to v. Used when building mentions in code.
func Float(v float64) *float64 { return &v }
