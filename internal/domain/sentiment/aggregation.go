package sentiment

import "time"

// Aggregation is the current sentiment summary of one (type, key, window).
type Aggregation struct {
	ID                  string             `json:"id"`
	Type                AggregationType    `json:"type"`
	Key                 string             `json:"key"`
	Window              Window             `json:"window"`
	WindowStart         time.Time          `json:"window_start"`
	WindowEnd           time.Time          `json:"window_end"`
	MentionCount        int                `json:"mention_count"`
	WeightedScore       float64            `json:"weighted_score"`
	Index               float64            `json:"index"`
	NormalizedIndex     *float64           `json:"normalized_index,omitempty"`
	Distribution        map[string]float64 `json:"distribution"`
	EmotionDistribution map[string]float64 `json:"emotion_distribution"`
	Severity            float64            `json:"severity"`
	ComputedAt          time.Time          `json:"computed_at"`
}

// NewAggregation builds an aggregation row from a computed Result.
func NewAggregation(typ AggregationType, key string, w Window, r Result, now time.Time) *Aggregation {
	start, end := w.Bounds(now)
	return &Aggregation{
		Type:                typ,
		Key:                 key,
		Window:              w,
		WindowStart:         start,
		WindowEnd:           end,
		MentionCount:        r.Count,
		WeightedScore:       r.WeightedScore,
		Index:               r.Index,
		Distribution:        r.Distribution,
		EmotionDistribution: r.EmotionDistribution,
		Severity:            r.Severity,
		ComputedAt:          now,
	}
}

// Direction is the qualitative movement of a trend.
type Direction string

const (
	DirectionImproving     Direction = "improving"
	DirectionDeteriorating Direction = "deteriorating"
	DirectionStable        Direction = "stable"
)

// TrendConfig holds the delta thresholds of CompareTrend.
type TrendConfig struct {
	Significant float64
	Stable      float64
}

// DefaultTrendConfig returns 5 / 2.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{Significant: 5, Stable: 2}
}

// Trend compares the two newest aggregations of a (type, key, window) and
// records the period each side covered.
type Trend struct {
	Type                AggregationType `json:"type"`
	Key                 string          `json:"key"`
	Window              Window          `json:"window"`
	Direction           Direction       `json:"direction"`
	Delta               float64         `json:"delta"`
	Magnitude           float64         `json:"magnitude"`
	PreviousIndex       *float64        `json:"previous_index,omitempty"`
	PreviousWindowStart *time.Time      `json:"previous_window_start,omitempty"`
	PreviousWindowEnd   *time.Time      `json:"previous_window_end,omitempty"`
	CurrentIndex        float64         `json:"current_index"`
	CurrentWindowStart  time.Time       `json:"current_window_start"`
	CurrentWindowEnd    time.Time       `json:"current_window_end"`
	ComputedAt          time.Time       `json:"computed_at"`
}

// CompareTrend derives the trend from prev to cur. A nil prev means this is
// the first aggregation and yields a stable trend of magnitude zero.
func CompareTrend(prev, cur *Aggregation, cfg TrendConfig, now time.Time) *Trend {
	t := &Trend{
		Type:               cur.Type,
		Key:                cur.Key,
		Window:             cur.Window,
		Direction:          DirectionStable,
		CurrentIndex:       cur.Index,
		CurrentWindowStart: cur.WindowStart,
		CurrentWindowEnd:   cur.WindowEnd,
		ComputedAt:         now,
	}
	if prev == nil {
		return t
	}

	p, start, end := prev.Index, prev.WindowStart, prev.WindowEnd
	t.PreviousIndex = &p
	t.PreviousWindowStart = &start
	t.PreviousWindowEnd = &end
	t.Delta = cur.Index - p
	t.Magnitude = abs(t.Delta)
	t.Direction = directionFor(t.Delta, cfg)
	return t
}

func directionFor(delta float64, cfg TrendConfig) Direction {
	switch {
	case delta >= cfg.Significant:
		return DirectionImproving
	case delta <= -cfg.Significant:
		return DirectionDeteriorating
	case abs(delta) <= cfg.Stable:
		return DirectionStable
	case delta > 0:
		return DirectionImproving
	default:
		return DirectionDeteriorating
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Baseline is the long-run sentiment index of a topic.
type Baseline struct {
	TopicKey      string    `json:"topic_key"`
	Index         float64   `json:"index"`
	WeightedScore float64   `json:"weighted_score"`
	SampleSize    int       `json:"sample_size"`
	LookbackDays  int       `json:"lookback_days"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Normalize re-centres a short-window index around the baseline:
// clamp(50 + current - baseline, 0, 100).
func Normalize(current, baseline float64) float64 {
	return clamp(50+current-baseline, 0, 100)
}
