// Package sentiment computes influence-weighted sentiment over sets of
// mentions and models the aggregation, trend and baseline records derived
// from them.
package sentiment

import (
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// NeutralIndex is used when no index can be computed.
const NeutralIndex = 50.0

// neutralBand is the score range treated as neutral when a mention carries
// no label.
const neutralBand = 0.05

var (
	negativeEmotions = []string{"anger", "fear", "sadness", "disgust"}
	positiveEmotions = []string{"joy", "trust"}
)

// Result is the outcome of a sentiment computation.
type Result struct {
	Count               int                `json:"count"`
	WeightedScore       float64            `json:"weighted_score"`
	Index               float64            `json:"index"`
	Distribution        map[string]float64 `json:"distribution"`
	EmotionDistribution map[string]float64 `json:"emotion_distribution"`
	Severity            float64            `json:"severity"`
}

// Neutral is the fallback result used when a computation fails.
func Neutral() Result {
	return Result{
		Index:               NeutralIndex,
		Distribution:        map[string]float64{},
		EmotionDistribution: map[string]float64{},
		Severity:            0.5,
	}
}

// Calculate aggregates the scored mentions in ms. Unscored mentions are
// skipped.
//
//	weighted = Σ(score·influence·confidence) / Σ influence
//	index    = (clamp(weighted, -1, 1) + 1) · 50
func Calculate(ms []*mention.Mention) (Result, error) {
	var (
		num, den float64
		count    int
		labels   = map[string]float64{}
		emotions = map[string]float64{}
		emoW     float64
	)

	for _, m := range ms {
		if !m.Scored() {
			continue
		}
		infl := *m.InfluenceWeight
		if infl < 0 {
			continue
		}
		count++
		num += *m.SentimentScore * infl * m.Confidence()
		den += infl
		labels[labelOf(m)]++

		switch {
		case len(m.EmotionDistribution) > 0:
			for e, p := range m.EmotionDistribution {
				emotions[e] += p * infl
			}
			emoW += infl
		case m.EmotionLabel != "":
			emotions[m.EmotionLabel] += infl
			emoW += infl
		}
	}

	if count == 0 {
		return Neutral(), errors.New(errors.ErrCodeInvalidAggregation, "no scored mentions")
	}
	if den == 0 {
		return Neutral(), errors.New(errors.ErrCodeInvalidAggregation, "total influence weight is zero")
	}

	for k := range labels {
		labels[k] /= float64(count)
	}
	if emoW > 0 {
		for k := range emotions {
			emotions[k] /= emoW
		}
	}

	weighted := clamp(num/den, -1, 1)
	return Result{
		Count:               count,
		WeightedScore:       weighted,
		Index:               IndexFromScore(weighted),
		Distribution:        labels,
		EmotionDistribution: emotions,
		Severity:            Severity(weighted, emotions),
	}, nil
}

// IndexFromScore maps a score in [-1, 1] onto [0, 100].
func IndexFromScore(score float64) float64 {
	return (clamp(score, -1, 1) + 1) * 50
}

// Severity is (1 - score)/2 adjusted by the emotion mix: up to +0.2 for each
// negative emotion and down to -0.1 for each positive one, clamped to [0, 1].
func Severity(score float64, emotions map[string]float64) float64 {
	s := (1 - clamp(score, -1, 1)) / 2
	for _, e := range negativeEmotions {
		s += 0.2 * emotions[e]
	}
	for _, e := range positiveEmotions {
		s -= 0.1 * emotions[e]
	}
	return clamp(s, 0, 1)
}

func labelOf(m *mention.Mention) string {
	if m.SentimentLabel != "" {
		return string(m.SentimentLabel)
	}
	switch s := *m.SentimentScore; {
	case s > neutralBand:
		return string(mention.SentimentPositive)
	case s < -neutralBand:
		return string(mention.SentimentNegative)
	default:
		return string(mention.SentimentNeutral)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
