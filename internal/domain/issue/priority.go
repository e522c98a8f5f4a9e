package issue

import (
	"math"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
)

// Weights are the priority component weights. They are expected to sum to 1;
// other sums are used as given.
type Weights struct {
	Sentiment float64
	Volume    float64
	Time      float64
	Velocity  float64
}

// DefaultWeights returns 0.4 / 0.3 / 0.2 / 0.1.
func DefaultWeights() Weights {
	return Weights{Sentiment: 0.4, Volume: 0.3, Time: 0.2, Velocity: 0.1}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Sentiment + w.Volume + w.Time + w.Velocity
}

const weightTolerance = 0.01

// PriorityBreakdown exposes each component next to the final score.
type PriorityBreakdown struct {
	Sentiment float64 `json:"sentiment"`
	Volume    float64 `json:"volume"`
	Time      float64 `json:"time"`
	Velocity  float64 `json:"velocity"`
	Score     float64 `json:"score"`
	Band      Band    `json:"band"`
}

// PriorityCalculator scores issues on a 0-100 scale.
type PriorityCalculator struct {
	weights Weights
}

// NewPriorityCalculator creates a calculator. A weight sum away from 1 is
// logged once here.
func NewPriorityCalculator(w Weights, log logging.Logger) *PriorityCalculator {
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance && log != nil {
		log.Warn("priority weights do not sum to 1.0",
			logging.Float64("sum", sum),
			logging.Float64("sentiment", w.Sentiment),
			logging.Float64("volume", w.Volume),
			logging.Float64("time", w.Time),
			logging.Float64("velocity", w.Velocity),
		)
	}
	return &PriorityCalculator{weights: w}
}

// Weights returns the configured weights.
func (c *PriorityCalculator) Weights() Weights { return c.weights }

// Calculate scores iss at now without modifying it.
func (c *PriorityCalculator) Calculate(iss *Issue, now time.Time) PriorityBreakdown {
	b := PriorityBreakdown{
		Sentiment: SentimentComponent(iss.Sentiment.Index, iss.Sentiment.WeightedScore),
		Volume:    VolumeComponent(iss.MentionCount),
		Time:      TimeComponent(now.Sub(iss.ActivityTime())),
		Velocity:  VelocityScore(iss.VelocityPercent),
	}
	score := c.weights.Sentiment*b.Sentiment +
		c.weights.Volume*b.Volume +
		c.weights.Time*b.Time +
		c.weights.Velocity*b.Velocity
	b.Score = math.Round(clamp(score, 0, 100)*100) / 100
	b.Band = BandFor(b.Score)
	return b
}

// Apply scores iss and stores score and band on it.
func (c *PriorityCalculator) Apply(iss *Issue, now time.Time) PriorityBreakdown {
	b := c.Calculate(iss, now)
	iss.PriorityScore = b.Score
	iss.PriorityBand = b.Band
	return b
}

// SentimentComponent is 100 - index. Without an index the weighted score in
// [-1, 1] is mapped through 50 - 50·score, and with neither it is neutral.
func SentimentComponent(index, weightedScore *float64) float64 {
	switch {
	case index != nil:
		return clamp(100-*index, 0, 100)
	case weightedScore != nil:
		return clamp(50-*weightedScore*50, 0, 100)
	default:
		return 50
	}
}

// VolumeComponent saturates logarithmically: 100·(1 - e^(-n/20)).
func VolumeComponent(n int) float64 {
	if n <= 0 {
		return 0
	}
	return clamp(100*(1-math.Exp(-float64(n)/20)), 0, 100)
}

type decayPoint struct {
	age   time.Duration
	score float64
}

// recencyCurve is interpolated linearly between points.
var recencyCurve = []decayPoint{
	{time.Hour, 100},
	{24 * time.Hour, 80},
	{72 * time.Hour, 60},
	{168 * time.Hour, 40},
	{336 * time.Hour, 20},
	{768 * time.Hour, 0},
}

// TimeComponent decays from 100 at one hour of age to 0 at 32 days.
func TimeComponent(age time.Duration) float64 {
	if age <= recencyCurve[0].age {
		return recencyCurve[0].score
	}
	for i := 1; i < len(recencyCurve); i++ {
		lo, hi := recencyCurve[i-1], recencyCurve[i]
		if age <= hi.age {
			frac := float64(age-lo.age) / float64(hi.age-lo.age)
			return lo.score + frac*(hi.score-lo.score)
		}
	}
	return 0
}

// BandFor maps a score onto its band.
func BandFor(score float64) Band {
	switch {
	case score >= 80:
		return BandCritical
	case score >= 60:
		return BandHigh
	case score >= 40:
		return BandMedium
	default:
		return BandLow
	}
}
