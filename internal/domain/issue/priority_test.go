package issue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
)

func TestSentimentComponent(t *testing.T) {
	assert.Equal(t, 80.0, SentimentComponent(ptr(20), ptr(0.9)))
	assert.Equal(t, 100.0, SentimentComponent(nil, ptr(-1)))
	assert.Equal(t, 25.0, SentimentComponent(nil, ptr(0.5)))
	assert.Equal(t, 50.0, SentimentComponent(nil, nil))
}

func TestVolumeComponent(t *testing.T) {
	assert.Equal(t, 0.0, VolumeComponent(0))
	assert.InDelta(t, 63.21, VolumeComponent(20), 0.01)
	assert.Less(t, VolumeComponent(1000), 100.0+1e-9)
	assert.Greater(t, VolumeComponent(40), VolumeComponent(20))
}

func TestTimeComponent(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{0, 100},
		{time.Hour, 100},
		{24 * time.Hour, 80},
		{48 * time.Hour, 70},
		{72 * time.Hour, 60},
		{168 * time.Hour, 40},
		{336 * time.Hour, 20},
		{552 * time.Hour, 10},
		{768 * time.Hour, 0},
		{2000 * time.Hour, 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, TimeComponent(tc.age), 1e-9, tc.age.String())
	}
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandCritical, BandFor(80))
	assert.Equal(t, BandHigh, BandFor(79.99))
	assert.Equal(t, BandHigh, BandFor(60))
	assert.Equal(t, BandMedium, BandFor(40))
	assert.Equal(t, BandLow, BandFor(39.9))
}

func TestPriorityCalculator_Apply(t *testing.T) {
	c := NewPriorityCalculator(DefaultWeights(), logging.NewNopLogger())
	iss := &Issue{
		MentionCount:    20,
		LastActivity:    testNow.Add(-24 * time.Hour),
		VelocityPercent: 0,
		Sentiment:       Sentiment{Index: ptr(20)},
	}
	b := c.Apply(iss, testNow)

	// 0.4*80 + 0.3*63.21 + 0.2*80 + 0.1*50
	assert.InDelta(t, 71.96, b.Score, 0.01)
	assert.Equal(t, BandHigh, b.Band)
	assert.Equal(t, b.Score, iss.PriorityScore)
	assert.Equal(t, BandHigh, iss.PriorityBand)
}

func TestPriorityCalculator_Bounds(t *testing.T) {
	c := NewPriorityCalculator(Weights{Sentiment: 1, Volume: 1, Time: 1, Velocity: 1}, logging.NewNopLogger())
	iss := &Issue{MentionCount: 10000, LastActivity: testNow, VelocityPercent: 1000, Sentiment: Sentiment{Index: ptr(0)}}
	assert.Equal(t, 100.0, c.Calculate(iss, testNow).Score)

	iss = &Issue{LastActivity: testNow.Add(-2000 * time.Hour), VelocityPercent: -100, Sentiment: Sentiment{Index: ptr(100)}}
	b := c.Calculate(iss, testNow)
	assert.Equal(t, 0.0, b.Score)
	assert.Equal(t, BandLow, b.Band)
}

func TestNewPriorityCalculator_WarnsOnBadWeights(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := logging.NewLoggerFromCore(core)

	NewPriorityCalculator(DefaultWeights(), log)
	assert.Equal(t, 0, logs.Len())

	NewPriorityCalculator(Weights{Sentiment: 0.5, Volume: 0.5, Time: 0.5}, log)
	assert.Equal(t, 1, logs.FilterMessage("priority weights do not sum to 1.0").Len())
}
