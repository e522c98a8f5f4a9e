package aggregation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func scored(id, topic string, score float64, at time.Time) *mention.Mention {
	return &mention.Mention{
		ID:              id,
		Text:            "mention " + id,
		TopicKey:        topic,
		SentimentScore:  mention.Float(score),
		InfluenceWeight: mention.Float(1),
		PublishedAt:     at,
	}
}

func seed(store *testutil.MemStore, topic string, n int, score float64, at time.Time, prefix string) {
	for i := 0; i < n; i++ {
		store.AddMentions(scored(fmt.Sprintf("%s-%d", prefix, i), topic, score, at))
	}
}

func testConfig() Config {
	return Config{
		Windows:           []sentiment.Window{sentiment.Window24h},
		MinMentions:       3,
		Trend:             sentiment.DefaultTrendConfig(),
		BaselineLookback:  30 * 24 * time.Hour,
		BaselineMinSample: 3,
		BaselineCacheTTL:  time.Minute,
	}
}

type fakeRecorder struct {
	calls   int
	written int
}

func (f *fakeRecorder) ObserveAggregation(typ, window string, d time.Duration, written bool) {
	f.calls++
	if written {
		f.written++
	}
}

func aggregate(t *testing.T, store *testutil.MemStore, svc *Service, topic string) *sentiment.Aggregation {
	t.Helper()
	var agg *sentiment.Aggregation
	err := store.WithinTx(context.Background(), func(ctx context.Context, sc scope.Scope) error {
		var err error
		agg, err = svc.AggregateTopic(ctx, sc, topic, sentiment.Window24h)
		return err
	})
	require.NoError(t, err)
	return agg
}

func TestAggregate_BelowMinimumWritesNothing(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 2, -0.5, testNow.Add(-time.Hour), "m")
	rec := &fakeRecorder{}
	svc := NewService(testConfig(), logging.NewNopLogger(), WithClock(clock), WithRecorder(rec))

	agg := aggregate(t, store, svc, "water")
	assert.Nil(t, agg)
	assert.Equal(t, 0, store.AggregationCount())
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 0, rec.written)
}

func TestAggregate_FirstTrendIsStable(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	svc := NewService(testConfig(), logging.NewNopLogger(), WithClock(clock))

	agg := aggregate(t, store, svc, "water")
	require.NotNil(t, agg)
	assert.Equal(t, 3, agg.MentionCount)
	assert.InDelta(t, 20.0, agg.Index, 1e-9)
	assert.Nil(t, agg.NormalizedIndex)
	assert.Equal(t, testNow.Add(-24*time.Hour), agg.WindowStart)
	assert.Equal(t, testNow, agg.WindowEnd)

	trend, err := store.Sentiment().FindTrend(context.Background(), sentiment.TypeTopic, "water", sentiment.Window24h)
	require.NoError(t, err)
	assert.Equal(t, sentiment.DirectionStable, trend.Direction)
	assert.Zero(t, trend.Magnitude)
	assert.Nil(t, trend.PreviousIndex)
}

func TestAggregate_TrendAgainstPreviousRow(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-2*time.Hour), "neg")
	firstRun := testNow.Add(-30 * time.Minute)
	now := firstRun
	svc := NewService(testConfig(), logging.NewNopLogger(), WithClock(func() time.Time { return now }))
	aggregate(t, store, svc, "water")

	now = testNow
	seed(store, "water", 3, 0.6, testNow.Add(-time.Hour), "pos")
	agg := aggregate(t, store, svc, "water")
	require.NotNil(t, agg)
	assert.InDelta(t, 50.0, agg.Index, 1e-9)
	assert.Equal(t, 1, store.AggregationCount())

	trend, err := store.Sentiment().FindTrend(context.Background(), sentiment.TypeTopic, "water", sentiment.Window24h)
	require.NoError(t, err)
	assert.Equal(t, sentiment.DirectionImproving, trend.Direction)
	assert.InDelta(t, 30.0, trend.Delta, 1e-9)
	require.NotNil(t, trend.PreviousIndex)
	assert.InDelta(t, 20.0, *trend.PreviousIndex, 1e-9)

	require.NotNil(t, trend.PreviousWindowStart)
	require.NotNil(t, trend.PreviousWindowEnd)
	assert.True(t, firstRun.Add(-24*time.Hour).Equal(*trend.PreviousWindowStart))
	assert.True(t, firstRun.Equal(*trend.PreviousWindowEnd))
	assert.True(t, testNow.Add(-24*time.Hour).Equal(trend.CurrentWindowStart))
	assert.True(t, testNow.Equal(trend.CurrentWindowEnd))
}

func TestAggregate_NormalizesAgainstBaseline(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	seed(store, "water", 3, 0, testNow.Add(-5*24*time.Hour), "old")

	cfg := testConfig()
	baselines := NewBaselineService(cfg, nil, logging.NewNopLogger(), clock)
	svc := NewService(cfg, logging.NewNopLogger(), WithClock(clock), WithBaselines(baselines))

	err := store.WithinTx(context.Background(), func(ctx context.Context, sc scope.Scope) error {
		base, err := baselines.Refresh(ctx, sc, "water")
		if err != nil {
			return err
		}
		require.NotNil(t, base)
		assert.InDelta(t, 35.0, base.Index, 1e-9)
		return nil
	})
	require.NoError(t, err)

	agg := aggregate(t, store, svc, "water")
	require.NotNil(t, agg)
	require.NotNil(t, agg.NormalizedIndex)
	assert.InDelta(t, 35.0, *agg.NormalizedIndex, 1e-9)
}

func TestAggregate_IssueAggregationIsNeverNormalized(t *testing.T) {
	store := testutil.NewMemStore()
	svc := NewService(testConfig(), logging.NewNopLogger(), WithClock(clock))

	err := store.WithinTx(context.Background(), func(ctx context.Context, sc scope.Scope) error {
		agg, err := svc.AggregateIssue(ctx, sc, "issue-1", sentiment.Window24h)
		assert.Nil(t, agg)
		return err
	})
	require.NoError(t, err)
}

func TestAggregate_Validation(t *testing.T) {
	store := testutil.NewMemStore()
	svc := NewService(testConfig(), logging.NewNopLogger(), WithClock(clock))
	ctx := context.Background()

	_, err := svc.Aggregate(ctx, store, sentiment.TypeTopic, "water", sentiment.Window("2h"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidWindow))

	_, err = svc.Aggregate(ctx, store, sentiment.TypeTopic, "", sentiment.Window1h)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = svc.Aggregate(ctx, store, sentiment.AggregationType("region"), "x", sentiment.Window1h)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestAggregate_StoreFailureRollsBack(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	store.Fail["sentiment.UpsertTrend"] = errors.New(errors.ErrCodeDatabaseError, "boom")
	svc := NewService(testConfig(), logging.NewNopLogger(), WithClock(clock))

	err := store.WithinTx(context.Background(), func(ctx context.Context, sc scope.Scope) error {
		_, err := svc.AggregateTopic(ctx, sc, "water", sentiment.Window24h)
		return err
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	assert.Equal(t, 0, store.AggregationCount())
}

func TestAggregateAll_SkipsSparseWindows(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.2, testNow.Add(-3*time.Hour), "m")

	cfg := testConfig()
	cfg.Windows = []sentiment.Window{sentiment.Window1h, sentiment.Window24h, sentiment.Window7d}
	svc := NewService(cfg, logging.NewNopLogger(), WithClock(clock))

	aggs, err := svc.AggregateAll(context.Background(), store, sentiment.TypeTopic, "water")
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, sentiment.Window24h, aggs[0].Window)
	assert.Equal(t, sentiment.Window7d, aggs[1].Window)
}

func TestSnapshot(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	svc := NewService(testConfig(), logging.NewNopLogger(), WithClock(clock))
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, store, sentiment.TypeTopic, "water", sentiment.Window24h)
	assert.True(t, errors.IsNotFound(err))

	aggregate(t, store, svc, "water")
	snap, err := svc.Snapshot(ctx, store, sentiment.TypeTopic, "water", sentiment.Window24h)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, snap.Aggregation.Index, 1e-9)
	require.NotNil(t, snap.Trend)
	assert.Equal(t, sentiment.DirectionStable, snap.Trend.Direction)

	rows, err := svc.List(ctx, store, sentiment.TypeTopic, "water")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
