package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func newReader(store *testutil.MemStore, withBaselines bool) *Reader {
	cfg := testConfig()
	var baselines *BaselineService
	if withBaselines {
		baselines = NewBaselineService(cfg, nil, logging.NewNopLogger(), clock)
	}
	svc := NewService(cfg, logging.NewNopLogger(), WithClock(clock), WithBaselines(baselines))
	return NewReader(store, svc, baselines)
}

func TestReader_AggregateThenRead(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 4, -0.5, testNow.Add(-time.Hour), "w")
	r := newReader(store, false)
	ctx := context.Background()

	aggs, err := r.Aggregate(ctx, sentiment.TypeTopic, "water", nil)
	require.NoError(t, err)
	require.Len(t, aggs, 1)

	snap, err := r.Snapshot(ctx, sentiment.TypeTopic, "water", sentiment.Window24h)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Aggregation.MentionCount)
	require.NotNil(t, snap.Trend)
	assert.Equal(t, sentiment.DirectionStable, snap.Trend.Direction)

	list, err := r.List(ctx, sentiment.TypeTopic, "water")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = r.Snapshot(ctx, sentiment.TypeTopic, "roads", sentiment.Window24h)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAggregationNotFound))
}

func TestReader_Baselines(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "w")
	r := newReader(store, true)
	ctx := context.Background()

	_, err := r.Baseline(ctx, "water")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBaselineNotFound))

	n, err := r.RefreshBaseline(ctx, "water")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	base, err := r.Baseline(ctx, "water")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, base.Index, 1e-9)

	n, err = r.RefreshBaseline(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReader_BaselinesNotConfigured(t *testing.T) {
	r := newReader(testutil.NewMemStore(), false)

	_, err := r.Baseline(context.Background(), "water")
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	_, err = r.RefreshBaseline(context.Background(), "water")
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}
