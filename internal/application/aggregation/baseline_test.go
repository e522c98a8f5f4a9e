package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	rediscache "github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func newRedisCache(t *testing.T) (rediscache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	client := rediscache.NewClientFromUniversal(rdb, "test:", logging.NewNopLogger())
	t.Cleanup(func() { _ = client.Close() })
	return rediscache.NewRedisCache(client, logging.NewNopLogger(), rediscache.WithoutJitter()), mr
}

func TestBaseline_RefreshRequiresMinimumSample(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")

	cfg := testConfig()
	cfg.BaselineMinSample = 50
	log := testutil.NewMockLogger()
	svc := NewBaselineService(cfg, nil, log, clock)

	base, err := svc.Refresh(context.Background(), store, "water")
	require.NoError(t, err)
	assert.Nil(t, base)
	assert.True(t, log.HasMessage("info", "baseline not refreshed: sample too small"))

	_, err = store.Sentiment().FindBaseline(context.Background(), "water")
	assert.True(t, errors.IsNotFound(err))
}

func TestBaseline_RefreshIgnoresMentionsOutsideLookback(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, 0.6, testNow.Add(-40*24*time.Hour), "ancient")
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	svc := NewBaselineService(testConfig(), nil, logging.NewNopLogger(), clock)

	base, err := svc.Refresh(context.Background(), store, "water")
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.Equal(t, 3, base.SampleSize)
	assert.Equal(t, 30, base.LookbackDays)
	assert.InDelta(t, 20.0, base.Index, 1e-9)
}

func TestBaseline_GetMissingReturnsNil(t *testing.T) {
	store := testutil.NewMemStore()
	cache, _ := newRedisCache(t)
	svc := NewBaselineService(testConfig(), cache, logging.NewNopLogger(), clock)

	base, err := svc.Get(context.Background(), store, "water")
	require.NoError(t, err)
	assert.Nil(t, base)

	_, ok, err := svc.Normalize(context.Background(), store, "water", 40)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBaseline_LookupReadsThroughCache(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	cache, mr := newRedisCache(t)
	svc := NewBaselineService(testConfig(), cache, logging.NewNopLogger(), clock)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, store, "water")
	require.NoError(t, err)

	base, err := svc.Lookup(ctx, store, "water")
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.InDelta(t, 20.0, base.Index, 1e-9)
	assert.True(t, mr.Exists("test:baseline:water"))

	// Served from redis while the store is failing.
	store.Fail["sentiment.FindBaseline"] = errors.New(errors.ErrCodeDatabaseError, "down")
	base, err = svc.Get(ctx, store, "water")
	require.NoError(t, err)
	require.NotNil(t, base)

	normalized, ok, err := svc.Normalize(ctx, store, "water", 30)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 60.0, normalized, 1e-9)
}

func TestBaseline_GetDoesNotFillCache(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	cache, mr := newRedisCache(t)
	svc := NewBaselineService(testConfig(), cache, logging.NewNopLogger(), clock)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, store, "water")
	require.NoError(t, err)

	base, err := svc.Get(ctx, store, "water")
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.False(t, mr.Exists("test:baseline:water"))
}

func TestBaseline_RolledBackRefreshNeverReachesCache(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	cache, mr := newRedisCache(t)
	svc := NewBaselineService(testConfig(), cache, logging.NewNopLogger(), clock)
	ctx := context.Background()
	boom := errors.New(errors.ErrCodeDatabaseError, "aggregation store failed")

	err := store.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		if _, err := svc.Refresh(ctx, sc, "water"); err != nil {
			return err
		}
		base, err := svc.Get(ctx, sc, "water")
		require.NoError(t, err)
		require.NotNil(t, base)
		assert.InDelta(t, 20.0, base.Index, 1e-9)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.False(t, mr.Exists("test:baseline:water"))
	_, err = store.Sentiment().FindBaseline(ctx, "water")
	assert.True(t, errors.IsNotFound(err))

	base, err := svc.Get(ctx, store, "water")
	require.NoError(t, err)
	assert.Nil(t, base)
	base, err = svc.Lookup(ctx, store, "water")
	require.NoError(t, err)
	assert.Nil(t, base)
}

func TestBaseline_RefreshInvalidatesCache(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "neg")
	cache, mr := newRedisCache(t)
	svc := NewBaselineService(testConfig(), cache, logging.NewNopLogger(), clock)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, store, "water")
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, store, "water")
	require.NoError(t, err)
	require.True(t, mr.Exists("test:baseline:water"))

	seed(store, "water", 3, 0.6, testNow.Add(-time.Hour), "pos")
	_, err = svc.Refresh(ctx, store, "water")
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:baseline:water"))

	base, err := svc.Lookup(ctx, store, "water")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, base.Index, 1e-9)
}

func TestBaseline_InvalidateAll(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "w")
	seed(store, "roads", 3, 0.2, testNow.Add(-time.Hour), "r")
	cache, mr := newRedisCache(t)
	svc := NewBaselineService(testConfig(), cache, logging.NewNopLogger(), clock)
	ctx := context.Background()

	_, err := svc.RefreshAll(ctx, store)
	require.NoError(t, err)
	for _, topic := range []string{"water", "roads"} {
		_, err := svc.Lookup(ctx, store, topic)
		require.NoError(t, err)
	}
	mr.Set("test:other", "keep")
	require.True(t, mr.Exists("test:baseline:roads"))

	svc.InvalidateAll(ctx)
	assert.False(t, mr.Exists("test:baseline:water"))
	assert.False(t, mr.Exists("test:baseline:roads"))
	assert.True(t, mr.Exists("test:other"))
}

func TestBaseline_RefreshAll(t *testing.T) {
	store := testutil.NewMemStore()
	seed(store, "water", 3, -0.6, testNow.Add(-time.Hour), "w")
	seed(store, "roads", 2, 0.2, testNow.Add(-time.Hour), "r")
	svc := NewBaselineService(testConfig(), nil, logging.NewNopLogger(), clock)

	n, err := svc.RefreshAll(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
