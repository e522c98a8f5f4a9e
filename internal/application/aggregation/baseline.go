package aggregation

import (
	"context"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Cache is the read-through cache used for baselines. The redis Cache
// implements it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// BaselineService maintains the long-run sentiment index of each topic.
type BaselineService struct {
	cfg   Config
	cache Cache
	now   func() time.Time
	log   logging.Logger
}

// NewBaselineService creates a BaselineService. cache may be nil.
func NewBaselineService(cfg Config, cache Cache, log logging.Logger, now func() time.Time) *BaselineService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if now == nil {
		now = time.Now
	}
	return &BaselineService{cfg: cfg, cache: cache, now: now, log: log.Named("baseline")}
}

const baselineCachePrefix = "baseline:"

func baselineCacheKey(topicKey string) string { return baselineCachePrefix + topicKey }

// Refresh recomputes the baseline of topicKey over the lookback period. It
// returns nil without writing when the sample is smaller than the
// configured minimum.
func (b *BaselineService) Refresh(ctx context.Context, sc scope.Scope, topicKey string) (*sentiment.Baseline, error) {
	if topicKey == "" {
		return nil, errors.New(errors.ErrCodeTopicRequired, "topic key cannot be empty")
	}
	now := b.now()
	ms, err := sc.Mentions().ListScoredByTopic(ctx, topicKey, mention.Window{Since: now.Add(-b.cfg.BaselineLookback), Until: now})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to load baseline sample")
	}
	if len(ms) < b.cfg.BaselineMinSample {
		b.log.Info("baseline not refreshed: sample too small",
			logging.String("topic", topicKey),
			logging.Int("sample", len(ms)),
			logging.Int("min_sample", b.cfg.BaselineMinSample),
		)
		return nil, nil
	}

	res, err := sentiment.Calculate(ms)
	if err != nil {
		return nil, err
	}
	base := &sentiment.Baseline{
		TopicKey:      topicKey,
		Index:         res.Index,
		WeightedScore: res.WeightedScore,
		SampleSize:    res.Count,
		LookbackDays:  int(b.cfg.BaselineLookback / (24 * time.Hour)),
		ComputedAt:    now,
	}
	if err := sc.Sentiment().UpsertBaseline(ctx, base); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to store baseline")
	}
	b.invalidate(ctx, topicKey)

	b.log.Info("baseline refreshed",
		logging.String("topic", topicKey),
		logging.Float64("index", base.Index),
		logging.Int("sample", base.SampleSize),
	)
	return base, nil
}

// Get returns the baseline visible to sc, or nil when the topic has none.
// The shared cache is consulted but never filled, because sc may carry
// writes that are later rolled back.
func (b *BaselineService) Get(ctx context.Context, sc scope.Scope, topicKey string) (*sentiment.Baseline, error) {
	if b.cache != nil {
		var base sentiment.Baseline
		err := b.cache.Get(ctx, baselineCacheKey(topicKey), &base)
		if err == nil {
			return &base, nil
		}
		if !errors.IsCode(err, errors.ErrCodeNotFound) {
			b.log.Warn("baseline cache read failed, using store", logging.String("topic", topicKey), logging.Err(err))
		}
	}
	return findBaseline(ctx, sc, topicKey)
}

// Lookup is Get for scopes that only read. A cache miss is loaded from sc
// and written back to the shared cache.
func (b *BaselineService) Lookup(ctx context.Context, sc scope.Scope, topicKey string) (*sentiment.Baseline, error) {
	if b.cache == nil {
		return findBaseline(ctx, sc, topicKey)
	}

	load := func(ctx context.Context) (interface{}, error) {
		base, err := findBaseline(ctx, sc, topicKey)
		if base == nil || err != nil {
			return nil, err
		}
		return base, nil
	}
	var base sentiment.Baseline
	err := b.cache.GetOrSet(ctx, baselineCacheKey(topicKey), &base, b.cfg.BaselineCacheTTL, load)
	switch {
	case err == nil:
		return &base, nil
	case errors.IsCode(err, errors.ErrCodeNotFound):
		return nil, nil
	default:
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to load baseline")
	}
}

func findBaseline(ctx context.Context, sc scope.Scope, topicKey string) (*sentiment.Baseline, error) {
	base, err := sc.Sentiment().FindBaseline(ctx, topicKey)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return base, nil
}

// Normalize re-centres current around the topic baseline. ok is false when
// the topic has no baseline.
func (b *BaselineService) Normalize(ctx context.Context, sc scope.Scope, topicKey string, current float64) (normalized float64, ok bool, err error) {
	base, err := b.Get(ctx, sc, topicKey)
	if err != nil || base == nil {
		return 0, false, err
	}
	return sentiment.Normalize(current, base.Index), true, nil
}

// RefreshAll refreshes every topic that has mentions and returns how many
// baselines were written.
func (b *BaselineService) RefreshAll(ctx context.Context, sc scope.Scope) (int, error) {
	topics, err := sc.Mentions().ListTopicKeys(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeUnknown, "failed to list topics")
	}
	n := 0
	for _, t := range topics {
		base, err := b.Refresh(ctx, sc, t)
		if err != nil {
			return n, err
		}
		if base != nil {
			n++
		}
	}
	return n, nil
}

// Invalidate drops the cached baseline of topicKey. Callers that refreshed
// inside a transaction call it again after commit, since a concurrent
// Lookup may have cached the previous row in between.
func (b *BaselineService) Invalidate(ctx context.Context, topicKey string) {
	b.invalidate(ctx, topicKey)
}

// InvalidateAll drops every cached baseline.
func (b *BaselineService) InvalidateAll(ctx context.Context) {
	if b.cache == nil {
		return
	}
	n, err := b.cache.DeleteByPrefix(ctx, baselineCachePrefix)
	if err != nil {
		b.log.Warn("failed to invalidate cached baselines", logging.Err(err))
		return
	}
	b.log.Debug("cached baselines invalidated", logging.Int64("keys", n))
}

func (b *BaselineService) invalidate(ctx context.Context, topicKey string) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Delete(ctx, baselineCacheKey(topicKey)); err != nil {
		b.log.Warn("failed to invalidate cached baseline", logging.String("topic", topicKey), logging.Err(err))
	}
}
