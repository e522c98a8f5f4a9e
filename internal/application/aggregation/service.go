// Package aggregation computes and stores sentiment aggregations, trends and
// topic baselines inside a caller-supplied scope.
package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Config holds aggregation, trend and baseline parameters.
type Config struct {
	Windows           []sentiment.Window
	MinMentions       int
	Trend             sentiment.TrendConfig
	BaselineLookback  time.Duration
	BaselineMinSample int
	BaselineCacheTTL  time.Duration
}

// ConfigFrom converts the loaded configuration section.
func ConfigFrom(c config.AggregationConfig) (Config, error) {
	windows, err := sentiment.ParseWindows(c.Windows)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Windows:           windows,
		MinMentions:       c.MinMentions,
		Trend:             sentiment.TrendConfig{Significant: c.TrendSignificant, Stable: c.TrendStable},
		BaselineLookback:  time.Duration(c.BaselineLookbackDays) * 24 * time.Hour,
		BaselineMinSample: c.BaselineMinSample,
		BaselineCacheTTL:  c.BaselineCacheTTL,
	}, nil
}

// Recorder receives aggregation timings. The prometheus AppMetrics
// implements it.
type Recorder interface {
	ObserveAggregation(typ, window string, d time.Duration, written bool)
}

// Service computes aggregations.
type Service struct {
	cfg       Config
	baselines *BaselineService
	now       func() time.Time
	log       logging.Logger
	metrics   Recorder
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBaselines enables normalization of topic aggregations.
func WithBaselines(b *BaselineService) Option {
	return func(s *Service) { s.baselines = b }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// NewService creates a Service.
func NewService(cfg Config, log logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.MinMentions <= 0 {
		cfg.MinMentions = config.DefaultAggregationMinMentions
	}
	if len(cfg.Windows) == 0 {
		cfg.Windows = append([]sentiment.Window(nil), sentiment.AllWindows...)
	}
	s := &Service{cfg: cfg, now: time.Now, log: log.Named("aggregation")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// Aggregate computes the aggregation of (typ, key) over window w ending now
// and upserts it together with its trend. It returns nil without writing
// when fewer than MinMentions scored mentions qualify.
func (s *Service) Aggregate(ctx context.Context, sc scope.Scope, typ sentiment.AggregationType, key string, w sentiment.Window) (*sentiment.Aggregation, error) {
	if !w.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidWindow, fmt.Sprintf("unsupported window %q", w))
	}
	if key == "" {
		return nil, errors.InvalidParam("aggregation key cannot be empty")
	}

	start := time.Now()
	now := s.now()
	since, until := w.Bounds(now)
	mw := mention.Window{Since: since, Until: until}

	var (
		ms  []*mention.Mention
		err error
	)
	switch typ {
	case sentiment.TypeTopic:
		ms, err = sc.Mentions().ListScoredByTopic(ctx, key, mw)
	case sentiment.TypeIssue:
		ms, err = sc.Mentions().ListScoredByIssue(ctx, key, mw)
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("unsupported aggregation type %q", typ))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to load scored mentions")
	}

	if len(ms) < s.cfg.MinMentions {
		s.log.Debug("aggregation skipped: not enough mentions",
			logging.String("type", string(typ)),
			logging.String("key", key),
			logging.String("window", string(w)),
			logging.Int("mentions", len(ms)),
			logging.Int("min_mentions", s.cfg.MinMentions),
		)
		s.observe(typ, w, start, false)
		return nil, nil
	}

	res, err := sentiment.Calculate(ms)
	if err != nil {
		return nil, err
	}
	agg := sentiment.NewAggregation(typ, key, w, res, now)

	if typ == sentiment.TypeTopic && s.baselines != nil {
		base, err := s.baselines.Get(ctx, sc, key)
		if err != nil {
			return nil, err
		}
		if base != nil {
			n := sentiment.Normalize(agg.Index, base.Index)
			agg.NormalizedIndex = &n
		}
	}

	prev, err := sc.Sentiment().FindAggregation(ctx, typ, key, w)
	if err != nil && !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to load previous aggregation")
	}
	if err != nil {
		prev = nil
	}

	if err := sc.Sentiment().UpsertAggregation(ctx, agg); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to store aggregation")
	}
	trend := sentiment.CompareTrend(prev, agg, s.cfg.Trend, now)
	if err := sc.Sentiment().UpsertTrend(ctx, trend); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to store trend")
	}

	s.observe(typ, w, start, true)
	return agg, nil
}

// AggregateTopic aggregates a topic over w.
func (s *Service) AggregateTopic(ctx context.Context, sc scope.Scope, topicKey string, w sentiment.Window) (*sentiment.Aggregation, error) {
	return s.Aggregate(ctx, sc, sentiment.TypeTopic, topicKey, w)
}

// AggregateIssue aggregates an issue's linked mentions over w.
func (s *Service) AggregateIssue(ctx context.Context, sc scope.Scope, issueID string, w sentiment.Window) (*sentiment.Aggregation, error) {
	return s.Aggregate(ctx, sc, sentiment.TypeIssue, issueID, w)
}

// AggregateAll aggregates (typ, key) over every configured window and
// returns the rows written.
func (s *Service) AggregateAll(ctx context.Context, sc scope.Scope, typ sentiment.AggregationType, key string) ([]*sentiment.Aggregation, error) {
	return s.AggregateWindows(ctx, sc, typ, key, s.cfg.Windows)
}

// AggregateWindows aggregates (typ, key) over the given windows.
func (s *Service) AggregateWindows(ctx context.Context, sc scope.Scope, typ sentiment.AggregationType, key string, windows []sentiment.Window) ([]*sentiment.Aggregation, error) {
	var out []*sentiment.Aggregation
	for _, w := range windows {
		agg, err := s.Aggregate(ctx, sc, typ, key, w)
		if err != nil {
			return out, err
		}
		if agg != nil {
			out = append(out, agg)
		}
	}
	return out, nil
}

// Snapshot is a stored aggregation together with its trend.
type Snapshot struct {
	Aggregation *sentiment.Aggregation `json:"aggregation"`
	Trend       *sentiment.Trend       `json:"trend,omitempty"`
}

// Snapshot reads the stored aggregation and trend of (typ, key, w).
func (s *Service) Snapshot(ctx context.Context, sc scope.Scope, typ sentiment.AggregationType, key string, w sentiment.Window) (*Snapshot, error) {
	agg, err := sc.Sentiment().FindAggregation(ctx, typ, key, w)
	if err != nil {
		return nil, err
	}
	trend, err := sc.Sentiment().FindTrend(ctx, typ, key, w)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	return &Snapshot{Aggregation: agg, Trend: trend}, nil
}

// List returns every stored window of (typ, key).
func (s *Service) List(ctx context.Context, sc scope.Scope, typ sentiment.AggregationType, key string) ([]*sentiment.Aggregation, error) {
	return sc.Sentiment().ListAggregations(ctx, typ, key)
}

func (s *Service) observe(typ sentiment.AggregationType, w sentiment.Window, start time.Time, written bool) {
	if s.metrics != nil {
		s.metrics.ObserveAggregation(string(typ), string(w), time.Since(start), written)
	}
}
