package sentiment

import "context"

// Repository persists aggregations, trends and baselines. There is one
// current row per (type, key, window).
type Repository interface {
	FindAggregation(ctx context.Context, typ AggregationType, key string, w Window) (*Aggregation, error)
	ListAggregations(ctx context.Context, typ AggregationType, key string) ([]*Aggregation, error)
	UpsertAggregation(ctx context.Context, agg *Aggregation) error

	FindTrend(ctx context.Context, typ AggregationType, key string, w Window) (*Trend, error)
	UpsertTrend(ctx context.Context, t *Trend) error

	FindBaseline(ctx context.Context, topicKey string) (*Baseline, error)
	UpsertBaseline(ctx context.Context, b *Baseline) error
}
