package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

type postgresSentimentRepo struct {
	baseRepo
}

const aggregationColumns = `
	id, agg_type, agg_key, window_label, window_start, window_end, mention_count,
	weighted_score, sentiment_index, normalized_index, distribution, emotion_distribution,
	severity, computed_at`

// ─────────────────────────────────────────────────────────────────────────────
// Aggregations
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresSentimentRepo) FindAggregation(ctx context.Context, typ sentiment.AggregationType, key string, w sentiment.Window) (*sentiment.Aggregation, error) {
	row := r.executor().QueryRowContext(ctx, `
		SELECT `+aggregationColumns+`
		FROM sentiment_aggregations
		WHERE agg_type = $1 AND agg_key = $2 AND window_label = $3`, string(typ), key, string(w))
	agg, err := scanAggregation(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(errors.ErrCodeAggregationNotFound, "aggregation", key+"/"+string(w))
	}
	if err != nil {
		return nil, dbError(err, "failed to load aggregation")
	}
	return agg, nil
}

// ListAggregations returns the current rows of (typ, key), shortest window
// first.
func (r *postgresSentimentRepo) ListAggregations(ctx context.Context, typ sentiment.AggregationType, key string) ([]*sentiment.Aggregation, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT `+aggregationColumns+`
		FROM sentiment_aggregations
		WHERE agg_type = $1 AND agg_key = $2
		ORDER BY window_end - window_start`, string(typ), key)
	if err != nil {
		return nil, dbError(err, "failed to list aggregations")
	}
	defer rows.Close()

	var out []*sentiment.Aggregation
	for rows.Next() {
		agg, err := scanAggregation(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan aggregation")
		}
		out = append(out, agg)
	}
	return out, dbError(rows.Err(), "failed to iterate aggregations")
}

// UpsertAggregation replaces the current row of (type, key, window) and
// sets agg.ID to the stored row's id.
func (r *postgresSentimentRepo) UpsertAggregation(ctx context.Context, agg *sentiment.Aggregation) error {
	id := agg.ID
	if id == "" {
		id = uuid.New().String()
	}
	err := r.executor().QueryRowContext(ctx, `
		INSERT INTO sentiment_aggregations (`+aggregationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (agg_type, agg_key, window_label) DO UPDATE SET
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			mention_count = EXCLUDED.mention_count,
			weighted_score = EXCLUDED.weighted_score,
			sentiment_index = EXCLUDED.sentiment_index,
			normalized_index = EXCLUDED.normalized_index,
			distribution = EXCLUDED.distribution,
			emotion_distribution = EXCLUDED.emotion_distribution,
			severity = EXCLUDED.severity,
			computed_at = EXCLUDED.computed_at
		RETURNING id`,
		id, string(agg.Type), agg.Key, string(agg.Window), agg.WindowStart, agg.WindowEnd, agg.MentionCount,
		agg.WeightedScore, agg.Index, nullFloat(agg.NormalizedIndex),
		marshalJSON(agg.Distribution), marshalJSON(agg.EmotionDistribution),
		agg.Severity, agg.ComputedAt,
	).Scan(&agg.ID)
	return dbError(err, "failed to upsert aggregation")
}

func scanAggregation(row scanner) (*sentiment.Aggregation, error) {
	agg := &sentiment.Aggregation{}
	var (
		typ, window            string
		normalized             sql.NullFloat64
		distribution, emotions []byte
	)
	err := row.Scan(
		&agg.ID, &typ, &agg.Key, &window, &agg.WindowStart, &agg.WindowEnd, &agg.MentionCount,
		&agg.WeightedScore, &agg.Index, &normalized, &distribution, &emotions,
		&agg.Severity, &agg.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	agg.Type = sentiment.AggregationType(typ)
	agg.Window = sentiment.Window(window)
	agg.NormalizedIndex = floatPtr(normalized)
	agg.Distribution = unmarshalFloatMap(distribution)
	agg.EmotionDistribution = unmarshalFloatMap(emotions)
	return agg, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Trends
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresSentimentRepo) FindTrend(ctx context.Context, typ sentiment.AggregationType, key string, w sentiment.Window) (*sentiment.Trend, error) {
	t := &sentiment.Trend{}
	var (
		typStr, window, direction string
		previous                  sql.NullFloat64
	)
	err := r.executor().QueryRowContext(ctx, `
		SELECT agg_type, agg_key, window_label, direction, delta, magnitude,
			previous_index, previous_window_start, previous_window_end,
			current_index, current_window_start, current_window_end, computed_at
		FROM sentiment_trends
		WHERE agg_type = $1 AND agg_key = $2 AND window_label = $3`, string(typ), key, string(w),
	).Scan(&typStr, &t.Key, &window, &direction, &t.Delta, &t.Magnitude,
		&previous, &t.PreviousWindowStart, &t.PreviousWindowEnd,
		&t.CurrentIndex, &t.CurrentWindowStart, &t.CurrentWindowEnd, &t.ComputedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(errors.ErrCodeNotFound, "trend", key+"/"+string(w))
	}
	if err != nil {
		return nil, dbError(err, "failed to load trend")
	}
	t.Type = sentiment.AggregationType(typStr)
	t.Window = sentiment.Window(window)
	t.Direction = sentiment.Direction(direction)
	t.PreviousIndex = floatPtr(previous)
	return t, nil
}

func (r *postgresSentimentRepo) UpsertTrend(ctx context.Context, t *sentiment.Trend) error {
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO sentiment_trends (
			agg_type, agg_key, window_label, direction, delta, magnitude,
			previous_index, previous_window_start, previous_window_end,
			current_index, current_window_start, current_window_end, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (agg_type, agg_key, window_label) DO UPDATE SET
			direction = EXCLUDED.direction,
			delta = EXCLUDED.delta,
			magnitude = EXCLUDED.magnitude,
			previous_index = EXCLUDED.previous_index,
			previous_window_start = EXCLUDED.previous_window_start,
			previous_window_end = EXCLUDED.previous_window_end,
			current_index = EXCLUDED.current_index,
			current_window_start = EXCLUDED.current_window_start,
			current_window_end = EXCLUDED.current_window_end,
			computed_at = EXCLUDED.computed_at`,
		string(t.Type), t.Key, string(t.Window), string(t.Direction), t.Delta, t.Magnitude,
		nullFloat(t.PreviousIndex), t.PreviousWindowStart, t.PreviousWindowEnd,
		t.CurrentIndex, t.CurrentWindowStart, t.CurrentWindowEnd, t.ComputedAt)
	return dbError(err, "failed to upsert trend")
}

// ─────────────────────────────────────────────────────────────────────────────
// Baselines
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresSentimentRepo) FindBaseline(ctx context.Context, topicKey string) (*sentiment.Baseline, error) {
	b := &sentiment.Baseline{}
	err := r.executor().QueryRowContext(ctx, `
		SELECT topic_key, sentiment_index, weighted_score, sample_size, lookback_days, computed_at
		FROM topic_sentiment_baselines
		WHERE topic_key = $1`, topicKey,
	).Scan(&b.TopicKey, &b.Index, &b.WeightedScore, &b.SampleSize, &b.LookbackDays, &b.ComputedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(errors.ErrCodeBaselineNotFound, "baseline", topicKey)
	}
	if err != nil {
		return nil, dbError(err, "failed to load baseline")
	}
	return b, nil
}

func (r *postgresSentimentRepo) UpsertBaseline(ctx context.Context, b *sentiment.Baseline) error {
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO topic_sentiment_baselines (topic_key, sentiment_index, weighted_score, sample_size, lookback_days, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (topic_key) DO UPDATE SET
			sentiment_index = EXCLUDED.sentiment_index,
			weighted_score = EXCLUDED.weighted_score,
			sample_size = EXCLUDED.sample_size,
			lookback_days = EXCLUDED.lookback_days,
			computed_at = EXCLUDED.computed_at`,
		b.TopicKey, b.Index, b.WeightedScore, b.SampleSize, b.LookbackDays, b.ComputedAt)
	return dbError(err, "failed to upsert baseline")
}
