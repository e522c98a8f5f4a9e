package repositories

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
)

type postgresMentionRepo struct {
	baseRepo
}

// mentionColumns is selected from mentions m joined with mention_topics mt.
const mentionColumns = `
	m.id, m.text, m.sentiment_label, m.sentiment_score, m.emotion_label, m.emotion_distribution,
	m.influence_weight, m.confidence_weight, mt.topic_key, mt.confidence, m.source, m.region, m.published_at`

func (r *postgresMentionRepo) ListTopicKeys(ctx context.Context) ([]string, error) {
	rows, err := r.executor().QueryContext(ctx, `SELECT DISTINCT topic_key FROM mention_topics ORDER BY topic_key`)
	if err != nil {
		return nil, dbError(err, "failed to list topic keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, dbError(err, "failed to scan topic key")
		}
		keys = append(keys, k)
	}
	return keys, dbError(rows.Err(), "failed to iterate topic keys")
}

func (r *postgresMentionRepo) ListUnlinked(ctx context.Context, topicKey string, limit int) ([]*mention.Mention, error) {
	query := `
		SELECT ` + mentionColumns + `
		FROM mentions m
		JOIN mention_topics mt ON mt.mention_id = m.id
		WHERE mt.topic_key = $1
		  AND NOT EXISTS (
			SELECT 1 FROM issue_mentions im
			WHERE im.mention_id = m.id AND im.topic_key = mt.topic_key
		  )
		ORDER BY m.published_at, m.id`
	args := []interface{}{topicKey}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryMentions(ctx, query, args...)
}

func (r *postgresMentionRepo) LoadEmbeddings(ctx context.Context, ms []*mention.Mention) error {
	byID := make(map[string][]*mention.Mention)
	var ids []string
	for _, m := range ms {
		if m.Embedding != nil {
			continue
		}
		if _, seen := byID[m.ID]; !seen {
			ids = append(ids, m.ID)
		}
		byID[m.ID] = append(byID[m.ID], m)
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.executor().QueryContext(ctx, `
		SELECT mention_id, embedding
		FROM mention_analyses
		WHERE mention_id = ANY($1) AND embedding IS NOT NULL`, pq.Array(ids))
	if err != nil {
		return dbError(err, "failed to load embeddings")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			emb pq.Float64Array
		)
		if err := rows.Scan(&id, &emb); err != nil {
			return dbError(err, "failed to scan embedding")
		}
		for _, m := range byID[id] {
			m.Embedding = append([]float64(nil), emb...)
		}
	}
	return dbError(rows.Err(), "failed to iterate embeddings")
}

func (r *postgresMentionRepo) ListByIssue(ctx context.Context, issueID string) ([]*mention.Mention, error) {
	return r.queryMentions(ctx, `
		SELECT `+mentionColumns+`
		FROM issue_mentions im
		JOIN mentions m ON m.id = im.mention_id
		JOIN mention_topics mt ON mt.mention_id = im.mention_id AND mt.topic_key = im.topic_key
		WHERE im.issue_id = $1
		ORDER BY m.published_at, m.id`, issueID)
}

func (r *postgresMentionRepo) EmbeddingsByIssue(ctx context.Context, issueID string, limit int) ([]mention.LinkedEmbedding, error) {
	var max interface{}
	if limit > 0 {
		max = limit
	}
	rows, err := r.executor().QueryContext(ctx, `
		SELECT im.mention_id, a.embedding, im.similarity
		FROM issue_mentions im
		JOIN mention_analyses a ON a.mention_id = im.mention_id
		WHERE im.issue_id = $1 AND a.embedding IS NOT NULL
		ORDER BY im.linked_at DESC, im.mention_id
		LIMIT $2`, issueID, max)
	if err != nil {
		return nil, dbError(err, "failed to load issue embeddings")
	}
	defer rows.Close()

	var out []mention.LinkedEmbedding
	for rows.Next() {
		var (
			l   mention.LinkedEmbedding
			emb pq.Float64Array
		)
		if err := rows.Scan(&l.MentionID, &emb, &l.Similarity); err != nil {
			return nil, dbError(err, "failed to scan embedding")
		}
		l.Embedding = []float64(emb)
		out = append(out, l)
	}
	return out, dbError(rows.Err(), "failed to iterate issue embeddings")
}

func (r *postgresMentionRepo) ListScoredByTopic(ctx context.Context, topicKey string, w mention.Window) ([]*mention.Mention, error) {
	return r.queryMentions(ctx, `
		SELECT `+mentionColumns+`
		FROM mentions m
		JOIN mention_topics mt ON mt.mention_id = m.id
		WHERE mt.topic_key = $1
		  AND m.published_at >= $2 AND m.published_at < $3
		  AND m.sentiment_score IS NOT NULL AND m.influence_weight IS NOT NULL
		ORDER BY m.published_at, m.id`, topicKey, w.Since, w.Until)
}

func (r *postgresMentionRepo) ListScoredByIssue(ctx context.Context, issueID string, w mention.Window) ([]*mention.Mention, error) {
	return r.queryMentions(ctx, `
		SELECT `+mentionColumns+`
		FROM issue_mentions im
		JOIN mentions m ON m.id = im.mention_id
		JOIN mention_topics mt ON mt.mention_id = im.mention_id AND mt.topic_key = im.topic_key
		WHERE im.issue_id = $1
		  AND m.published_at >= $2 AND m.published_at < $3
		  AND m.sentiment_score IS NOT NULL AND m.influence_weight IS NOT NULL
		ORDER BY m.published_at, m.id`, issueID, w.Since, w.Until)
}

func (r *postgresMentionRepo) queryMentions(ctx context.Context, query string, args ...interface{}) ([]*mention.Mention, error) {
	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "failed to query mentions")
	}
	defer rows.Close()

	var out []*mention.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, dbError(rows.Err(), "failed to iterate mentions")
}

func scanMention(row scanner) (*mention.Mention, error) {
	m := &mention.Mention{}
	var (
		label              string
		score, infl, confW sql.NullFloat64
		emotions           []byte
	)
	dest := []interface{}{
		&m.ID, &m.Text, &label, &score, &m.EmotionLabel, &emotions,
		&infl, &confW, &m.TopicKey, &m.TopicConfidence, &m.Source, &m.Region, &m.PublishedAt,
	}
	if err := row.Scan(dest...); err != nil {
		return nil, dbError(err, "failed to scan mention")
	}

	m.SentimentLabel = mention.SentimentLabel(label)
	m.SentimentScore = floatPtr(score)
	m.InfluenceWeight = floatPtr(infl)
	m.ConfidenceWeight = floatPtr(confW)
	m.EmotionDistribution = unmarshalFloatMap(emotions)
	return m, nil
}
