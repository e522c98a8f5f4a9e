package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

type postgresIssueRepo struct {
	baseRepo
}

const issueColumns = `
	id, slug, label, topic_key, state, state_reason, start_time, last_activity, mention_count,
	centroid, similarity_threshold, volume_current, volume_previous, velocity_percent, velocity_score,
	priority_score, priority_band, sentiment, top_keywords, top_sources, regions,
	is_active, is_archived, resolved_at, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Issues
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresIssueRepo) Create(ctx context.Context, iss *issue.Issue) error {
	query := `INSERT INTO issues (` + issueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

	_, err := r.executor().ExecContext(ctx, query,
		iss.ID, iss.Slug, iss.Label, iss.TopicKey, string(iss.State), iss.StateReason,
		iss.StartTime, iss.LastActivity, iss.MentionCount,
		float64Array(iss.Centroid), iss.SimilarityThreshold,
		iss.VolumeCurrent, iss.VolumePrevious, iss.VelocityPercent, iss.VelocityScore,
		iss.PriorityScore, string(iss.PriorityBand), marshalJSON(iss.Sentiment),
		stringArray(iss.TopKeywords), stringArray(iss.TopSources), stringArray(iss.Regions),
		iss.IsActive, iss.IsArchived, iss.ResolvedAt, iss.CreatedAt, iss.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("issue already exists").WithDetail(iss.ID).WithCause(err)
		}
		return dbError(err, "failed to create issue")
	}
	return nil
}

func (r *postgresIssueRepo) Update(ctx context.Context, iss *issue.Issue) error {
	query := `
		UPDATE issues SET
			slug = $2, label = $3, state = $4, state_reason = $5, start_time = $6, last_activity = $7,
			mention_count = $8, centroid = $9, similarity_threshold = $10,
			volume_current = $11, volume_previous = $12, velocity_percent = $13, velocity_score = $14,
			priority_score = $15, priority_band = $16, sentiment = $17,
			top_keywords = $18, top_sources = $19, regions = $20,
			is_active = $21, is_archived = $22, resolved_at = $23, updated_at = $24
		WHERE id = $1`

	res, err := r.executor().ExecContext(ctx, query,
		iss.ID, iss.Slug, iss.Label, string(iss.State), iss.StateReason, iss.StartTime, iss.LastActivity,
		iss.MentionCount, float64Array(iss.Centroid), iss.SimilarityThreshold,
		iss.VolumeCurrent, iss.VolumePrevious, iss.VelocityPercent, iss.VelocityScore,
		iss.PriorityScore, string(iss.PriorityBand), marshalJSON(iss.Sentiment),
		stringArray(iss.TopKeywords), stringArray(iss.TopSources), stringArray(iss.Regions),
		iss.IsActive, iss.IsArchived, iss.ResolvedAt, iss.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "failed to update issue")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "failed to read affected rows")
	}
	if n == 0 {
		return notFound(errors.ErrCodeIssueNotFound, "issue", iss.ID)
	}
	return nil
}

func (r *postgresIssueRepo) FindByID(ctx context.Context, id string) (*issue.Issue, error) {
	row := r.executor().QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	iss, err := scanIssue(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(errors.ErrCodeIssueNotFound, "issue", id)
	}
	if err != nil {
		return nil, dbError(err, "failed to load issue")
	}
	return iss, nil
}

func (r *postgresIssueRepo) ListCandidates(ctx context.Context, topicKey string, resolvedSince *time.Time) ([]*issue.Issue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM issues
		WHERE topic_key = $1
		  AND NOT is_archived
		  AND (is_active OR ($2::timestamptz IS NOT NULL AND resolved_at >= $2::timestamptz))
		ORDER BY created_at, id`
	return r.queryIssues(ctx, query, topicKey, resolvedSince)
}

func (r *postgresIssueRepo) List(ctx context.Context, opts ...issue.ListOption) ([]*issue.Issue, int64, error) {
	o := issue.ApplyListOptions(opts...)

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if o.TopicKey != "" {
		conds = append(conds, "topic_key = "+arg(o.TopicKey))
	}
	if len(o.States) > 0 {
		states := make([]string, len(o.States))
		for i, s := range o.States {
			states[i] = string(s)
		}
		conds = append(conds, "state = ANY("+arg(pq.Array(states))+")")
	}
	if !o.IncludeArchived {
		conds = append(conds, "NOT is_archived")
	}
	if o.MinPriority > 0 {
		conds = append(conds, "priority_score >= "+arg(o.MinPriority))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM issues`+where, args...).Scan(&total); err != nil {
		return nil, 0, dbError(err, "failed to count issues")
	}

	query := `SELECT ` + issueColumns + ` FROM issues` + where +
		` ORDER BY priority_score DESC, id LIMIT ` + arg(o.Limit) + ` OFFSET ` + arg(o.Offset)
	issues, err := r.queryIssues(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

func (r *postgresIssueRepo) queryIssues(ctx context.Context, query string, args ...interface{}) ([]*issue.Issue, error) {
	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "failed to query issues")
	}
	defer rows.Close()

	var out []*issue.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan issue")
		}
		out = append(out, iss)
	}
	return out, dbError(rows.Err(), "failed to iterate issues")
}

// scanIssue returns sql.ErrNoRows unwrapped so FindByID can map it.
func scanIssue(row scanner) (*issue.Issue, error) {
	iss := &issue.Issue{}
	var (
		state, band                string
		centroid                   pq.Float64Array
		sentimentRaw               []byte
		keywords, sources, regions pq.StringArray
	)
	err := row.Scan(
		&iss.ID, &iss.Slug, &iss.Label, &iss.TopicKey, &state, &iss.StateReason,
		&iss.StartTime, &iss.LastActivity, &iss.MentionCount,
		&centroid, &iss.SimilarityThreshold,
		&iss.VolumeCurrent, &iss.VolumePrevious, &iss.VelocityPercent, &iss.VelocityScore,
		&iss.PriorityScore, &band, &sentimentRaw,
		&keywords, &sources, &regions,
		&iss.IsActive, &iss.IsArchived, &iss.ResolvedAt, &iss.CreatedAt, &iss.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	iss.State = issue.State(state)
	iss.PriorityBand = issue.Band(band)
	if centroid != nil {
		iss.Centroid = []float64(centroid)
	}
	if len(sentimentRaw) > 0 {
		_ = json.Unmarshal(sentimentRaw, &iss.Sentiment)
	}
	iss.TopKeywords = []string(keywords)
	iss.TopSources = []string(sources)
	iss.Regions = []string(regions)
	return iss, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Links
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresIssueRepo) LinkMentions(ctx context.Context, links []issue.Link) (int, error) {
	const query = `
		INSERT INTO issue_mentions (issue_id, mention_id, topic_key, similarity, linked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mention_id, topic_key) DO NOTHING`

	inserted := 0
	for _, l := range links {
		res, err := r.executor().ExecContext(ctx, query, l.IssueID, l.MentionID, l.TopicKey, l.Similarity, l.LinkedAt)
		if err != nil {
			return inserted, dbError(err, "failed to link mention")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, dbError(err, "failed to read affected rows")
		}
		inserted += int(n)
	}
	return inserted, nil
}

func (r *postgresIssueRepo) CountLinks(ctx context.Context, issueID string) (int, error) {
	var n int
	err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM issue_mentions WHERE issue_id = $1`, issueID).Scan(&n)
	if err != nil {
		return 0, dbError(err, "failed to count issue links")
	}
	return n, nil
}

func (r *postgresIssueRepo) UpsertTopicLink(ctx context.Context, link issue.TopicLink) error {
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO topic_issues (topic_key, issue_id, mention_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (topic_key, issue_id) DO UPDATE SET
			mention_count = EXCLUDED.mention_count,
			updated_at = EXCLUDED.updated_at`,
		link.TopicKey, link.IssueID, link.MentionCount, link.UpdatedAt)
	return dbError(err, "failed to upsert topic link")
}

// ─────────────────────────────────────────────────────────────────────────────
// Transitions
// ─────────────────────────────────────────────────────────────────────────────

func (r *postgresIssueRepo) RecordTransition(ctx context.Context, tr *issue.StateTransition) error {
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO issue_state_transitions (id, issue_id, from_state, to_state, reason, previous_resolved_at, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tr.ID, tr.IssueID, string(tr.From), string(tr.To), tr.Reason, tr.PreviousResolvedAt, tr.OccurredAt)
	return dbError(err, "failed to record state transition")
}

func (r *postgresIssueRepo) ListTransitions(ctx context.Context, issueID string) ([]*issue.StateTransition, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT id, issue_id, from_state, to_state, reason, previous_resolved_at, occurred_at
		FROM issue_state_transitions
		WHERE issue_id = $1
		ORDER BY occurred_at, id`, issueID)
	if err != nil {
		return nil, dbError(err, "failed to list state transitions")
	}
	defer rows.Close()

	var out []*issue.StateTransition
	for rows.Next() {
		tr := &issue.StateTransition{}
		var from, to string
		if err := rows.Scan(&tr.ID, &tr.IssueID, &from, &to, &tr.Reason, &tr.PreviousResolvedAt, &tr.OccurredAt); err != nil {
			return nil, dbError(err, "failed to scan state transition")
		}
		tr.From, tr.To = issue.State(from), issue.State(to)
		out = append(out, tr)
	}
	return out, dbError(rows.Err(), "failed to iterate state transitions")
}
