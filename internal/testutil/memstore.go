package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// MemStore is an in-memory scope.Transactor. Transactions are serialized and
// a failed transaction restores the state it started from. Values cross the
// repository boundary as copies, as they would through SQL.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memData

	// Fail maps an operation name such as "issues.Update" to the error it
	// returns.
	Fail map[string]error
}

type aggKey struct {
	typ sentiment.AggregationType
	key string
	w   sentiment.Window
}

type memData struct {
	mentions    map[string]*mention.Mention
	issues      map[string]*issue.Issue
	links       []issue.Link
	topicLinks  map[string]issue.TopicLink
	transitions []*issue.StateTransition
	aggs        map[aggKey]*sentiment.Aggregation
	trends      map[aggKey]*sentiment.Trend
	baselines   map[string]*sentiment.Baseline
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: memData{
			mentions:   map[string]*mention.Mention{},
			issues:     map[string]*issue.Issue{},
			topicLinks: map[string]issue.TopicLink{},
			aggs:       map[aggKey]*sentiment.Aggregation{},
			trends:     map[aggKey]*sentiment.Trend{},
			baselines:  map[string]*sentiment.Baseline{},
		},
		Fail: map[string]error{},
	}
}

// WithinTx implements scope.Transactor.
func (s *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context, sc scope.Scope) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemStore) Mentions() mention.Repository    { return memMentions{s} }
func (s *MemStore) Issues() issue.Repository        { return memIssues{s} }
func (s *MemStore) Sentiment() sentiment.Repository { return memSentiment{s} }

func (s *MemStore) fail(op string) error {
	return s.Fail[op]
}

// AddMentions seeds mentions, embeddings included.
func (s *MemStore) AddMentions(ms ...*mention.Mention) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		s.data.mentions[m.ID] = cloneMention(m, true)
	}
}

// SeedIssue stores an issue directly.
func (s *MemStore) SeedIssue(iss *issue.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.issues[iss.ID] = cloneIssue(iss)
}

// SeedLinks stores links directly.
func (s *MemStore) SeedLinks(links ...issue.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.links = append(s.data.links, links...)
}

// AllIssues returns every stored issue ordered by creation time.
func (s *MemStore) AllIssues() []*issue.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*issue.Issue, 0, len(s.data.issues))
	for _, iss := range s.data.issues {
		out = append(out, cloneIssue(iss))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Links returns a copy of every link.
func (s *MemStore) Links() []issue.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]issue.Link(nil), s.data.links...)
}

// TopicLink returns the rollup for (topic, issue).
func (s *MemStore) TopicLink(topicKey, issueID string) (issue.TopicLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tl, ok := s.data.topicLinks[topicKey+"|"+issueID]
	return tl, ok
}

// Transitions returns every recorded transition.
func (s *MemStore) Transitions() []*issue.StateTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*issue.StateTransition(nil), s.data.transitions...)
}

// AggregationCount returns the number of stored aggregation rows.
func (s *MemStore) AggregationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.aggs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Mentions
// ─────────────────────────────────────────────────────────────────────────────

type memMentions struct{ s *MemStore }

func (r memMentions) ListTopicKeys(ctx context.Context) ([]string, error) {
	if err := r.s.fail("mentions.ListTopicKeys"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	var keys []string
	for _, m := range r.s.data.mentions {
		if m.TopicKey != "" && !seen[m.TopicKey] {
			seen[m.TopicKey] = true
			keys = append(keys, m.TopicKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (r memMentions) ListUnlinked(ctx context.Context, topicKey string, limit int) ([]*mention.Mention, error) {
	if err := r.s.fail("mentions.ListUnlinked"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	linked := map[string]bool{}
	for _, l := range r.s.data.links {
		if l.TopicKey == topicKey {
			linked[l.MentionID] = true
		}
	}
	var out []*mention.Mention
	for _, m := range r.s.data.mentions {
		if m.TopicKey == topicKey && !linked[m.ID] {
			out = append(out, cloneMention(m, false))
		}
	}
	sortMentions(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memMentions) LoadEmbeddings(ctx context.Context, ms []*mention.Mention) error {
	if err := r.s.fail("mentions.LoadEmbeddings"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range ms {
		if len(m.Embedding) > 0 {
			continue
		}
		if stored, ok := r.s.data.mentions[m.ID]; ok && len(stored.Embedding) > 0 {
			m.Embedding = append([]float64(nil), stored.Embedding...)
		}
	}
	return nil
}

func (r memMentions) linkedTo(issueID string) []issue.Link {
	var out []issue.Link
	for _, l := range r.s.data.links {
		if l.IssueID == issueID {
			out = append(out, l)
		}
	}
	return out
}

func (r memMentions) ListByIssue(ctx context.Context, issueID string) ([]*mention.Mention, error) {
	if err := r.s.fail("mentions.ListByIssue"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*mention.Mention
	for _, l := range r.linkedTo(issueID) {
		if m, ok := r.s.data.mentions[l.MentionID]; ok {
			out = append(out, cloneMention(m, false))
		}
	}
	sortMentions(out)
	return out, nil
}

func (r memMentions) EmbeddingsByIssue(ctx context.Context, issueID string, limit int) ([]mention.LinkedEmbedding, error) {
	if err := r.s.fail("mentions.EmbeddingsByIssue"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	links := r.linkedTo(issueID)
	sort.SliceStable(links, func(i, j int) bool {
		if !links[i].LinkedAt.Equal(links[j].LinkedAt) {
			return links[i].LinkedAt.After(links[j].LinkedAt)
		}
		return links[i].MentionID < links[j].MentionID
	})
	var out []mention.LinkedEmbedding
	for _, l := range links {
		if limit > 0 && len(out) == limit {
			break
		}
		if m, ok := r.s.data.mentions[l.MentionID]; ok && len(m.Embedding) > 0 {
			out = append(out, mention.LinkedEmbedding{
				MentionID:  l.MentionID,
				Embedding:  append([]float64(nil), m.Embedding...),
				Similarity: l.Similarity,
			})
		}
	}
	return out, nil
}

func (r memMentions) ListScoredByTopic(ctx context.Context, topicKey string, w mention.Window) ([]*mention.Mention, error) {
	if err := r.s.fail("mentions.ListScoredByTopic"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*mention.Mention
	for _, m := range r.s.data.mentions {
		if m.TopicKey == topicKey && m.Scored() && inWindow(m.PublishedAt, w) {
			out = append(out, cloneMention(m, false))
		}
	}
	sortMentions(out)
	return out, nil
}

func (r memMentions) ListScoredByIssue(ctx context.Context, issueID string, w mention.Window) ([]*mention.Mention, error) {
	if err := r.s.fail("mentions.ListScoredByIssue"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*mention.Mention
	for _, l := range r.linkedTo(issueID) {
		if m, ok := r.s.data.mentions[l.MentionID]; ok && m.Scored() && inWindow(m.PublishedAt, w) {
			out = append(out, cloneMention(m, false))
		}
	}
	sortMentions(out)
	return out, nil
}

func inWindow(t time.Time, w mention.Window) bool {
	return !t.Before(w.Since) && t.Before(w.Until)
}

// ─────────────────────────────────────────────────────────────────────────────
// Issues
// ─────────────────────────────────────────────────────────────────────────────

type memIssues struct{ s *MemStore }

func (r memIssues) Create(ctx context.Context, iss *issue.Issue) error {
	if err := r.s.fail("issues.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.issues[iss.ID]; ok {
		return errors.Conflict(fmt.Sprintf("issue %s already exists", iss.ID))
	}
	r.s.data.issues[iss.ID] = cloneIssue(iss)
	return nil
}

func (r memIssues) Update(ctx context.Context, iss *issue.Issue) error {
	if err := r.s.fail("issues.Update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.issues[iss.ID]; !ok {
		return errors.New(errors.ErrCodeIssueNotFound, "issue not found").WithDetail(iss.ID)
	}
	r.s.data.issues[iss.ID] = cloneIssue(iss)
	return nil
}

func (r memIssues) FindByID(ctx context.Context, id string) (*issue.Issue, error) {
	if err := r.s.fail("issues.FindByID"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	iss, ok := r.s.data.issues[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeIssueNotFound, "issue not found").WithDetail(id)
	}
	return cloneIssue(iss), nil
}

func (r memIssues) ListCandidates(ctx context.Context, topicKey string, resolvedSince *time.Time) ([]*issue.Issue, error) {
	if err := r.s.fail("issues.ListCandidates"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*issue.Issue
	for _, iss := range r.s.data.issues {
		if iss.TopicKey != topicKey || iss.IsArchived {
			continue
		}
		recentlyResolved := resolvedSince != nil && iss.ResolvedAt != nil && !iss.ResolvedAt.Before(*resolvedSince)
		if iss.IsActive || recentlyResolved {
			out = append(out, cloneIssue(iss))
		}
	}
	sortIssues(out)
	return out, nil
}

func (r memIssues) List(ctx context.Context, opts ...issue.ListOption) ([]*issue.Issue, int64, error) {
	if err := r.s.fail("issues.List"); err != nil {
		return nil, 0, err
	}
	o := issue.ApplyListOptions(opts...)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	states := map[issue.State]bool{}
	for _, st := range o.States {
		states[st] = true
	}
	var all []*issue.Issue
	for _, iss := range r.s.data.issues {
		switch {
		case o.TopicKey != "" && iss.TopicKey != o.TopicKey:
		case len(states) > 0 && !states[iss.State]:
		case !o.IncludeArchived && iss.IsArchived:
		case iss.PriorityScore < o.MinPriority:
		default:
			all = append(all, cloneIssue(iss))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].PriorityScore != all[j].PriorityScore {
			return all[i].PriorityScore > all[j].PriorityScore
		}
		return all[i].ID < all[j].ID
	})
	total := int64(len(all))
	if o.Offset >= len(all) {
		return nil, total, nil
	}
	end := o.Offset + o.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[o.Offset:end], total, nil
}

func (r memIssues) LinkMentions(ctx context.Context, links []issue.Link) (int, error) {
	if err := r.s.fail("issues.LinkMentions"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing := map[string]bool{}
	for _, l := range r.s.data.links {
		existing[l.TopicKey+"|"+l.MentionID] = true
	}
	inserted := 0
	for _, l := range links {
		k := l.TopicKey + "|" + l.MentionID
		if existing[k] {
			continue
		}
		existing[k] = true
		r.s.data.links = append(r.s.data.links, l)
		inserted++
	}
	return inserted, nil
}

func (r memIssues) CountLinks(ctx context.Context, issueID string) (int, error) {
	if err := r.s.fail("issues.CountLinks"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, l := range r.s.data.links {
		if l.IssueID == issueID {
			n++
		}
	}
	return n, nil
}

func (r memIssues) UpsertTopicLink(ctx context.Context, link issue.TopicLink) error {
	if err := r.s.fail("issues.UpsertTopicLink"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.topicLinks[link.TopicKey+"|"+link.IssueID] = link
	return nil
}

func (r memIssues) RecordTransition(ctx context.Context, tr *issue.StateTransition) error {
	if err := r.s.fail("issues.RecordTransition"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	c := *tr
	r.s.data.transitions = append(r.s.data.transitions, &c)
	return nil
}

func (r memIssues) ListTransitions(ctx context.Context, issueID string) ([]*issue.StateTransition, error) {
	if err := r.s.fail("issues.ListTransitions"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*issue.StateTransition
	for _, tr := range r.s.data.transitions {
		if tr.IssueID == issueID {
			c := *tr
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sentiment
// ─────────────────────────────────────────────────────────────────────────────

type memSentiment struct{ s *MemStore }

func (r memSentiment) FindAggregation(ctx context.Context, typ sentiment.AggregationType, key string, w sentiment.Window) (*sentiment.Aggregation, error) {
	if err := r.s.fail("sentiment.FindAggregation"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.data.aggs[aggKey{typ, key, w}]
	if !ok {
		return nil, errors.New(errors.ErrCodeAggregationNotFound, "aggregation not found")
	}
	c := *a
	return &c, nil
}

func (r memSentiment) ListAggregations(ctx context.Context, typ sentiment.AggregationType, key string) ([]*sentiment.Aggregation, error) {
	if err := r.s.fail("sentiment.ListAggregations"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*sentiment.Aggregation
	for _, w := range sentiment.AllWindows {
		if a, ok := r.s.data.aggs[aggKey{typ, key, w}]; ok {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memSentiment) UpsertAggregation(ctx context.Context, agg *sentiment.Aggregation) error {
	if err := r.s.fail("sentiment.UpsertAggregation"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := aggKey{agg.Type, agg.Key, agg.Window}
	if prev, ok := r.s.data.aggs[k]; ok {
		agg.ID = prev.ID
	} else if agg.ID == "" {
		agg.ID = uuid.New().String()
	}
	c := *agg
	r.s.data.aggs[k] = &c
	return nil
}

func (r memSentiment) FindTrend(ctx context.Context, typ sentiment.AggregationType, key string, w sentiment.Window) (*sentiment.Trend, error) {
	if err := r.s.fail("sentiment.FindTrend"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.trends[aggKey{typ, key, w}]
	if !ok {
		return nil, errors.NotFound("trend not found")
	}
	return cloneTrend(t), nil
}

func (r memSentiment) UpsertTrend(ctx context.Context, t *sentiment.Trend) error {
	if err := r.s.fail("sentiment.UpsertTrend"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.trends[aggKey{t.Type, t.Key, t.Window}] = cloneTrend(t)
	return nil
}

func cloneTrend(t *sentiment.Trend) *sentiment.Trend {
	c := *t
	if t.PreviousIndex != nil {
		v := *t.PreviousIndex
		c.PreviousIndex = &v
	}
	if t.PreviousWindowStart != nil {
		v := *t.PreviousWindowStart
		c.PreviousWindowStart = &v
	}
	if t.PreviousWindowEnd != nil {
		v := *t.PreviousWindowEnd
		c.PreviousWindowEnd = &v
	}
	return &c
}

func (r memSentiment) FindBaseline(ctx context.Context, topicKey string) (*sentiment.Baseline, error) {
	if err := r.s.fail("sentiment.FindBaseline"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.data.baselines[topicKey]
	if !ok {
		return nil, errors.New(errors.ErrCodeBaselineNotFound, "baseline not found").WithDetail(topicKey)
	}
	c := *b
	return &c, nil
}

func (r memSentiment) UpsertBaseline(ctx context.Context, b *sentiment.Baseline) error {
	if err := r.s.fail("sentiment.UpsertBaseline"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *b
	r.s.data.baselines[b.TopicKey] = &c
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Copies
// ─────────────────────────────────────────────────────────────────────────────

func (d memData) clone() memData {
	out := memData{
		mentions:    make(map[string]*mention.Mention, len(d.mentions)),
		issues:      make(map[string]*issue.Issue, len(d.issues)),
		links:       append([]issue.Link(nil), d.links...),
		topicLinks:  make(map[string]issue.TopicLink, len(d.topicLinks)),
		transitions: append([]*issue.StateTransition(nil), d.transitions...),
		aggs:        make(map[aggKey]*sentiment.Aggregation, len(d.aggs)),
		trends:      make(map[aggKey]*sentiment.Trend, len(d.trends)),
		baselines:   make(map[string]*sentiment.Baseline, len(d.baselines)),
	}
	for k, v := range d.mentions {
		out.mentions[k] = v
	}
	for k, v := range d.issues {
		out.issues[k] = cloneIssue(v)
	}
	for k, v := range d.topicLinks {
		out.topicLinks[k] = v
	}
	for k, v := range d.aggs {
		out.aggs[k] = v
	}
	for k, v := range d.trends {
		out.trends[k] = v
	}
	for k, v := range d.baselines {
		out.baselines[k] = v
	}
	return out
}

func cloneMention(m *mention.Mention, withEmbedding bool) *mention.Mention {
	c := *m
	c.Embedding = nil
	if withEmbedding && len(m.Embedding) > 0 {
		c.Embedding = append([]float64(nil), m.Embedding...)
	}
	return &c
}

func cloneIssue(iss *issue.Issue) *issue.Issue {
	c := *iss
	if iss.Centroid != nil {
		c.Centroid = append([]float64(nil), iss.Centroid...)
	}
	c.TopKeywords = append([]string(nil), iss.TopKeywords...)
	c.TopSources = append([]string(nil), iss.TopSources...)
	c.Regions = append([]string(nil), iss.Regions...)
	c.Sentiment.Distribution = cloneMap(iss.Sentiment.Distribution)
	c.Sentiment.EmotionDistribution = cloneMap(iss.Sentiment.EmotionDistribution)
	if iss.ResolvedAt != nil {
		t := *iss.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortMentions(ms []*mention.Mention) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].PublishedAt.Equal(ms[j].PublishedAt) {
			return ms[i].PublishedAt.Before(ms[j].PublishedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

func sortIssues(is []*issue.Issue) {
	sort.Slice(is, func(i, j int) bool {
		if !is[i].CreatedAt.Equal(is[j].CreatedAt) {
			return is[i].CreatedAt.Before(is[j].CreatedAt)
		}
		return is[i].ID < is[j].ID
	})
}
