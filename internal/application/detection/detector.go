// Package detection turns a topic's unlinked mentions into issues. One call
// of DetectTopic processes one topic end to end inside the scope it is given:
// clustering, matching or creating issues, linking mentions and refreshing
// every candidate issue's derived metrics.
package detection

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/application/aggregation"
	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/clustering"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/domain/similarity"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Result summarizes one detection run.
type Result struct {
	TopicKey    string           `json:"topic_key"`
	Stats       clustering.Stats `json:"stats"`
	Clusters    int              `json:"clusters"`
	Matched     int              `json:"matched"`
	Created     int              `json:"created"`
	Skipped     int              `json:"skipped"`
	Linked      int              `json:"linked"`
	Refreshed   int              `json:"refreshed"`
	Transitions int              `json:"transitions"`
	// Events are produced inside the transaction; the caller publishes them
	// once it has committed.
	Events   []issue.Event `json:"events,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Detector runs issue detection for one topic at a time. It holds no
// per-topic state and is safe for concurrent use on different topics.
type Detector struct {
	cfg        Config
	engine     *clustering.Engine
	states     *issue.StateMachine
	priority   *issue.PriorityCalculator
	metadata   *issue.MetadataExtractor
	aggregator *aggregation.Service
	engineOpts []clustering.Option
	now        func() time.Time
	log        logging.Logger
}

// Option customises a Detector.
type Option func(*Detector)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithAggregator refreshes issue aggregations during detection.
func WithAggregator(a *aggregation.Service) Option {
	return func(d *Detector) { d.aggregator = a }
}

// WithEngineOptions passes options to the clustering engine.
func WithEngineOptions(opts ...clustering.Option) Option {
	return func(d *Detector) { d.engineOpts = append(d.engineOpts, opts...) }
}

// NewDetector wires a Detector from cfg.
func NewDetector(cfg Config, log logging.Logger, opts ...Option) *Detector {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("detection")
	d := &Detector{
		cfg:      cfg,
		states:   issue.NewStateMachine(cfg.Lifecycle),
		priority: issue.NewPriorityCalculator(cfg.Weights, log),
		metadata: issue.NewMetadataExtractor(cfg.Metadata),
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.engine = clustering.NewEngine(cfg.Clustering, log.Named("clustering"), d.engineOpts...)
	return d
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// candidate is an issue that clusters may be matched against during a run.
type candidate struct {
	iss *issue.Issue
	// centroid is used for matching. It is the cached centroid when one was
	// stored, otherwise one computed from sampled linked mentions, and nil
	// when neither is available.
	centroid []float64
	// cached reports whether the issue had a stored centroid; only then is
	// the merged centroid written back.
	cached bool
	isNew  bool
}

// DetectTopic runs one detection pass over topicKey. Store failures are
// returned unchanged so the caller can roll the scope back; computation
// failures degrade to fallbacks and are logged.
func (d *Detector) DetectTopic(ctx context.Context, sc scope.Scope, topicKey string) (*Result, error) {
	if strings.TrimSpace(topicKey) == "" {
		return nil, errors.New(errors.ErrCodeTopicRequired, "topic key cannot be empty")
	}
	started := time.Now()
	now := d.now()
	log := d.log.With(logging.String("topic", topicKey))

	clusters, stats, err := d.cluster(ctx, sc, topicKey, d.cfg.MergePass)
	if err != nil {
		return nil, err
	}
	res := &Result{TopicKey: topicKey, Stats: stats, Clusters: len(clusters)}
	if stats.Dropped() > 0 {
		log.Warn("mentions dropped before clustering",
			logging.Int("missing_embedding", stats.MissingEmbedding),
			logging.Int("invalid_embedding", stats.InvalidEmbedding),
			logging.Int("missing_timestamp", stats.MissingTimestamp),
		)
	}

	cands, err := d.loadCandidates(ctx, sc, topicKey, now)
	if err != nil {
		return nil, err
	}

	for _, c := range clusters {
		if best, sim := d.bestMatch(c, cands); best != nil {
			n, err := d.link(ctx, sc, best, c, now)
			if err != nil {
				return nil, err
			}
			res.Matched++
			res.Linked += n
			log.Debug("cluster matched issue",
				logging.String("issue_id", best.iss.ID),
				logging.Float64("similarity", sim),
				logging.Int("linked", n),
			)
			continue
		}

		if span := c.Span(); span > d.cfg.maxSpan() {
			res.Skipped++
			log.Info("cluster skipped: span too wide",
				logging.Int("size", c.Size()),
				logging.Duration("span", span),
				logging.Duration("max_span", d.cfg.maxSpan()),
			)
			continue
		}

		cand, n, err := d.create(ctx, sc, topicKey, c, now)
		if err != nil {
			return nil, err
		}
		cands = append(cands, cand)
		res.Created++
		res.Linked += n
	}

	for _, cand := range cands {
		events, tr, err := d.refresh(ctx, sc, cand, now)
		if err != nil {
			return nil, err
		}
		res.Refreshed++
		if tr != nil {
			res.Transitions++
		}
		res.Events = append(res.Events, events...)
	}

	res.Duration = time.Since(started)
	log.Info("detection finished",
		logging.Int("mentions", stats.Input),
		logging.Int("clusters", res.Clusters),
		logging.Int("matched", res.Matched),
		logging.Int("created", res.Created),
		logging.Int("skipped", res.Skipped),
		logging.Int("linked", res.Linked),
		logging.Int("refreshed", res.Refreshed),
		logging.Duration("duration", res.Duration),
	)
	return res, nil
}

// cluster loads the unlinked mentions of topicKey, fills in missing
// embeddings and clusters them.
func (d *Detector) cluster(ctx context.Context, sc scope.Scope, topicKey string, merge bool) ([]*clustering.Cluster, clustering.Stats, error) {
	ms, err := sc.Mentions().ListUnlinked(ctx, topicKey, d.cfg.MaxMentions)
	if err != nil {
		return nil, clustering.Stats{}, errors.Wrap(err, errors.CodeUnknown, "failed to list unlinked mentions")
	}

	var missing []*mention.Mention
	for _, m := range ms {
		if len(m.Embedding) == 0 {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		if err := sc.Mentions().LoadEmbeddings(ctx, missing); err != nil {
			return nil, clustering.Stats{}, errors.Wrap(err, errors.CodeUnknown, "failed to load embeddings")
		}
	}

	clusters, stats := d.engine.Cluster(ms)
	if merge {
		clusters = d.engine.MergeSimilar(clusters)
		stats.Clusters = len(clusters)
	}
	return clusters, stats, nil
}

func (d *Detector) loadCandidates(ctx context.Context, sc scope.Scope, topicKey string, now time.Time) ([]*candidate, error) {
	var resolvedSince *time.Time
	if d.cfg.ReactivationWindow > 0 {
		t := now.Add(-d.cfg.ReactivationWindow)
		resolvedSince = &t
	}
	issues, err := sc.Issues().ListCandidates(ctx, topicKey, resolvedSince)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to list candidate issues")
	}

	cands := make([]*candidate, 0, len(issues))
	for _, iss := range issues {
		cand := &candidate{iss: iss}
		if iss.HasCentroid(d.cfg.Clustering.EmbeddingDim) {
			cand.cached = true
			cand.centroid = append([]float64(nil), iss.Centroid...)
		} else {
			if len(iss.Centroid) > 0 {
				d.log.Warn("cached centroid has wrong dimension, dropping it",
					logging.String("issue_id", iss.ID), logging.Int("dim", len(iss.Centroid)))
				iss.InvalidateCentroid()
			}
			centroid, err := d.sampleCentroid(ctx, sc, iss.ID)
			if err != nil {
				return nil, err
			}
			cand.centroid = centroid
		}
		cands = append(cands, cand)
	}
	return cands, nil
}

// sampleCentroid is the similarity-weighted mean of the most recently
// linked embeddings of an issue. It returns nil when no usable embedding
// exists.
func (d *Detector) sampleCentroid(ctx context.Context, sc scope.Scope, issueID string) ([]float64, error) {
	links, err := sc.Mentions().EmbeddingsByIssue(ctx, issueID, d.cfg.CentroidSampleSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to sample linked mentions")
	}
	centroid, _, err := issue.LinkedCentroid(links, d.cfg.Clustering.EmbeddingDim)
	if err != nil {
		d.log.Debug("issue has no sampled embeddings", logging.String("issue_id", issueID), logging.Err(err))
		return nil, nil
	}
	return centroid, nil
}

// bestMatch returns the candidate most similar to c when that similarity
// reaches the issue threshold. Earlier candidates win ties.
func (d *Detector) bestMatch(c *clustering.Cluster, cands []*candidate) (*candidate, float64) {
	var (
		best    *candidate
		bestSim float64
	)
	for _, cand := range cands {
		if cand.centroid == nil {
			continue
		}
		sim, err := similarity.Cosine(c.Centroid, cand.centroid)
		if err != nil {
			d.log.Warn("centroid comparison failed", logging.String("issue_id", cand.iss.ID), logging.Err(err))
			continue
		}
		if best == nil || sim > bestSim {
			best, bestSim = cand, sim
		}
	}
	if best == nil || bestSim < d.cfg.IssueSimilarityThreshold {
		return nil, bestSim
	}
	return best, bestSim
}

// link attaches the cluster's mentions to cand and folds the cluster
// centroid into the issue's, weighted by mention counts.
func (d *Detector) link(ctx context.Context, sc scope.Scope, cand *candidate, c *clustering.Cluster, now time.Time) (int, error) {
	iss := cand.iss
	links := make([]issue.Link, 0, c.Size())
	for _, m := range c.Mentions {
		sim, err := similarity.Cosine(m.Embedding, cand.centroid)
		if err != nil {
			sim = 0
		}
		links = append(links, issue.Link{
			IssueID:    iss.ID,
			MentionID:  m.ID,
			TopicKey:   iss.TopicKey,
			Similarity: sim,
			LinkedAt:   now,
		})
	}

	n, err := sc.Issues().LinkMentions(ctx, links)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeUnknown, "failed to link mentions")
	}
	if n == 0 {
		return 0, nil
	}
	if n < len(links) {
		d.log.Debug("some mentions were already linked",
			logging.String("issue_id", iss.ID), logging.Int("requested", len(links)), logging.Int("linked", n))
	}

	merged, err := similarity.MergeCentroids(cand.centroid, iss.MentionCount, c.Centroid, n)
	if err != nil {
		d.log.Warn("centroid merge failed, invalidating cached centroid",
			logging.String("issue_id", iss.ID), logging.Err(err))
		iss.InvalidateCentroid()
		cand.cached = false
	} else {
		cand.centroid = merged
		if cand.cached {
			iss.Centroid = merged
		}
	}
	iss.MentionCount += n
	return n, nil
}

// create stores a new emerging issue seeded from c and links its mentions.
func (d *Detector) create(ctx context.Context, sc scope.Scope, topicKey string, c *clustering.Cluster, now time.Time) (*candidate, int, error) {
	label := d.metadata.Label(c.Mentions, topicKey)
	iss, err := issue.New(topicKey, label, c.Centroid, d.cfg.Clustering.SimilarityThreshold, c.Start(), now)
	if err != nil {
		return nil, 0, err
	}
	if err := sc.Issues().Create(ctx, iss); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeUnknown, "failed to create issue")
	}

	cand := &candidate{iss: iss, centroid: append([]float64(nil), c.Centroid...), cached: true, isNew: true}
	n, err := d.link(ctx, sc, cand, c, now)
	if err != nil {
		return nil, 0, err
	}
	d.log.Info("issue created",
		logging.String("issue_id", iss.ID),
		logging.String("topic", topicKey),
		logging.String("label", label),
		logging.Int("mentions", n),
	)
	return cand, n, nil
}

// refresh recomputes every derived field of the issue from its full linked
// set and persists it. The transition is nil when the state did not change.
func (d *Detector) refresh(ctx context.Context, sc scope.Scope, cand *candidate, now time.Time) ([]issue.Event, *issue.StateTransition, error) {
	iss := cand.iss

	count, err := sc.Issues().CountLinks(ctx, iss.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeUnknown, "failed to count links")
	}
	iss.MentionCount = count

	ms, err := sc.Mentions().ListByIssue(ctx, iss.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeUnknown, "failed to list linked mentions")
	}

	timestamps := make([]time.Time, 0, len(ms))
	for _, m := range ms {
		if !m.PublishedAt.IsZero() {
			timestamps = append(timestamps, m.PublishedAt)
		}
	}
	if first, last, ok := span(timestamps); ok {
		iss.StartTime = first
		iss.LastActivity = last
	}
	iss.ApplyVolume(issue.ComputeVolume(timestamps, now, d.cfg.VelocityWindow))

	meta := d.metadata.Extract(ms)
	iss.TopKeywords = meta.Keywords
	iss.TopSources = meta.Sources
	iss.Regions = meta.Regions

	d.applySentiment(iss, ms)
	if err := d.aggregateIssue(ctx, sc, iss.ID); err != nil {
		return nil, nil, err
	}

	d.priority.Apply(iss, now)
	tr := d.states.Apply(iss, now)
	if tr != nil {
		if err := sc.Issues().RecordTransition(ctx, tr); err != nil {
			return nil, nil, errors.Wrap(err, errors.CodeUnknown, "failed to record state transition")
		}
		d.log.Info("issue state changed",
			logging.String("issue_id", iss.ID),
			logging.String("from", string(tr.From)),
			logging.String("to", string(tr.To)),
			logging.String("reason", tr.Reason),
		)
	}
	iss.UpdatedAt = now

	if err := sc.Issues().UpsertTopicLink(ctx, issue.TopicLink{
		TopicKey:     iss.TopicKey,
		IssueID:      iss.ID,
		MentionCount: iss.MentionCount,
		UpdatedAt:    now,
	}); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeUnknown, "failed to update topic link")
	}
	if err := sc.Issues().Update(ctx, iss); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeUnknown, "failed to update issue")
	}

	var events []issue.Event
	if cand.isNew {
		events = append(events, issue.NewEvent(issue.EventCreated, iss, "", iss.StateReason, now))
	}
	events = append(events, issue.EventsForTransition(iss, tr)...)
	return events, tr, nil
}

// applySentiment recomputes the issue's sentiment snapshot. When nothing can
// be computed the last known snapshot is kept, or a neutral one is used for
// issues that never had one.
func (d *Detector) applySentiment(iss *issue.Issue, ms []*mention.Mention) {
	res, err := sentiment.Calculate(ms)
	if err != nil {
		if iss.Sentiment.Index != nil {
			d.log.Debug("sentiment unavailable, keeping last known values",
				logging.String("issue_id", iss.ID), logging.Err(err))
			return
		}
		d.log.Debug("sentiment unavailable, using neutral values",
			logging.String("issue_id", iss.ID), logging.Err(err))
		res = sentiment.Neutral()
	}
	iss.Sentiment = issue.Sentiment{
		Distribution:        res.Distribution,
		WeightedScore:       &res.WeightedScore,
		Index:               &res.Index,
		EmotionDistribution: res.EmotionDistribution,
		Severity:            &res.Severity,
	}
}

// aggregateIssue refreshes the configured issue aggregation windows. A
// failed computation is logged and skipped; store errors are returned.
func (d *Detector) aggregateIssue(ctx context.Context, sc scope.Scope, issueID string) error {
	if d.aggregator == nil {
		return nil
	}
	for _, w := range d.cfg.IssueAggregationWindows {
		if _, err := d.aggregator.AggregateIssue(ctx, sc, issueID, w); err != nil {
			if errors.IsCode(err, errors.ErrCodeInvalidAggregation) {
				d.log.Warn("issue aggregation skipped",
					logging.String("issue_id", issueID), logging.String("window", string(w)), logging.Err(err))
				continue
			}
			return err
		}
	}
	return nil
}

func span(ts []time.Time) (first, last time.Time, ok bool) {
	for i, t := range ts {
		if i == 0 || t.Before(first) {
			first = t
		}
		if i == 0 || t.After(last) {
			last = t
		}
	}
	return first, last, len(ts) > 0
}
