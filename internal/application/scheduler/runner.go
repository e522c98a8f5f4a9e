// Package scheduler drives detection across topics. Each topic runs in its
// own transaction, topics run concurrently, and a topic is never processed
// by two runners at once.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/Issue-Intelligence/internal/application/aggregation"
	"github.com/turtacn/Issue-Intelligence/internal/application/detection"
	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Run statuses reported to the Recorder.
const (
	StatusOK     = "ok"
	StatusBusy   = "busy"
	StatusFailed = "failed"
)

// Config holds runner parameters.
type Config struct {
	Concurrency      int
	TopicTimeout     time.Duration
	RefreshBaselines bool
}

// ConfigFrom maps the worker section.
func ConfigFrom(c config.WorkerConfig) Config {
	return Config{
		Concurrency:      c.Concurrency,
		TopicTimeout:     c.TopicTimeout,
		RefreshBaselines: c.RefreshBaselines,
	}
}

// Recorder receives run metrics. The prometheus AppMetrics implements it.
type Recorder interface {
	ObserveTopicRun(status string, d time.Duration)
	ObserveDetection(res *detection.Result)
	ObserveEventsPublished(n int, err error)
}

// TopicResult is the outcome of one committed topic run.
type TopicResult struct {
	Detection    *detection.Result `json:"detection"`
	Aggregations int               `json:"aggregations"`
	Baseline     bool              `json:"baseline_refreshed"`
}

// Summary totals a RunAll pass.
type Summary struct {
	Topics    int           `json:"topics"`
	Succeeded int           `json:"succeeded"`
	Busy      int           `json:"busy"`
	Failed    int           `json:"failed"`
	Created   int           `json:"created"`
	Matched   int           `json:"matched"`
	Linked    int           `json:"linked"`
	Events    int           `json:"events"`
	Duration  time.Duration `json:"duration"`
}

// Runner executes detection for one topic or for all of them.
type Runner struct {
	tx  scope.Transactor
	cfg Config

	mu         sync.RWMutex
	detector   *detection.Detector
	aggregator *aggregation.Service
	baselines  *aggregation.BaselineService

	locker    Locker
	publisher issue.EventPublisher
	metrics   Recorder
	health    func(ctx context.Context) error
	log       logging.Logger
}

// Option customises a Runner.
type Option func(*Runner)

// WithAggregator refreshes topic aggregations after detection.
func WithAggregator(a *aggregation.Service) Option {
	return func(r *Runner) { r.aggregator = a }
}

// WithBaselines refreshes topic baselines when Config.RefreshBaselines is set.
func WithBaselines(b *aggregation.BaselineService) Option {
	return func(r *Runner) { r.baselines = b }
}

// WithLocker enforces a single writer per topic.
func WithLocker(l Locker) Option {
	return func(r *Runner) { r.locker = l }
}

// WithPublisher publishes detection events after commit.
func WithPublisher(p issue.EventPublisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(m Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithHealthCheck is consulted after a topic fails. When it fails too the
// whole pass is aborted, since the store is unreachable.
func WithHealthCheck(f func(ctx context.Context) error) Option {
	return func(r *Runner) { r.health = f }
}

// NewRunner creates a Runner.
func NewRunner(tx scope.Transactor, det *detection.Detector, cfg Config, log logging.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.DefaultWorkerConcurrency
	}
	r := &Runner{tx: tx, cfg: cfg, detector: det, log: log.Named("scheduler")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconfigure swaps the detector and aggregator used by subsequent runs.
// Runs already in flight finish with the previous ones.
func (r *Runner) Reconfigure(det *detection.Detector, agg *aggregation.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if det != nil {
		r.detector = det
	}
	if agg != nil {
		r.aggregator = agg
	}
	r.log.Info("runner reconfigured")
}

func (r *Runner) components() (*detection.Detector, *aggregation.Service) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.detector, r.aggregator
}

// RunTopic processes one topic in its own transaction. It returns an
// ErrCodeTopicBusy error when another runner holds the topic.
func (r *Runner) RunTopic(ctx context.Context, topicKey string) (*TopicResult, error) {
	start := time.Now()
	log := r.log.With(logging.String("topic", topicKey))

	if r.locker != nil {
		release, ok, err := r.locker.Acquire(ctx, topicKey)
		if err != nil {
			r.observe(StatusFailed, start)
			return nil, errors.Wrap(err, errors.CodeUnknown, "failed to acquire topic lock")
		}
		if !ok {
			r.observe(StatusBusy, start)
			log.Info("topic skipped: locked by another runner")
			return nil, errors.New(errors.ErrCodeTopicBusy, "topic is being processed elsewhere").WithDetail(topicKey)
		}
		defer release(context.WithoutCancel(ctx))
	}

	if r.cfg.TopicTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TopicTimeout)
		defer cancel()
	}

	det, agg := r.components()
	out := &TopicResult{}
	err := r.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		res, err := det.DetectTopic(ctx, sc, topicKey)
		if err != nil {
			return err
		}
		out.Detection = res

		if r.cfg.RefreshBaselines && r.baselines != nil {
			base, err := r.baselines.Refresh(ctx, sc, topicKey)
			if err != nil && !errors.IsCode(err, errors.ErrCodeInvalidAggregation) {
				return err
			}
			out.Baseline = base != nil
		}

		if agg != nil {
			for _, w := range agg.Config().Windows {
				row, err := agg.Aggregate(ctx, sc, sentiment.TypeTopic, topicKey, w)
				if err != nil {
					if errors.IsCode(err, errors.ErrCodeInvalidAggregation) {
						log.Warn("topic aggregation skipped", logging.String("window", string(w)), logging.Err(err))
						continue
					}
					return err
				}
				if row != nil {
					out.Aggregations++
				}
			}
		}
		return nil
	})
	if err != nil {
		r.observe(StatusFailed, start)
		log.Error("topic run failed, changes rolled back", logging.Err(err))
		return nil, err
	}

	r.observe(StatusOK, start)
	if out.Baseline {
		r.baselines.Invalidate(ctx, topicKey)
	}
	if r.metrics != nil {
		r.metrics.ObserveDetection(out.Detection)
	}
	r.publish(ctx, out.Detection.Events)
	return out, nil
}

// RunAll processes every topic that has mentions, Concurrency topics at a
// time. A failing topic is logged and counted; only a failed health check
// aborts the pass.
func (r *Runner) RunAll(ctx context.Context) (*Summary, error) {
	start := time.Now()
	var topics []string
	err := r.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		topics, err = sc.Mentions().ListTopicKeys(ctx)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to list topics")
	}

	var (
		mu  sync.Mutex
		sum = &Summary{Topics: len(topics)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			res, err := r.RunTopic(gctx, topic)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.IsCode(err, errors.ErrCodeTopicBusy):
				sum.Busy++
				return nil
			case err != nil:
				sum.Failed++
				if r.health != nil {
					if herr := r.health(gctx); herr != nil {
						return errors.Wrap(herr, errors.ErrCodeServiceUnavailable, "store unreachable, aborting run")
					}
				}
				return nil
			}
			sum.Succeeded++
			sum.Created += res.Detection.Created
			sum.Matched += res.Detection.Matched
			sum.Linked += res.Detection.Linked
			sum.Events += len(res.Detection.Events)
			return nil
		})
	}
	err = g.Wait()
	sum.Duration = time.Since(start)

	r.log.Info("detection pass finished",
		logging.Int("topics", sum.Topics),
		logging.Int("succeeded", sum.Succeeded),
		logging.Int("busy", sum.Busy),
		logging.Int("failed", sum.Failed),
		logging.Int("created", sum.Created),
		logging.Duration("duration", sum.Duration),
	)
	return sum, err
}

// Run calls RunAll every interval until ctx is cancelled. Failed passes are
// logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunAll(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("detection pass aborted", logging.Err(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) publish(ctx context.Context, events []issue.Event) {
	if r.publisher == nil || len(events) == 0 {
		return
	}
	err := r.publisher.Publish(ctx, events...)
	if err != nil {
		r.log.Warn("failed to publish issue events", logging.Int("events", len(events)), logging.Err(err))
	}
	if r.metrics != nil {
		r.metrics.ObserveEventsPublished(len(events), err)
	}
}

func (r *Runner) observe(status string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveTopicRun(status, time.Since(start))
	}
}
