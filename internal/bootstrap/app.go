// Package bootstrap assembles the infrastructure and application services
// shared by the apiserver, worker and issuectl binaries.
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/application/aggregation"
	"github.com/turtacn/Issue-Intelligence/internal/application/detection"
	"github.com/turtacn/Issue-Intelligence/internal/application/issues"
	"github.com/turtacn/Issue-Intelligence/internal/application/scheduler"
	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Options selects the optional parts of an App.
type Options struct {
	// Messaging connects the kafka producer when kafka is enabled.
	Messaging bool
	// EnsureTopics creates the kafka topics on startup.
	EnsureTopics bool
	// SkipMigrations disables database.auto_migrate for this process.
	SkipMigrations bool
}

// App holds every long-lived dependency of a process.
type App struct {
	Config *config.Config
	Logger logging.Logger

	Conn      *postgres.Connection
	Store     *repositories.Store
	Redis     *redis.Client
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Baselines *aggregation.BaselineService
	Reader    *aggregation.Reader
	Issues    *issues.Service
	Runner    *scheduler.Runner

	Producer  *kafka.Producer
	Publisher *kafka.IssueEventPublisher
	Requester *kafka.DetectionRequester

	mu         sync.RWMutex
	detector   *detection.Detector
	aggregator *aggregation.Service

	closers []func() error
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: cfg.OutputPaths,
	})
}

// New connects to the configured infrastructure and wires the services. On
// error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, opts Options) (app *App, err error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	app = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	if err = app.initMetrics(); err != nil {
		return nil, err
	}
	if err = app.initDatabase(cfg.Database, opts.SkipMigrations); err != nil {
		return nil, err
	}
	if err = app.initRedis(cfg.Redis); err != nil {
		return nil, err
	}
	if opts.Messaging && cfg.Kafka.Enabled {
		if err = app.initKafka(ctx, cfg.Kafka, opts.EnsureTopics); err != nil {
			return nil, err
		}
	}
	if err = app.initServices(cfg); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) initMetrics() error {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfigFrom(a.Config.Metrics), a.Logger)
	if err != nil {
		return err
	}
	a.Collector = collector
	a.Metrics = prometheus.NewAppMetrics(collector)
	return nil
}

func (a *App) initDatabase(cfg config.DatabaseConfig, skipMigrations bool) error {
	conn, err := postgres.NewConnection(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.Conn = conn
	a.closers = append(a.closers, conn.Close)

	if cfg.AutoMigrate && !skipMigrations {
		if err := a.Migrator().Up(); err != nil {
			return err
		}
	}
	a.Store = repositories.NewStore(conn, a.Logger)
	return nil
}

func (a *App) initRedis(cfg config.RedisConfig) error {
	if !cfg.Enabled {
		a.Logger.Info("redis disabled: baseline cache and topic locks are off")
		return nil
	}
	client, err := redis.NewClient(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close)
	if a.Collector != nil {
		a.Collector.MustRegister(prometheus.NewRedisPoolCollector(a.Config.Metrics.Namespace, client))
	}
	return nil
}

func (a *App) initKafka(ctx context.Context, cfg config.KafkaConfig, ensureTopics bool) error {
	if ensureTopics {
		tm, err := kafka.NewTopicManager(cfg.Brokers, a.Logger)
		if err != nil {
			return err
		}
		err = tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg))
		_ = tm.Close()
		if err != nil {
			return err
		}
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfigFrom(cfg), a.Logger)
	if err != nil {
		return err
	}
	a.Producer = producer
	a.closers = append(a.closers, producer.Close)
	a.Publisher = kafka.NewIssueEventPublisher(producer)
	a.Requester = kafka.NewDetectionRequester(producer, cfg.DetectionRequestTopic)
	return nil
}

func (a *App) initServices(cfg *config.Config) error {
	aggCfg, err := aggregation.ConfigFrom(cfg.Aggregation)
	if err != nil {
		return err
	}
	var cache aggregation.Cache
	if a.Redis != nil {
		cache = redis.NewRedisCache(a.Redis, a.Logger, redis.WithDefaultTTL(aggCfg.BaselineCacheTTL))
	}
	a.Baselines = aggregation.NewBaselineService(aggCfg, cache, a.Logger, time.Now)

	det, agg, err := a.buildEngine(cfg)
	if err != nil {
		return err
	}
	a.detector, a.aggregator = det, agg
	a.Reader = aggregation.NewReader(a.Store, agg, a.Baselines)

	issueOpts := []issues.Option{}
	if a.Publisher != nil {
		issueOpts = append(issueOpts, issues.WithPublisher(a.Publisher))
	}
	a.Issues = issues.NewService(a.Store, issues.Config{
		Lifecycle:    det.Config().Lifecycle,
		EmbeddingDim: cfg.Detection.EmbeddingDim,
	}, a.Logger, issueOpts...)

	runnerOpts := []scheduler.Option{
		scheduler.WithAggregator(agg),
		scheduler.WithBaselines(a.Baselines),
		scheduler.WithRecorder(a.Metrics),
		scheduler.WithHealthCheck(a.Store.HealthCheck),
	}
	if a.Redis != nil {
		locker := scheduler.NewRedisLocker(redis.NewLockFactory(a.Redis, a.Logger), cfg.Worker.LockTTL, a.Logger)
		runnerOpts = append(runnerOpts, scheduler.WithLocker(locker))
	}
	if a.Publisher != nil {
		runnerOpts = append(runnerOpts, scheduler.WithPublisher(a.Publisher))
	}
	a.Runner = scheduler.NewRunner(a.Store, det, scheduler.ConfigFrom(cfg.Worker), a.Logger, runnerOpts...)
	return nil
}

// buildEngine creates the detector and aggregator for cfg.
func (a *App) buildEngine(cfg *config.Config) (*detection.Detector, *aggregation.Service, error) {
	aggCfg, err := aggregation.ConfigFrom(cfg.Aggregation)
	if err != nil {
		return nil, nil, err
	}
	detCfg, err := detection.ConfigFrom(cfg)
	if err != nil {
		return nil, nil, err
	}
	agg := aggregation.NewService(aggCfg, a.Logger,
		aggregation.WithBaselines(a.Baselines),
		aggregation.WithRecorder(a.Metrics),
	)
	det := detection.NewDetector(detCfg, a.Logger, detection.WithAggregator(agg))
	return det, agg, nil
}

// Detector returns the detector currently in use.
func (a *App) Detector() *detection.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Aggregator returns the aggregator currently in use.
func (a *App) Aggregator() *aggregation.Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.aggregator
}

// Reconfigure applies the engine sections of cfg to subsequent runs.
// Connection settings are not reloaded.
func (a *App) Reconfigure(cfg *config.Config) error {
	det, agg, err := a.buildEngine(cfg)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.detector, a.aggregator = det, agg
	a.mu.Unlock()

	a.Runner.Reconfigure(det, agg)
	if lvl := cfg.Log.Level; lvl != "" && lvl != a.Config.Log.Level {
		logging.SetLevel(a.Logger, lvl)
	}
	a.Logger.Info("configuration reloaded",
		logging.Float64("similarity_threshold", cfg.Detection.SimilarityThreshold),
		logging.Int("min_cluster_size", cfg.Detection.MinClusterSize),
	)
	return nil
}

// WatchConfig reloads the engine whenever the file at path changes.
func (a *App) WatchConfig(path string) error {
	return config.Watch(path,
		func(cfg *config.Config) {
			if err := a.Reconfigure(cfg); err != nil {
				a.Logger.Error("configuration reload rejected", logging.Err(err))
			}
		},
		func(err error) {
			a.Logger.Warn("invalid configuration revision ignored", logging.Err(err))
		},
	)
}

// Migrator returns a migrator for the configured database.
func (a *App) Migrator() *postgres.Migrator {
	return postgres.NewMigrator(postgres.BuildDSN(a.Config.Database), a.Logger)
}

// RunTopic runs detection for one topic and discards the detailed result.
// It adapts the runner to kafka.TopicRunner.
func (a *App) RunTopic(ctx context.Context, topicKey string) error {
	_, err := a.Runner.RunTopic(ctx, topicKey)
	return err
}

// Preview clusters topicKey without writing anything.
func (a *App) Preview(ctx context.Context, topicKey string, merge bool) (*detection.Preview, error) {
	det := a.Detector()
	var out *detection.Preview
	err := a.Store.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		out, err = det.Preview(ctx, sc, topicKey, merge)
		return err
	})
	return out, err
}

// StartDetectionConsumer consumes on-demand detection requests until ctx is
// cancelled. The consumer is closed with the App.
func (a *App) StartDetectionConsumer(ctx context.Context) (*kafka.Consumer, error) {
	if !a.Config.Kafka.Enabled {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "kafka is disabled")
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(a.Config.Kafka), a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, consumer.Close)

	handler := kafka.NewDetectionRequestHandler(kafka.TopicRunnerFunc(func(ctx context.Context, topicKey string) error {
		err := a.RunTopic(ctx, topicKey)
		a.Metrics.ObserveDetectionRequest(err)
		return err
	}), a.Logger)
	consumer.Subscribe(a.Config.Kafka.DetectionRequestTopic, handler)

	if err := consumer.Start(ctx); err != nil {
		return nil, err
	}
	return consumer, nil
}

// HealthCheckers lists the dependencies checked by /readyz.
func (a *App) HealthCheckers() []handlers.HealthChecker {
	checks := []handlers.HealthChecker{
		handlers.CheckerFunc{Component: "postgres", Fn: a.Conn.HealthCheck},
	}
	if a.Redis != nil {
		checks = append(checks, handlers.CheckerFunc{Component: "redis", Fn: a.Redis.Ping})
	}
	return checks
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
