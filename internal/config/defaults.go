package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default values
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 15 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second

	DefaultDBHost             = "localhost"
	DefaultDBPort             = 5432
	DefaultDBUser             = "postgres"
	DefaultDBName             = "issue_intel"
	DefaultDBSSLMode          = "disable"
	DefaultDBMaxOpenConns     = 25
	DefaultDBMaxIdleConns     = 10
	DefaultDBConnMaxLifetime  = 30 * time.Minute
	DefaultDBConnMaxIdleTime  = 5 * time.Minute
	DefaultDBStatementTimeout = 30000
	DefaultDBLockTimeout      = 10000

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisPoolSize    = 20
	DefaultRedisDialTimeout = 5 * time.Second
	DefaultRedisIOTimeout   = 3 * time.Second
	DefaultRedisKeyPrefix   = "issueintel:"

	DefaultKafkaBroker                = "localhost:9092"
	DefaultKafkaGroupID               = "issue-intel-worker"
	DefaultKafkaDetectionRequestTopic = "issue.detection.requested"
	DefaultKafkaDeadLetterTopic       = "issue.detection.dlq"
	DefaultKafkaMaxRetries            = 3
	DefaultKafkaRetryBackoff          = time.Second
	DefaultKafkaBatchTimeout          = 50 * time.Millisecond
	DefaultKafkaCompression           = "snappy"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "issue_intel"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsPort      = 9090

	DefaultWorkerConcurrency      = 4
	DefaultWorkerScheduleInterval = 15 * time.Minute
	DefaultWorkerTopicTimeout     = 5 * time.Minute
	DefaultWorkerLockTTL          = 10 * time.Minute
)

// Engine defaults.
const (
	DefaultSimilarityThreshold      = 0.75
	DefaultMinClusterSize           = 3
	DefaultTimeWindowHours          = 24
	DefaultIssueSimilarityThreshold = 0.70
	DefaultEmbeddingDim             = 1536
	DefaultCentroidSampleSize       = 10
	DefaultVelocityWindowHours      = 24
	DefaultMaxSpanFactor            = 2.0
	DefaultTopKeywords              = 10
	DefaultTopSources               = 5
	DefaultMaxRegions               = 10
	DefaultANNMinWindowSize         = 500
	DefaultANNNeighbors             = 32
	DefaultANNM                     = 16
	DefaultANNEfSearch              = 64

	DefaultResolvedThresholdDays  = 7
	DefaultEmergingThresholdHours = 24
	DefaultEmergingMinMentions    = 3
	DefaultEscalationIndex        = 30.0
	DefaultEscalationMinMentions  = 10
	DefaultStabilizingVelocity    = -20.0
	DefaultStabilizingMinMentions = 5
	DefaultActiveMinMentions      = 3

	DefaultSentimentWeight = 0.4
	DefaultVolumeWeight    = 0.3
	DefaultTimeWeight      = 0.2
	DefaultVelocityWeight  = 0.1

	DefaultAggregationMinMentions = 3
	DefaultBaselineLookbackDays   = 30
	DefaultBaselineMinSample      = 50
	DefaultBaselineCacheTTL       = 15 * time.Minute
	DefaultTrendSignificantDelta  = 5.0
	DefaultTrendStableDelta       = 2.0
)

// DefaultAggregationWindows is the window list used when none is configured.
var DefaultAggregationWindows = []string{"15m", "1h", "24h", "7d", "30d"}

// DefaultIssueAggregationWindows are refreshed for every issue on each run.
var DefaultIssueAggregationWindows = []string{"24h"}

// Default returns a fully defaulted Config. Booleans that default to true are
// set here because ApplyDefaults cannot tell false from unset.
func Default() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	setInt(&cfg.Server.Port, DefaultServerPort)
	setString(&cfg.Server.Mode, DefaultServerMode)
	setDuration(&cfg.Server.ReadTimeout, DefaultServerReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, DefaultServerWriteTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, DefaultServerShutdownTimeout)

	// ── Database ──────────────────────────────────────────────────────────────
	setString(&cfg.Database.Host, DefaultDBHost)
	setInt(&cfg.Database.Port, DefaultDBPort)
	setString(&cfg.Database.User, DefaultDBUser)
	setString(&cfg.Database.DBName, DefaultDBName)
	setString(&cfg.Database.SSLMode, DefaultDBSSLMode)
	setInt(&cfg.Database.MaxOpenConns, DefaultDBMaxOpenConns)
	setInt(&cfg.Database.MaxIdleConns, DefaultDBMaxIdleConns)
	setDuration(&cfg.Database.ConnMaxLifetime, DefaultDBConnMaxLifetime)
	setDuration(&cfg.Database.ConnMaxIdleTime, DefaultDBConnMaxIdleTime)
	setInt(&cfg.Database.StatementTimeout, DefaultDBStatementTimeout)
	setInt(&cfg.Database.LockTimeout, DefaultDBLockTimeout)

	// ── Redis ─────────────────────────────────────────────────────────────────
	setString(&cfg.Redis.Addr, DefaultRedisAddr)
	setInt(&cfg.Redis.PoolSize, DefaultRedisPoolSize)
	setDuration(&cfg.Redis.DialTimeout, DefaultRedisDialTimeout)
	setDuration(&cfg.Redis.ReadTimeout, DefaultRedisIOTimeout)
	setDuration(&cfg.Redis.WriteTimeout, DefaultRedisIOTimeout)
	setString(&cfg.Redis.KeyPrefix, DefaultRedisKeyPrefix)

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	setString(&cfg.Kafka.GroupID, DefaultKafkaGroupID)
	setString(&cfg.Kafka.DetectionRequestTopic, DefaultKafkaDetectionRequestTopic)
	setString(&cfg.Kafka.DeadLetterTopic, DefaultKafkaDeadLetterTopic)
	setInt(&cfg.Kafka.MaxRetries, DefaultKafkaMaxRetries)
	setDuration(&cfg.Kafka.RetryBackoff, DefaultKafkaRetryBackoff)
	setDuration(&cfg.Kafka.BatchTimeout, DefaultKafkaBatchTimeout)
	setString(&cfg.Kafka.Compression, DefaultKafkaCompression)

	// ── Log / Metrics ─────────────────────────────────────────────────────────
	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)
	setString(&cfg.Metrics.Namespace, DefaultMetricsNamespace)
	setString(&cfg.Metrics.Path, DefaultMetricsPath)
	setInt(&cfg.Metrics.Port, DefaultMetricsPort)

	// ── Worker ────────────────────────────────────────────────────────────────
	setInt(&cfg.Worker.Concurrency, DefaultWorkerConcurrency)
	setDuration(&cfg.Worker.ScheduleInterval, DefaultWorkerScheduleInterval)
	setDuration(&cfg.Worker.TopicTimeout, DefaultWorkerTopicTimeout)
	setDuration(&cfg.Worker.LockTTL, DefaultWorkerLockTTL)

	// ── Detection ─────────────────────────────────────────────────────────────
	d := &cfg.Detection
	setFloat(&d.SimilarityThreshold, DefaultSimilarityThreshold)
	setInt(&d.MinClusterSize, DefaultMinClusterSize)
	setInt(&d.TimeWindowHours, DefaultTimeWindowHours)
	setFloat(&d.IssueSimilarityThreshold, DefaultIssueSimilarityThreshold)
	setInt(&d.EmbeddingDim, DefaultEmbeddingDim)
	setInt(&d.CentroidSampleSize, DefaultCentroidSampleSize)
	setInt(&d.VelocityWindowHours, DefaultVelocityWindowHours)
	setFloat(&d.MaxSpanFactor, DefaultMaxSpanFactor)
	setInt(&d.TopKeywords, DefaultTopKeywords)
	setInt(&d.TopSources, DefaultTopSources)
	setInt(&d.MaxRegions, DefaultMaxRegions)
	if d.IssueAggregationWindows == nil {
		d.IssueAggregationWindows = append([]string(nil), DefaultIssueAggregationWindows...)
	}
	setInt(&d.ANN.MinWindowSize, DefaultANNMinWindowSize)
	setInt(&d.ANN.Neighbors, DefaultANNNeighbors)
	setInt(&d.ANN.M, DefaultANNM)
	setInt(&d.ANN.EfSearch, DefaultANNEfSearch)

	// ── Lifecycle ─────────────────────────────────────────────────────────────
	l := &cfg.Lifecycle
	setInt(&l.ResolvedThresholdDays, DefaultResolvedThresholdDays)
	setInt(&l.EmergingThresholdHours, DefaultEmergingThresholdHours)
	setInt(&l.EmergingMinMentions, DefaultEmergingMinMentions)
	setFloat(&l.EscalationIndex, DefaultEscalationIndex)
	setInt(&l.EscalationMinMentions, DefaultEscalationMinMentions)
	setFloat(&l.StabilizingVelocity, DefaultStabilizingVelocity)
	setInt(&l.StabilizingMinMentions, DefaultStabilizingMinMentions)
	setInt(&l.ActiveMinMentions, DefaultActiveMinMentions)

	// ── Priority ──────────────────────────────────────────────────────────────
	p := &cfg.Priority
	if p.WeightSum() == 0 {
		p.SentimentWeight = DefaultSentimentWeight
		p.VolumeWeight = DefaultVolumeWeight
		p.TimeWeight = DefaultTimeWeight
		p.VelocityWeight = DefaultVelocityWeight
	}

	// ── Aggregation ───────────────────────────────────────────────────────────
	a := &cfg.Aggregation
	if len(a.Windows) == 0 {
		a.Windows = append([]string(nil), DefaultAggregationWindows...)
	}
	setInt(&a.MinMentions, DefaultAggregationMinMentions)
	setInt(&a.BaselineLookbackDays, DefaultBaselineLookbackDays)
	setInt(&a.BaselineMinSample, DefaultBaselineMinSample)
	setDuration(&a.BaselineCacheTTL, DefaultBaselineCacheTTL)
	setFloat(&a.TrendSignificant, DefaultTrendSignificantDelta)
	setFloat(&a.TrendStable, DefaultTrendStableDelta)
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setFloat(dst *float64, def float64) {
	if *dst == 0 {
		*dst = def
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
