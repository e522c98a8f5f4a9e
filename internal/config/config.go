// Package config defines the configuration structures of Issue-Intelligence.
// Plain data types and validation only; loading lives in loader.go.
package config

import (
	"fmt"
	"math"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure sections
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout int           `mapstructure:"statement_timeout_ms"`
	LockTimeout      int           `mapstructure:"lock_timeout_ms"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	Enabled      bool          `mapstructure:"enabled"`
}

// KafkaConfig holds Kafka producer/consumer parameters.
type KafkaConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	Brokers               []string      `mapstructure:"brokers"`
	GroupID               string        `mapstructure:"group_id"`
	DetectionRequestTopic string        `mapstructure:"detection_request_topic"`
	DeadLetterTopic       string        `mapstructure:"dead_letter_topic"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryBackoff          time.Duration `mapstructure:"retry_backoff"`
	BatchTimeout          time.Duration `mapstructure:"batch_timeout"`
	Compression           string        `mapstructure:"compression"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
	Port      int    `mapstructure:"port"`
}

// WorkerConfig holds scheduler parameters for cmd/worker.
type WorkerConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	ScheduleInterval time.Duration `mapstructure:"schedule_interval"`
	TopicTimeout     time.Duration `mapstructure:"topic_timeout"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	RefreshBaselines bool          `mapstructure:"refresh_baselines"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine sections
// ─────────────────────────────────────────────────────────────────────────────

// ANNConfig controls the approximate neighbour finder used for large windows.
type ANNConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MinWindowSize int  `mapstructure:"min_window_size"`
	Neighbors     int  `mapstructure:"neighbors"`
	M             int  `mapstructure:"m"`
	EfSearch      int  `mapstructure:"ef_search"`
}

// DetectionConfig holds clustering and issue matching parameters.
type DetectionConfig struct {
	SimilarityThreshold      float64   `mapstructure:"similarity_threshold"`
	MinClusterSize           int       `mapstructure:"min_cluster_size"`
	TimeWindowHours          int       `mapstructure:"time_window_hours"`
	IssueSimilarityThreshold float64   `mapstructure:"issue_similarity_threshold"`
	EmbeddingDim             int       `mapstructure:"embedding_dim"`
	MaxMentions              int       `mapstructure:"max_mentions"`
	CentroidSampleSize       int       `mapstructure:"centroid_sample_size"`
	VelocityWindowHours      int       `mapstructure:"velocity_window_hours"`
	MaxSpanFactor            float64   `mapstructure:"max_span_factor"`
	MergePass                bool      `mapstructure:"merge_pass"`
	TopKeywords              int       `mapstructure:"top_keywords"`
	TopSources               int       `mapstructure:"top_sources"`
	MaxRegions               int       `mapstructure:"max_regions"`
	ExtraStopwords           []string  `mapstructure:"extra_stopwords"`
	IssueAggregationWindows  []string  `mapstructure:"issue_aggregation_windows"`
	ANN                      ANNConfig `mapstructure:"ann"`
}

// TimeWindow returns the clustering window width.
func (d DetectionConfig) TimeWindow() time.Duration {
	return time.Duration(d.TimeWindowHours) * time.Hour
}

// VelocityWindow returns the volume/velocity window width.
func (d DetectionConfig) VelocityWindow() time.Duration {
	return time.Duration(d.VelocityWindowHours) * time.Hour
}

// LifecycleConfig holds the thresholds of the issue state machine.
type LifecycleConfig struct {
	ResolvedThresholdDays  int     `mapstructure:"resolved_threshold_days"`
	EmergingThresholdHours int     `mapstructure:"emerging_threshold_hours"`
	EmergingMinMentions    int     `mapstructure:"emerging_min_mentions"`
	EscalationIndex        float64 `mapstructure:"escalation_index"`
	EscalationMinMentions  int     `mapstructure:"escalation_min_mentions"`
	StabilizingVelocity    float64 `mapstructure:"stabilizing_velocity"`
	StabilizingMinMentions int     `mapstructure:"stabilizing_min_mentions"`
	ActiveMinMentions      int     `mapstructure:"active_min_mentions"`
	ReactivationWindowDays int     `mapstructure:"reactivation_window_days"`
}

// PriorityConfig holds the component weights of the priority score.
type PriorityConfig struct {
	SentimentWeight float64 `mapstructure:"sentiment_weight"`
	VolumeWeight    float64 `mapstructure:"volume_weight"`
	TimeWeight      float64 `mapstructure:"time_weight"`
	VelocityWeight  float64 `mapstructure:"velocity_weight"`
}

// WeightSum returns the sum of all weights.
func (p PriorityConfig) WeightSum() float64 {
	return p.SentimentWeight + p.VolumeWeight + p.TimeWeight + p.VelocityWeight
}

// AggregationConfig holds sentiment aggregation, baseline and trend parameters.
type AggregationConfig struct {
	Windows              []string      `mapstructure:"windows"`
	MinMentions          int           `mapstructure:"min_mentions"`
	BaselineLookbackDays int           `mapstructure:"baseline_lookback_days"`
	BaselineMinSample    int           `mapstructure:"baseline_min_sample"`
	BaselineCacheTTL     time.Duration `mapstructure:"baseline_cache_ttl"`
	TrendSignificant     float64       `mapstructure:"trend_significant_delta"`
	TrendStable          float64       `mapstructure:"trend_stable_delta"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration. Components receive the sub-struct they
// need through their constructors.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Detection   DetectionConfig   `mapstructure:"detection"`
	Lifecycle   LifecycleConfig   `mapstructure:"lifecycle"`
	Priority    PriorityConfig    `mapstructure:"priority"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

var validWindows = map[string]bool{"15m": true, "1h": true, "24h": true, "7d": true, "30d": true}

// Validate checks the fully defaulted Config and returns the first problem.
// Priority weights that do not sum to 1 are not an error; the priority
// calculator logs a warning instead.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker when kafka is enabled")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if err := c.Detection.validate(); err != nil {
		return err
	}
	if err := c.Lifecycle.validate(); err != nil {
		return err
	}
	if err := c.Priority.validate(); err != nil {
		return err
	}
	return c.Aggregation.validate()
}

func (d DetectionConfig) validate() error {
	if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 {
		return fmt.Errorf("config: detection.similarity_threshold %.3f must be in (0, 1]", d.SimilarityThreshold)
	}
	if d.IssueSimilarityThreshold <= 0 || d.IssueSimilarityThreshold > 1 {
		return fmt.Errorf("config: detection.issue_similarity_threshold %.3f must be in (0, 1]", d.IssueSimilarityThreshold)
	}
	if d.MinClusterSize < 1 {
		return fmt.Errorf("config: detection.min_cluster_size must be >= 1, got %d", d.MinClusterSize)
	}
	if d.TimeWindowHours < 1 {
		return fmt.Errorf("config: detection.time_window_hours must be >= 1, got %d", d.TimeWindowHours)
	}
	if d.VelocityWindowHours < 1 {
		return fmt.Errorf("config: detection.velocity_window_hours must be >= 1, got %d", d.VelocityWindowHours)
	}
	if d.EmbeddingDim < 1 {
		return fmt.Errorf("config: detection.embedding_dim must be >= 1, got %d", d.EmbeddingDim)
	}
	if d.MaxMentions < 0 {
		return fmt.Errorf("config: detection.max_mentions must be >= 0, got %d", d.MaxMentions)
	}
	if d.MaxSpanFactor <= 0 {
		return fmt.Errorf("config: detection.max_span_factor must be > 0, got %.2f", d.MaxSpanFactor)
	}
	for _, w := range d.IssueAggregationWindows {
		if !validWindows[w] {
			return fmt.Errorf("config: detection.issue_aggregation_windows contains unknown window %q", w)
		}
	}
	if d.ANN.Enabled && (d.ANN.Neighbors < 1 || d.ANN.MinWindowSize < 1) {
		return fmt.Errorf("config: detection.ann.neighbors and min_window_size must be >= 1 when enabled")
	}
	return nil
}

func (l LifecycleConfig) validate() error {
	if l.ResolvedThresholdDays < 1 {
		return fmt.Errorf("config: lifecycle.resolved_threshold_days must be >= 1, got %d", l.ResolvedThresholdDays)
	}
	if l.EmergingThresholdHours < 0 {
		return fmt.Errorf("config: lifecycle.emerging_threshold_hours must be >= 0, got %d", l.EmergingThresholdHours)
	}
	if l.EscalationIndex < 0 || l.EscalationIndex > 100 {
		return fmt.Errorf("config: lifecycle.escalation_index %.1f must be in [0, 100]", l.EscalationIndex)
	}
	if l.ReactivationWindowDays < 0 {
		return fmt.Errorf("config: lifecycle.reactivation_window_days must be >= 0, got %d", l.ReactivationWindowDays)
	}
	return nil
}

func (p PriorityConfig) validate() error {
	for name, w := range map[string]float64{
		"sentiment_weight": p.SentimentWeight,
		"volume_weight":    p.VolumeWeight,
		"time_weight":      p.TimeWeight,
		"velocity_weight":  p.VelocityWeight,
	} {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("config: priority.%s must be >= 0, got %v", name, w)
		}
	}
	return nil
}

func (a AggregationConfig) validate() error {
	if len(a.Windows) == 0 {
		return fmt.Errorf("config: aggregation.windows must not be empty")
	}
	for _, w := range a.Windows {
		if !validWindows[w] {
			return fmt.Errorf("config: aggregation.windows contains unknown window %q", w)
		}
	}
	if a.MinMentions < 1 {
		return fmt.Errorf("config: aggregation.min_mentions must be >= 1, got %d", a.MinMentions)
	}
	if a.BaselineLookbackDays < 1 {
		return fmt.Errorf("config: aggregation.baseline_lookback_days must be >= 1, got %d", a.BaselineLookbackDays)
	}
	if a.TrendStable < 0 || a.TrendSignificant < a.TrendStable {
		return fmt.Errorf("config: aggregation trend deltas must satisfy 0 <= stable (%.1f) <= significant (%.1f)",
			a.TrendStable, a.TrendSignificant)
	}
	return nil
}
