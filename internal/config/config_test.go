package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"redis addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"threshold", func(c *Config) { c.Detection.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"issue threshold", func(c *Config) { c.Detection.IssueSimilarityThreshold = -1 }, "issue_similarity_threshold"},
		{"cluster size", func(c *Config) { c.Detection.MinClusterSize = 0 }, "min_cluster_size"},
		{"issue window", func(c *Config) { c.Detection.IssueAggregationWindows = []string{"2h"} }, "issue_aggregation_windows"},
		{"ann", func(c *Config) { c.Detection.ANN.Enabled = true; c.Detection.ANN.Neighbors = 0 }, "ann"},
		{"escalation", func(c *Config) { c.Lifecycle.EscalationIndex = 120 }, "escalation_index"},
		{"weight", func(c *Config) { c.Priority.TimeWeight = -0.1 }, "priority.time_weight"},
		{"windows", func(c *Config) { c.Aggregation.Windows = []string{"1w"} }, "aggregation.windows"},
		{"trend", func(c *Config) { c.Aggregation.TrendStable = 10 }, "trend deltas"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.want)
			}
		})
	}
}

func TestValidate_WeightsNotSummingToOneAreAccepted(t *testing.T) {
	cfg := Default()
	cfg.Priority.SentimentWeight = 0.9
	assert.NoError(t, cfg.Validate())
}

func TestDetectionConfig_Windows(t *testing.T) {
	d := DetectionConfig{TimeWindowHours: 12, VelocityWindowHours: 6}
	assert.Equal(t, "12h0m0s", d.TimeWindow().String())
	assert.Equal(t, "6h0m0s", d.VelocityWindow().String())
}
