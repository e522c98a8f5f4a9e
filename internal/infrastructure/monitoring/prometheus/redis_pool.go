package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// PoolStatsSource is implemented by the redis Client.
type PoolStatsSource interface {
	PoolStats() *redis.PoolStats
}

// RedisPoolCollector exports go-redis connection pool statistics at scrape
// time.
type RedisPoolCollector struct {
	source   PoolStatsSource
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	timeouts *prometheus.Desc
	total    *prometheus.Desc
	idle     *prometheus.Desc
	stale    *prometheus.Desc
}

// NewRedisPoolCollector creates a collector for source. Register it with
// MetricsCollector.MustRegister.
func NewRedisPoolCollector(namespace string, source PoolStatsSource) *RedisPoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "redis_pool", name), help, nil, nil)
	}
	return &RedisPoolCollector{
		source:   source,
		hits:     desc("hits_total", "Times a free connection was found in the pool"),
		misses:   desc("misses_total", "Times a free connection was not found in the pool"),
		timeouts: desc("timeouts_total", "Times a wait for a connection timed out"),
		total:    desc("connections", "Connections in the pool"),
		idle:     desc("idle_connections", "Idle connections in the pool"),
		stale:    desc("stale_connections_total", "Stale connections removed from the pool"),
	}
}

// Describe implements prometheus.Collector.
func (c *RedisPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.total
	ch <- c.idle
	ch <- c.stale
}

// Collect implements prometheus.Collector.
func (c *RedisPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.PoolStats()
	if s == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.stale, prometheus.CounterValue, float64(s.StaleConns))
}
