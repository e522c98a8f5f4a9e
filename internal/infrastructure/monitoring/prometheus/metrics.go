package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/application/detection"
)

// AppMetrics holds every metric the engine exports. It implements the
// recorder interfaces of the scheduler and the aggregation service.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Detection
	TopicRunsTotal       CounterVec
	TopicRunDuration     HistogramVec
	MentionsProcessed    CounterVec
	ClustersFormedTotal  CounterVec
	IssuesTotal          CounterVec
	MentionsLinkedTotal  CounterVec
	TransitionsTotal     CounterVec
	EventsPublishedTotal CounterVec

	// Aggregation
	AggregationsTotal   CounterVec
	AggregationDuration HistogramVec

	// Messaging
	DetectionRequestsTotal CounterVec

	// Health
	HealthCheckStatus GaugeVec
}

var (
	DefaultHTTPDurationBuckets      = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultDetectionDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}
	DefaultAggregationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.TopicRunsTotal = collector.RegisterCounter("detection_topic_runs_total", "Detection runs per topic by outcome", "status")
	m.TopicRunDuration = collector.RegisterHistogram("detection_topic_run_duration_seconds", "Duration of one topic detection run", DefaultDetectionDurationBuckets, "status")
	m.MentionsProcessed = collector.RegisterCounter("detection_mentions_total", "Mentions seen by clustering", "outcome")
	m.ClustersFormedTotal = collector.RegisterCounter("detection_clusters_total", "Clusters formed by detection runs")
	m.IssuesTotal = collector.RegisterCounter("detection_issues_total", "Clusters resolved to issues", "result")
	m.MentionsLinkedTotal = collector.RegisterCounter("detection_mentions_linked_total", "Mentions newly linked to issues")
	m.TransitionsTotal = collector.RegisterCounter("issue_state_transitions_total", "Issue lifecycle transitions")
	m.EventsPublishedTotal = collector.RegisterCounter("issue_events_published_total", "Issue events handed to the publisher", "status")

	m.AggregationsTotal = collector.RegisterCounter("sentiment_aggregations_total", "Sentiment aggregation attempts", "type", "window", "result")
	m.AggregationDuration = collector.RegisterHistogram("sentiment_aggregation_duration_seconds", "Sentiment aggregation duration", DefaultAggregationBuckets, "type", "window")

	m.DetectionRequestsTotal = collector.RegisterCounter("detection_requests_total", "On-demand detection requests consumed", "result")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	return m
}

// ObserveTopicRun records one scheduler topic run.
func (m *AppMetrics) ObserveTopicRun(status string, d time.Duration) {
	m.TopicRunsTotal.WithLabelValues(status).Inc()
	m.TopicRunDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveDetection records the counters of a committed detection result.
func (m *AppMetrics) ObserveDetection(res *detection.Result) {
	if res == nil {
		return
	}
	s := res.Stats
	m.MentionsProcessed.WithLabelValues("clustered").Add(float64(s.Input - s.Dropped()))
	m.MentionsProcessed.WithLabelValues("missing_embedding").Add(float64(s.MissingEmbedding))
	m.MentionsProcessed.WithLabelValues("invalid_embedding").Add(float64(s.InvalidEmbedding))
	m.MentionsProcessed.WithLabelValues("missing_timestamp").Add(float64(s.MissingTimestamp))
	m.ClustersFormedTotal.WithLabelValues().Add(float64(res.Clusters))
	m.IssuesTotal.WithLabelValues("created").Add(float64(res.Created))
	m.IssuesTotal.WithLabelValues("matched").Add(float64(res.Matched))
	m.IssuesTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	m.MentionsLinkedTotal.WithLabelValues().Add(float64(res.Linked))
	m.TransitionsTotal.WithLabelValues().Add(float64(res.Transitions))
}

// ObserveEventsPublished records a publish attempt of n events.
func (m *AppMetrics) ObserveEventsPublished(n int, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.EventsPublishedTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveAggregation records one aggregation attempt.
func (m *AppMetrics) ObserveAggregation(typ, window string, d time.Duration, written bool) {
	result := "written"
	if !written {
		result = "skipped"
	}
	m.AggregationsTotal.WithLabelValues(typ, window, result).Inc()
	m.AggregationDuration.WithLabelValues(typ, window).Observe(d.Seconds())
}

// ObserveDetectionRequest records the outcome of a consumed request.
func (m *AppMetrics) ObserveDetectionRequest(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.DetectionRequestsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a served request. path should be the route
// template, not the raw URL.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// SetHealth publishes the health of component.
func (m *AppMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}
