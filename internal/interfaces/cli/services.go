package cli

import (
	"context"

	"github.com/turtacn/Issue-Intelligence/internal/application/detection"
	"github.com/turtacn/Issue-Intelligence/internal/application/scheduler"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres"
)

// DetectionRunner runs committed detection passes.
type DetectionRunner interface {
	RunTopic(ctx context.Context, topicKey string) (*scheduler.TopicResult, error)
	RunAll(ctx context.Context) (*scheduler.Summary, error)
}

// ClusterPreviewer clusters a topic without writing.
type ClusterPreviewer interface {
	Preview(ctx context.Context, topicKey string, merge bool) (*detection.Preview, error)
}

// SentimentService recomputes aggregations and baselines.
type SentimentService interface {
	Aggregate(ctx context.Context, typ sentiment.AggregationType, key string, windows []sentiment.Window) ([]*sentiment.Aggregation, error)
	Baseline(ctx context.Context, topicKey string) (*sentiment.Baseline, error)
	RefreshBaseline(ctx context.Context, topicKey string) (int, error)
}

// IssueService queries and administers issues.
type IssueService interface {
	List(ctx context.Context, opts ...issue.ListOption) ([]*issue.Issue, int64, error)
	Get(ctx context.Context, id string) (*issue.Issue, error)
	Transitions(ctx context.Context, id string) ([]*issue.StateTransition, error)
	Archive(ctx context.Context, id, reason string) (*issue.Issue, error)
	RebuildCentroid(ctx context.Context, id string) (*issue.Issue, error)
}

// MigrationService manages the database schema. postgres.Migrator
// implements it.
type MigrationService interface {
	Up() error
	Down(steps int) error
	Force(version int) error
	Status() (postgres.MigrationStatus, error)
}

// Services groups the application services used by the commands.
type Services struct {
	Runner    DetectionRunner
	Previewer ClusterPreviewer
	Sentiment SentimentService
	Issues    IssueService
}
