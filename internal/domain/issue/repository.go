package issue

import (
	"context"
	"time"
)

// ListOptions filters and paginates issue listings.
type ListOptions struct {
	TopicKey        string
	States          []State
	MinPriority     float64
	IncludeArchived bool
	Limit           int
	Offset          int
}

// ListOption configures ListOptions.
type ListOption func(*ListOptions)

// WithTopic restricts a listing to one topic.
func WithTopic(topicKey string) ListOption {
	return func(o *ListOptions) { o.TopicKey = topicKey }
}

// WithStates restricts a listing to the given states.
func WithStates(states ...State) ListOption {
	return func(o *ListOptions) { o.States = append(o.States, states...) }
}

// WithMinPriority drops issues scored below p.
func WithMinPriority(p float64) ListOption {
	return func(o *ListOptions) { o.MinPriority = p }
}

// WithArchived includes archived issues.
func WithArchived() ListOption {
	return func(o *ListOptions) { o.IncludeArchived = true }
}

// WithLimit sets the page size.
func WithLimit(limit int) ListOption {
	return func(o *ListOptions) { o.Limit = limit }
}

// WithOffset sets the page offset.
func WithOffset(offset int) ListOption {
	return func(o *ListOptions) { o.Offset = offset }
}

// ApplyListOptions resolves opts. Limit defaults to 20 and is capped at 100.
func ApplyListOptions(opts ...ListOption) ListOptions {
	o := ListOptions{Limit: 20}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Repository persists issues, their mention links and state history.
type Repository interface {
	Create(ctx context.Context, iss *Issue) error
	Update(ctx context.Context, iss *Issue) error
	FindByID(ctx context.Context, id string) (*Issue, error)

	// ListCandidates returns the active, non-archived issues of a topic. When
	// resolvedSince is set, issues resolved at or after it are included too.
	ListCandidates(ctx context.Context, topicKey string, resolvedSince *time.Time) ([]*Issue, error)
	List(ctx context.Context, opts ...ListOption) ([]*Issue, int64, error)

	// LinkMentions inserts links, ignoring mentions already linked within the
	// same topic, and returns how many rows were inserted.
	LinkMentions(ctx context.Context, links []Link) (int, error)
	CountLinks(ctx context.Context, issueID string) (int, error)
	UpsertTopicLink(ctx context.Context, link TopicLink) error

	RecordTransition(ctx context.Context, tr *StateTransition) error
	ListTransitions(ctx context.Context, issueID string) ([]*StateTransition, error)
}
