package mention

import (
	"context"
	"time"
)

// Window selects mentions published in [Since, Until).
type Window struct {
	Since time.Time
	Until time.Time
}

// LinkedEmbedding is the embedding of a mention linked to an issue, with
// the similarity it was linked at.
type LinkedEmbedding struct {
	MentionID  string
	Embedding  []float64
	Similarity float64
}

// Repository is the read contract over the shared mention store.
type Repository interface {
	// ListTopicKeys returns every topic key that has at least one mention.
	ListTopicKeys(ctx context.Context) ([]string, error)

	// ListUnlinked returns mentions of topicKey not linked to any issue of that
	// topic, oldest first. limit <= 0 means no limit.
	ListUnlinked(ctx context.Context, topicKey string, limit int) ([]*Mention, error)

	// LoadEmbeddings fills missing embeddings from the analysis store in place.
	// Mentions without a stored embedding are left untouched.
	LoadEmbeddings(ctx context.Context, mentions []*Mention) error

	// ListByIssue returns every mention linked to the issue, without
	// embeddings.
	ListByIssue(ctx context.Context, issueID string) ([]*Mention, error)

	// EmbeddingsByIssue returns the stored embeddings of mentions linked to
	// the issue, most recently linked first. limit > 0 keeps that many.
	EmbeddingsByIssue(ctx context.Context, issueID string, limit int) ([]LinkedEmbedding, error)

	// ListScoredByTopic returns topic mentions inside w that carry both a
	// sentiment score and an influence weight.
	ListScoredByTopic(ctx context.Context, topicKey string, w Window) ([]*Mention, error)

	// ListScoredByIssue is ListScoredByTopic over an issue's linked mentions.
	ListScoredByIssue(ctx context.Context, issueID string, w Window) ([]*Mention, error)
}
