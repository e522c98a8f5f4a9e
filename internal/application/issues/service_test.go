package issues

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, events ...issue.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func newService(store *testutil.MemStore, opts ...Option) *Service {
	cfg := Config{Lifecycle: issue.DefaultLifecycleConfig(), EmbeddingDim: 2}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(store, cfg, logging.NewNopLogger(), opts...)
}

func seed(t *testing.T, store *testutil.MemStore, topic string, priority float64) *issue.Issue {
	t.Helper()
	iss, err := issue.New(topic, "Fuel Shortage", []float64{1, 0}, 0.75, testNow.Add(-time.Hour), testNow)
	require.NoError(t, err)
	iss.PriorityScore = priority
	store.SeedIssue(iss)
	return iss
}

func TestService_ListAndGet(t *testing.T) {
	store := testutil.NewMemStore()
	low := seed(t, store, "fuel", 20)
	high := seed(t, store, "fuel", 90)
	seed(t, store, "water", 50)
	svc := newService(store)

	out, total, err := svc.List(context.Background(), issue.WithTopic("fuel"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, out, 2)
	assert.Equal(t, high.ID, out[0].ID)
	assert.Equal(t, low.ID, out[1].ID)

	got, err := svc.Get(context.Background(), low.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fuel Shortage", got.Label)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.Get(context.Background(), "")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestService_ArchivePublishesAfterCommit(t *testing.T) {
	store := testutil.NewMemStore()
	iss := seed(t, store, "fuel", 40)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []issue.Event) bool {
		return len(events) == 1 && events[0].Type == issue.EventStateChanged && events[0].To == issue.StateArchived
	})).Return(nil).Once()
	svc := newService(store, WithPublisher(pub))

	got, err := svc.Archive(context.Background(), iss.ID, "duplicate of another issue")
	require.NoError(t, err)
	assert.Equal(t, issue.StateArchived, got.State)
	assert.True(t, got.IsArchived)
	assert.False(t, got.IsActive)
	pub.AssertExpectations(t)

	stored, err := store.Issues().FindByID(context.Background(), iss.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsArchived)

	history, err := svc.Transitions(context.Background(), iss.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "duplicate of another issue", history[0].Reason)

	_, err = svc.Archive(context.Background(), iss.ID, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeIssueArchived))
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestService_ArchiveRollsBackOnStoreFailure(t *testing.T) {
	store := testutil.NewMemStore()
	iss := seed(t, store, "fuel", 40)
	store.Fail["issues.Update"] = errors.New(errors.ErrCodeDatabaseError, "down")

	pub := &mockPublisher{}
	svc := newService(store, WithPublisher(pub))

	_, err := svc.Archive(context.Background(), iss.ID, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	assert.Empty(t, store.Transitions())
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_TransitionsOfMissingIssue(t *testing.T) {
	_, err := newService(testutil.NewMemStore()).Transitions(context.Background(), "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeIssueNotFound))
}

func TestService_RebuildCentroid(t *testing.T) {
	store := testutil.NewMemStore()
	iss := seed(t, store, "fuel", 40)
	iss.InvalidateCentroid()
	store.SeedIssue(iss)

	store.AddMentions(
		&mention.Mention{ID: "a", TopicKey: "fuel", Embedding: []float64{1, 0}, PublishedAt: testNow},
		&mention.Mention{ID: "b", TopicKey: "fuel", Embedding: []float64{0, 1}, PublishedAt: testNow},
		&mention.Mention{ID: "c", TopicKey: "fuel", Embedding: []float64{1, 1, 1}, PublishedAt: testNow},
	)
	for _, id := range []string{"a", "b", "c"} {
		store.SeedLinks(issue.Link{IssueID: iss.ID, MentionID: id, TopicKey: "fuel", LinkedAt: testNow})
	}

	got, err := newService(store).RebuildCentroid(context.Background(), iss.ID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, got.Centroid, 1e-9)

	stored, err := store.Issues().FindByID(context.Background(), iss.ID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, stored.Centroid, 1e-9)
}

func TestService_RebuildCentroidWeightsBySimilarity(t *testing.T) {
	store := testutil.NewMemStore()
	iss := seed(t, store, "fuel", 40)

	store.AddMentions(
		&mention.Mention{ID: "a", TopicKey: "fuel", Embedding: []float64{1, 0}, PublishedAt: testNow},
		&mention.Mention{ID: "b", TopicKey: "fuel", Embedding: []float64{0, 1}, PublishedAt: testNow},
		&mention.Mention{ID: "c", TopicKey: "fuel", Embedding: []float64{1, 1, 1}, PublishedAt: testNow},
	)
	store.SeedLinks(
		issue.Link{IssueID: iss.ID, MentionID: "a", TopicKey: "fuel", Similarity: 0.9, LinkedAt: testNow},
		issue.Link{IssueID: iss.ID, MentionID: "b", TopicKey: "fuel", Similarity: 0.3, LinkedAt: testNow},
		issue.Link{IssueID: iss.ID, MentionID: "c", TopicKey: "fuel", Similarity: 1, LinkedAt: testNow},
	)

	got, err := newService(store).RebuildCentroid(context.Background(), iss.ID)
	require.NoError(t, err)
	// (0.9·[1,0] + 0.3·[0,1]) / 1.2; "c" has the wrong dimension.
	assert.InDeltaSlice(t, []float64{0.75, 0.25}, got.Centroid, 1e-9)
}

func TestService_RebuildCentroidWithoutEmbeddings(t *testing.T) {
	store := testutil.NewMemStore()
	iss := seed(t, store, "fuel", 40)

	_, err := newService(store).RebuildCentroid(context.Background(), iss.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCentroidUnavailable))
}
