package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func TestIssueEventPublisher_KeysByIssue(t *testing.T) {
	w := &mockKafkaWriter{}
	pub := NewIssueEventPublisher(newTestProducer(w))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := pub.Publish(context.Background(),
		issue.Event{Type: issue.EventCreated, IssueID: "iss-1", TopicKey: "fuel", To: issue.StateEmerging, OccurredAt: at},
		issue.Event{Type: issue.EventEscalated, IssueID: "iss-2", TopicKey: "fuel", From: issue.StateActive, To: issue.StateEscalated, OccurredAt: at},
	)
	require.NoError(t, err)

	got := w.messages()
	require.Len(t, got, 2)
	assert.Equal(t, TopicIssueEvents, got[0].Topic)
	assert.Equal(t, []byte("iss-1"), got[0].Key)
	assert.Equal(t, []byte("iss-2"), got[1].Key)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(got[1].Value, &env))
	assert.Equal(t, string(issue.EventEscalated), env.EventType)
	assert.Equal(t, "fuel", env.Metadata["topic_key"])
	assert.True(t, env.Timestamp.Equal(at))

	var ev issue.Event
	require.NoError(t, env.DecodePayload(&ev))
	assert.Equal(t, issue.StateEscalated, ev.To)
	assert.Equal(t, issue.StateActive, ev.From)
}

func TestIssueEventPublisher_NoEvents(t *testing.T) {
	w := &mockKafkaWriter{}
	require.NoError(t, NewIssueEventPublisher(newTestProducer(w)).Publish(context.Background()))
	assert.Empty(t, w.messages())
}

func TestIssueEventPublisher_PartialFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return kafka.WriteErrors{stderrors.New("leader not available")}
	}}
	err := NewIssueEventPublisher(newTestProducer(w)).Publish(context.Background(),
		issue.Event{Type: issue.EventCreated, IssueID: "iss-1", OccurredAt: time.Now()})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessageQueueError))
}

func TestDetectionRequester_Request(t *testing.T) {
	w := &mockKafkaWriter{}
	req := NewDetectionRequester(newTestProducer(w), requestTopic)
	req.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	id, err := req.Request(context.Background(), "fuel", "ops@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got := w.messages()
	require.Len(t, got, 1)
	assert.Equal(t, requestTopic, got[0].Topic)
	assert.Equal(t, []byte("fuel"), got[0].Key)

	_, err = req.Request(context.Background(), "  ", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTopicRequired))
}

func requestMessage(t *testing.T, eventType string, payload interface{}) *Message {
	t.Helper()
	env, err := NewEventEnvelope(eventType, payload, time.Now())
	require.NoError(t, err)
	pm, err := env.ToMessage(requestTopic, "k")
	require.NoError(t, err)
	return &Message{Topic: requestTopic, Value: pm.Value}
}

func TestDetectionRequestHandler(t *testing.T) {
	var ran []string
	runErr := map[string]error{
		"busy":   errors.New(errors.ErrCodeTopicBusy, "topic is locked"),
		"broken": errors.New(errors.ErrCodeDatabaseError, "store down"),
	}
	runner := TopicRunnerFunc(func(_ context.Context, topic string) error {
		ran = append(ran, topic)
		return runErr[topic]
	})
	log := testutil.NewMockLogger()
	h := NewDetectionRequestHandler(runner, log)
	ctx := context.Background()

	require.NoError(t, h(ctx, requestMessage(t, EventTypeDetectionRequested, DetectionRequest{TopicKey: "fuel"})))
	assert.True(t, log.HasMessage("info", "detection request processed"))

	require.NoError(t, h(ctx, requestMessage(t, EventTypeDetectionRequested, DetectionRequest{TopicKey: "busy"})))
	assert.True(t, log.HasMessage("info", "detection request skipped: topic busy"))

	err := h(ctx, requestMessage(t, EventTypeDetectionRequested, DetectionRequest{TopicKey: "broken"}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))

	err = h(ctx, requestMessage(t, EventTypeDetectionRequested, DetectionRequest{}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeTopicRequired))

	require.NoError(t, h(ctx, requestMessage(t, string(issue.EventCreated), issue.Event{})))
	assert.True(t, log.HasMessage("warn", "ignoring unexpected event type"))

	assert.Error(t, h(ctx, &Message{Value: []byte("garbage")}))
	assert.Equal(t, []string{"fuel", "busy", "broken"}, ran)
}
