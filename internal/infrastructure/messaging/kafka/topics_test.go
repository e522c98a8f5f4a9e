package kafka

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func TestEventEnvelope_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	env, err := NewEventEnvelope(EventTypeDetectionRequested, DetectionRequest{TopicKey: "fuel"}, at)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, SourceService, env.Source)
	assert.Equal(t, time.UTC, env.Timestamp.Location())
	env.TraceID = "trace-1"

	msg, err := env.ToMessage(requestTopic, "fuel")
	require.NoError(t, err)
	assert.Equal(t, []byte("fuel"), msg.Key)
	assert.Equal(t, EventTypeDetectionRequested, msg.Headers[HeaderEventType])
	assert.Equal(t, "trace-1", msg.Headers[HeaderTraceID])

	decoded, err := MessageToEventEnvelope(&Message{Value: msg.Value})
	require.NoError(t, err)
	var req DetectionRequest
	require.NoError(t, decoded.DecodePayload(&req))
	assert.Equal(t, "fuel", req.TopicKey)
}

func TestMessageToEventEnvelope_Errors(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{not json")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))

	env := &EventEnvelope{Payload: []byte("null")}
	assert.True(t, errors.IsCode(env.DecodePayload(&DetectionRequest{}), errors.ErrCodeValidation))
}

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	topics := DefaultTopics(config.KafkaConfig{DetectionRequestTopic: requestTopic, DeadLetterTopic: "dlq"})
	require.NoError(t, m.EnsureTopics(context.Background(), topics))
	require.Len(t, conn.created, 3)
	assert.Equal(t, TopicIssueEvents, conn.created[0].Topic)
	assert.Equal(t, requestTopic, conn.created[1].Topic)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)
	assert.Equal(t, "2592000000", conn.created[0].ConfigEntries[0].ConfigValue)
}

func TestTopicManager_CreateTopic(t *testing.T) {
	ctx := context.Background()

	m := &TopicManager{conn: &mockKafkaConn{}, logger: testutil.NewMockLogger()}
	assert.True(t, errors.IsCode(m.CreateTopic(ctx, TopicConfig{}), errors.ErrCodeValidation))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "t"}))

	exists := &TopicManager{conn: &mockKafkaConn{createErr: kafka.TopicAlreadyExists}, logger: testutil.NewMockLogger()}
	assert.NoError(t, exists.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}))

	racing := &TopicManager{
		conn: &mockKafkaConn{
			createErr:  stderrors.New("controller moved"),
			partitions: map[string][]kafka.Partition{"t": {{Topic: "t"}}},
		},
		logger: testutil.NewMockLogger(),
	}
	assert.NoError(t, racing.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}))

	broken := &TopicManager{conn: &mockKafkaConn{createErr: stderrors.New("denied")}, logger: testutil.NewMockLogger()}
	err := broken.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessageQueueError))
}
