package kafka

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func newTestProducer(w WriterInterface) *Producer {
	return newProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}}, testutil.NewMockLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.True(t, errors.IsCode(ValidateProducerConfig(ProducerConfig{}), errors.ErrCodeValidation))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
}

func TestProducerConfigFrom(t *testing.T) {
	cfg := ProducerConfigFrom(config.KafkaConfig{Brokers: []string{"k1:9092"}, MaxRetries: 5, Compression: "lz4"})
	assert.Equal(t, []string{"k1:9092"}, cfg.Brokers)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "all", cfg.Acks)
	assert.Equal(t, kafka.Lz4, compressionCodec(cfg.CompressionCodec))
	assert.Equal(t, kafka.RequireAll, requiredAcks(cfg.Acks))
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "issue.events",
		Key:     []byte("iss-1"),
		Value:   []byte(`{"a":1}`),
		Headers: map[string]string{"event_type": "issue.created"},
	})
	require.NoError(t, err)

	got := w.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "issue.events", got[0].Topic)
	assert.Equal(t, []byte("iss-1"), got[0].Key)
	assert.False(t, got[0].Time.IsZero())
	require.Len(t, got[0].Headers, 1)
	assert.Equal(t, "event_type", got[0].Headers[0].Key)

	sent, failed, bytes := p.Metrics()
	assert.EqualValues(t, 1, sent)
	assert.EqualValues(t, 0, failed)
	assert.EqualValues(t, 7, bytes)
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Value: []byte("x")}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t"}), errors.ErrCodeValidation))

	big := make([]byte, 2*1024*1024)
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big}), errors.ErrCodeValidation))
}

func TestPublish_WriterError(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return stderrors.New("broker down")
	}}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessageQueueError))
	_, failed, _ := p.Metrics()
	assert.EqualValues(t, 1, failed)
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
		return kafka.WriteErrors{nil, stderrors.New("leader not available"), nil}
	}}
	p := newTestProducer(w)

	msgs := []*ProducerMessage{
		{Topic: "t", Value: []byte("1")},
		{Topic: "t", Value: []byte("2")},
		{Topic: "t", Value: []byte("3")},
	}
	res, err := p.PublishBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}

func TestPublishBatch_TotalFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return stderrors.New("timeout")
	}}
	p := newTestProducer(w)

	res, err := p.PublishBatch(context.Background(), []*ProducerMessage{{Topic: "t", Value: []byte("1")}, {Topic: "t", Value: []byte("2")}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, -1, res.Errors[0].Index)
}

func TestPublishBatch_Empty(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	_, err := p.PublishBatch(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
	_, err = p.PublishBatch(context.Background(), []*ProducerMessage{{Topic: "t", Value: []byte("v")}})
	assert.ErrorIs(t, err, ErrProducerClosed)
}
