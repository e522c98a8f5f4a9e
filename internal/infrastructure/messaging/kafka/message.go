// Package kafka carries issue lifecycle events out of the engine and
// on-demand detection requests into it, on top of segmentio/kafka-go.
package kafka

import (
	"context"
	"time"
)

// Message is a record read from a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to be written. A zero Timestamp is stamped at
// write time.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Partition int
}

// MessageHandler processes one consumed message. A non-nil error triggers
// the retry policy of the consumer.
type MessageHandler func(ctx context.Context, msg *Message) error

// BatchItemError describes one failed record of a batch. Index is -1 when
// the whole batch failed.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

// BatchPublishResult summarises a PublishBatch call.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}

// TopicConfig describes a topic to provision.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	MaxMessageBytes   int
	Configs           map[string]string
}
