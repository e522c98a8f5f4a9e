package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    bool
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed = true
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func (m *mockKafkaWriter) messages() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.written...)
}

// mockKafkaReader serves queued messages and then blocks until the context
// ends.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	fetchErr  error
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if m.fetchErr != nil {
		err := m.fetchErr
		m.fetchErr = nil
		m.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockKafkaReader) Stats() kafka.ReaderStats { return kafka.ReaderStats{} }

func (m *mockKafkaReader) commitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type mockDeadLetter struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (m *mockDeadLetter) Publish(_ context.Context, msg *ProducerMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockDeadLetter) Close() error { return nil }

func (m *mockDeadLetter) published() []*ProducerMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ProducerMessage(nil), m.msgs...)
}

type mockKafkaConn struct {
	createErr  error
	created    []kafka.TopicConfig
	partitions map[string][]kafka.Partition
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	var out []kafka.Partition
	for _, t := range topics {
		out = append(out, m.partitions[t]...)
	}
	return out, nil
}

func (m *mockKafkaConn) Close() error { return nil }
