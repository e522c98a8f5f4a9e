package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// Header keys stamped on dead-lettered messages.
const (
	HeaderOriginalTopic = "original_topic"
	HeaderErrorMessage  = "error_message"
	HeaderAttempts      = "attempts"
)

// RetryConfig defines retry behaviour of a failed handler.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	AutoOffsetReset   string // "earliest" | "latest"
	CommitInterval    time.Duration
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxWait           time.Duration
	FetchMinBytes     int
	FetchMaxBytes     int
	FetchErrorBackoff time.Duration
	RetryConfig       RetryConfig
}

// ConsumerConfigFrom maps the kafka section of the application config onto
// a consumer of the detection request topic.
func ConsumerConfigFrom(c config.KafkaConfig) ConsumerConfig {
	return ConsumerConfig{
		Brokers: c.Brokers,
		GroupID: c.GroupID,
		Topics:  []string{c.DetectionRequestTopic},
		RetryConfig: RetryConfig{
			MaxRetries:      c.MaxRetries,
			RetryBackoff:    c.RetryBackoff,
			DeadLetterTopic: c.DeadLetterTopic,
		},
	}
}

// ConsumerMetrics holds consumer counters.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
	Lag                  atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// deadLetterWriter is the part of Producer the consumer needs.
type deadLetterWriter interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
	Close() error
}

// Consumer reads a consumer group and dispatches each message to the handler
// registered for its topic. Offsets are committed after the handler succeeds
// or the message has been dead-lettered, so delivery is at least once.
type Consumer struct {
	reader ReaderInterface
	config ConsumerConfig
	logger logging.Logger

	handlers map[string]MessageHandler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	deadLetter deadLetterWriter
	metrics    *ConsumerMetrics
}

// NewConsumer creates a Consumer backed by a kafka.Reader. When a dead
// letter topic is configured a Producer is created for it.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	cfg = withConsumerDefaults(cfg)

	readerCfg := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       cfg.Topics,
		MinBytes:          cfg.FetchMinBytes,
		MaxBytes:          cfg.FetchMaxBytes,
		MaxWait:           cfg.MaxWait,
		CommitInterval:    cfg.CommitInterval,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StartOffset:       kafka.FirstOffset,
		Dialer:            &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	var dl deadLetterWriter
	if cfg.RetryConfig.DeadLetterTopic != "" {
		p, err := NewProducer(ProducerConfig{Brokers: cfg.Brokers}, logger)
		if err != nil {
			return nil, err
		}
		dl = p
	}
	return newConsumerWithReader(kafka.NewReader(readerCfg), dl, cfg, logger), nil
}

func newConsumerWithReader(r ReaderInterface, dl deadLetterWriter, cfg ConsumerConfig, logger logging.Logger) *Consumer {
	return &Consumer{
		reader:     r,
		config:     withConsumerDefaults(cfg),
		logger:     logger.Named("kafka.consumer"),
		handlers:   make(map[string]MessageHandler),
		deadLetter: dl,
		metrics:    &ConsumerMetrics{},
	}
}

func withConsumerDefaults(cfg ConsumerConfig) ConsumerConfig {
	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 3 * time.Second
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 10 * time.Second
	}
	if cfg.FetchMinBytes == 0 {
		cfg.FetchMinBytes = 1
	}
	if cfg.FetchMaxBytes == 0 {
		cfg.FetchMaxBytes = 10 * 1024 * 1024
	}
	if cfg.FetchErrorBackoff == 0 {
		cfg.FetchErrorBackoff = time.Second
	}
	if cfg.RetryConfig.RetryBackoff == 0 {
		cfg.RetryConfig.RetryBackoff = time.Second
	}
	if cfg.RetryConfig.MaxRetryBackoff == 0 {
		cfg.RetryConfig.MaxRetryBackoff = 30 * time.Second
	}
	return cfg
}

// Subscribe registers handler for topic, replacing any previous one.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("subscribed to topic", logging.String("topic", topic))
}

// Start launches the consume loop. It returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("kafka consumer started", logging.String("group", c.config.GroupID))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for ctx.Err() == nil {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch message failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.config.FetchErrorBackoff):
			}
			continue
		}
		c.handle(ctx, m)
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	c.metrics.MessagesConsumed.Add(1)
	c.metrics.Lag.Store(m.HighWaterMark - m.Offset)

	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}

	c.mu.RLock()
	handler, ok := c.handlers[m.Topic]
	c.mu.RUnlock()

	switch {
	case !ok:
		c.logger.Warn("no handler for topic", logging.String("topic", m.Topic))
	case c.process(ctx, msg, handler) == nil:
		c.metrics.MessagesProcessed.Add(1)
	default:
		c.metrics.MessagesFailed.Add(1)
		if ctx.Err() != nil {
			// Leave the offset uncommitted so the message is redelivered.
			return
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Error("commit failed",
			logging.String("topic", m.Topic),
			logging.Int64("offset", m.Offset),
			logging.Err(err))
	}
}

// process runs handler with exponential backoff. When retries are exhausted
// the message is dead-lettered and the handler error is returned.
func (c *Consumer) process(ctx context.Context, msg *Message, handler MessageHandler) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}

	rc := c.config.RetryConfig
	backoff := rc.RetryBackoff
	attempts := 1
	for i := 0; i < rc.MaxRetries; i++ {
		c.metrics.MessagesRetried.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		attempts++
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		backoff *= 2
		if backoff > rc.MaxRetryBackoff {
			backoff = rc.MaxRetryBackoff
		}
	}

	c.logger.Error("message processing failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("attempts", attempts),
		logging.Err(err))

	if c.deadLetter != nil && rc.DeadLetterTopic != "" {
		headers := make(map[string]string, len(msg.Headers)+3)
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers[HeaderOriginalTopic] = msg.Topic
		headers[HeaderErrorMessage] = err.Error()
		headers[HeaderAttempts] = strconv.Itoa(attempts)

		dl := &ProducerMessage{Topic: rc.DeadLetterTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
		if dlErr := c.deadLetter.Publish(ctx, dl); dlErr != nil {
			c.logger.Error("failed to send to dead letter topic", logging.Err(dlErr))
		} else {
			c.metrics.MessagesDeadLettered.Add(1)
		}
	}
	return err
}

// Metrics returns processed, failed and dead-lettered counts.
func (c *Consumer) Metrics() (processed, failed, deadLettered int64) {
	return c.metrics.MessagesProcessed.Load(), c.metrics.MessagesFailed.Load(), c.metrics.MessagesDeadLettered.Load()
}

// Close stops the loop, waits for the in-flight message and closes the
// reader and dead letter producer.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := c.reader.Close()
	if c.deadLetter != nil {
		if dlErr := c.deadLetter.Close(); dlErr != nil && err == nil {
			err = dlErr
		}
	}
	c.logger.Info("kafka consumer closed",
		logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	return err
}

// ValidateConsumerConfig rejects configurations the reader cannot use.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "group id required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.New(errors.ErrCodeValidation, "invalid auto offset reset")
	}
	if cfg.RetryConfig.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max retries must be >= 0")
	}
	return nil
}
