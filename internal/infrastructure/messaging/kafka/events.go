package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// EventTypeDetectionRequested is the envelope type of on-demand detection
// requests.
const EventTypeDetectionRequested = "issue.detection.requested"

// BatchPublisher is the part of Producer used by the event publishers.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, msgs []*ProducerMessage) (*BatchPublishResult, error)
}

// IssueEventPublisher delivers issue lifecycle events to TopicIssueEvents.
type IssueEventPublisher struct {
	producer BatchPublisher
	topic    string
}

// NewIssueEventPublisher returns a publisher writing to TopicIssueEvents.
func NewIssueEventPublisher(p BatchPublisher) *IssueEventPublisher {
	return &IssueEventPublisher{producer: p, topic: TopicIssueEvents}
}

var _ issue.EventPublisher = (*IssueEventPublisher)(nil)

// Publish writes one envelope per event, keyed by issue id so every event
// of an issue lands on the same partition in order.
func (p *IssueEventPublisher) Publish(ctx context.Context, events ...issue.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]*ProducerMessage, 0, len(events))
	for _, ev := range events {
		env, err := NewEventEnvelope(string(ev.Type), ev, ev.OccurredAt)
		if err != nil {
			return err
		}
		env.Metadata = map[string]string{"topic_key": ev.TopicKey}
		msg, err := env.ToMessage(p.topic, ev.IssueID)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	res, err := p.producer.PublishBatch(ctx, msgs)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		first := res.Errors[0].Error
		return errors.Wrap(first, errors.ErrCodeMessageQueueError, "failed to publish issue events").
			WithDetail(fmt.Sprintf("%d of %d failed", res.Failed, len(msgs)))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Detection requests
// ─────────────────────────────────────────────────────────────────────────────

// DetectionRequest asks a worker to run detection for one topic.
type DetectionRequest struct {
	TopicKey    string    `json:"topic_key"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// DetectionRequester publishes DetectionRequests.
type DetectionRequester struct {
	producer BatchPublisher
	topic    string
	now      func() time.Time
}

// NewDetectionRequester returns a requester writing to topic.
func NewDetectionRequester(p BatchPublisher, topic string) *DetectionRequester {
	return &DetectionRequester{producer: p, topic: topic, now: time.Now}
}

// Request enqueues a detection run for topicKey and returns the event id.
func (r *DetectionRequester) Request(ctx context.Context, topicKey, requestedBy string) (string, error) {
	if strings.TrimSpace(topicKey) == "" {
		return "", errors.New(errors.ErrCodeTopicRequired, "topic key is required")
	}
	now := r.now()
	env, err := NewEventEnvelope(EventTypeDetectionRequested,
		DetectionRequest{TopicKey: topicKey, RequestedBy: requestedBy, RequestedAt: now}, now)
	if err != nil {
		return "", err
	}
	msg, err := env.ToMessage(r.topic, topicKey)
	if err != nil {
		return "", err
	}
	res, err := r.producer.PublishBatch(ctx, []*ProducerMessage{msg})
	if err != nil {
		return "", err
	}
	if res.Failed > 0 {
		return "", errors.Wrap(res.Errors[0].Error, errors.ErrCodeMessageQueueError, "failed to publish detection request").
			WithDetail(topicKey)
	}
	return env.EventID, nil
}

// TopicRunner runs detection for a single topic. scheduler.Runner satisfies
// it through an adapter in the worker.
type TopicRunner interface {
	RunTopic(ctx context.Context, topicKey string) error
}

// TopicRunnerFunc adapts a function to TopicRunner.
type TopicRunnerFunc func(ctx context.Context, topicKey string) error

// RunTopic calls f.
func (f TopicRunnerFunc) RunTopic(ctx context.Context, topicKey string) error { return f(ctx, topicKey) }

// NewDetectionRequestHandler returns a MessageHandler that decodes a
// DetectionRequest and runs it. A topic already being processed elsewhere
// counts as handled.
func NewDetectionRequestHandler(runner TopicRunner, log logging.Logger) MessageHandler {
	log = log.Named("detection.requests")
	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		if env.EventType != EventTypeDetectionRequested {
			log.Warn("ignoring unexpected event type", logging.String("event_type", env.EventType))
			return nil
		}
		var req DetectionRequest
		if err := env.DecodePayload(&req); err != nil {
			return err
		}
		if req.TopicKey == "" {
			return errors.New(errors.ErrCodeTopicRequired, "detection request without topic key").WithDetail(env.EventID)
		}

		err = runner.RunTopic(ctx, req.TopicKey)
		switch {
		case err == nil:
			log.Info("detection request processed",
				logging.String("event_id", env.EventID),
				logging.String("topic", req.TopicKey))
			return nil
		case errors.IsCode(err, errors.ErrCodeTopicBusy):
			log.Info("detection request skipped: topic busy", logging.String("topic", req.TopicKey))
			return nil
		default:
			return err
		}
	}
}
