// Package issues serves reads and administrative actions on issues. Every
// call runs in its own transaction.
package issues

import (
	"context"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Config holds the service parameters.
type Config struct {
	Lifecycle    issue.LifecycleConfig
	EmbeddingDim int
}

// Service implements issue queries and archive/rebuild actions.
type Service struct {
	tx        scope.Transactor
	states    *issue.StateMachine
	dim       int
	publisher issue.EventPublisher
	now       func() time.Time
	log       logging.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher publishes archive events after commit.
func WithPublisher(p issue.EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a Service.
func NewService(tx scope.Transactor, cfg Config, log logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &Service{
		tx:     tx,
		states: issue.NewStateMachine(cfg.Lifecycle),
		dim:    cfg.EmbeddingDim,
		now:    time.Now,
		log:    log.Named("issues"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns a page of issues ordered by priority, and the total count.
func (s *Service) List(ctx context.Context, opts ...issue.ListOption) ([]*issue.Issue, int64, error) {
	var (
		out   []*issue.Issue
		total int64
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		out, total, err = sc.Issues().List(ctx, opts...)
		return err
	})
	return out, total, err
}

// Get returns one issue.
func (s *Service) Get(ctx context.Context, id string) (*issue.Issue, error) {
	if id == "" {
		return nil, errors.InvalidParam("issue id cannot be empty")
	}
	var out *issue.Issue
	err := s.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		out, err = sc.Issues().FindByID(ctx, id)
		return err
	})
	return out, err
}

// Transitions returns the state history of an issue, oldest first.
func (s *Service) Transitions(ctx context.Context, id string) ([]*issue.StateTransition, error) {
	var out []*issue.StateTransition
	err := s.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		if _, err := sc.Issues().FindByID(ctx, id); err != nil {
			return err
		}
		var err error
		out, err = sc.Issues().ListTransitions(ctx, id)
		return err
	})
	return out, err
}

// Archive moves an issue to the archived state. Archived issues are never
// transitioned automatically again.
func (s *Service) Archive(ctx context.Context, id, reason string) (*issue.Issue, error) {
	var (
		out    *issue.Issue
		events []issue.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		iss, err := sc.Issues().FindByID(ctx, id)
		if err != nil {
			return err
		}
		tr, err := s.states.Archive(iss, reason, s.now())
		if err != nil {
			return err
		}
		if err := sc.Issues().RecordTransition(ctx, tr); err != nil {
			return errors.Wrap(err, errors.CodeUnknown, "failed to record state transition")
		}
		if err := sc.Issues().Update(ctx, iss); err != nil {
			return errors.Wrap(err, errors.CodeUnknown, "failed to archive issue")
		}
		out = iss
		events = issue.EventsForTransition(iss, tr)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("issue archived", logging.String("issue_id", id), logging.String("reason", out.StateReason))
	s.publish(ctx, events)
	return out, nil
}

// RebuildCentroid recomputes the cached centroid as the similarity-weighted
// mean of every linked embedding. Issues whose mentions have no usable
// embedding get ErrCodeCentroidUnavailable.
func (s *Service) RebuildCentroid(ctx context.Context, id string) (*issue.Issue, error) {
	var out *issue.Issue
	err := s.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		iss, err := sc.Issues().FindByID(ctx, id)
		if err != nil {
			return err
		}
		links, err := sc.Mentions().EmbeddingsByIssue(ctx, id, 0)
		if err != nil {
			return errors.Wrap(err, errors.CodeUnknown, "failed to load linked embeddings")
		}
		centroid, used, err := issue.LinkedCentroid(links, s.dim)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCentroidUnavailable, "issue has no usable embeddings").WithDetail(id)
		}

		iss.Centroid = centroid
		iss.UpdatedAt = s.now()
		if err := sc.Issues().Update(ctx, iss); err != nil {
			return errors.Wrap(err, errors.CodeUnknown, "failed to store centroid")
		}
		out = iss

		s.log.Info("centroid rebuilt",
			logging.String("issue_id", id),
			logging.Int("embeddings", used),
			logging.Int("skipped", len(links)-used),
		)
		return nil
	})
	return out, err
}

func (s *Service) publish(ctx context.Context, events []issue.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.log.Warn("failed to publish issue events", logging.Int("events", len(events)), logging.Err(err))
	}
}
