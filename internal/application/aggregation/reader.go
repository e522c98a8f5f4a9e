package aggregation

import (
	"context"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Reader runs the read and refresh operations of the aggregation services
// in their own transactions, for callers that do not hold a scope.
type Reader struct {
	tx        scope.Transactor
	svc       *Service
	baselines *BaselineService
}

// NewReader creates a Reader. baselines may be nil.
func NewReader(tx scope.Transactor, svc *Service, baselines *BaselineService) *Reader {
	return &Reader{tx: tx, svc: svc, baselines: baselines}
}

// Snapshot returns the stored aggregation and trend of (typ, key, w).
func (r *Reader) Snapshot(ctx context.Context, typ sentiment.AggregationType, key string, w sentiment.Window) (*Snapshot, error) {
	var out *Snapshot
	err := r.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		out, err = r.svc.Snapshot(ctx, sc, typ, key, w)
		return err
	})
	return out, err
}

// List returns every stored window of (typ, key).
func (r *Reader) List(ctx context.Context, typ sentiment.AggregationType, key string) ([]*sentiment.Aggregation, error) {
	var out []*sentiment.Aggregation
	err := r.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		out, err = r.svc.List(ctx, sc, typ, key)
		return err
	})
	return out, err
}

// Aggregate recomputes and stores windows of (typ, key). An empty windows
// slice means every configured window.
func (r *Reader) Aggregate(ctx context.Context, typ sentiment.AggregationType, key string, windows []sentiment.Window) ([]*sentiment.Aggregation, error) {
	var out []*sentiment.Aggregation
	err := r.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		if len(windows) == 0 {
			out, err = r.svc.AggregateAll(ctx, sc, typ, key)
		} else {
			out, err = r.svc.AggregateWindows(ctx, sc, typ, key, windows)
		}
		return err
	})
	return out, err
}

// Baseline returns the stored baseline of topicKey. A topic without one
// yields ErrCodeBaselineNotFound.
func (r *Reader) Baseline(ctx context.Context, topicKey string) (*sentiment.Baseline, error) {
	if r.baselines == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "baselines are not configured")
	}
	var out *sentiment.Baseline
	err := r.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		out, err = r.baselines.Lookup(ctx, sc, topicKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New(errors.ErrCodeBaselineNotFound, "topic has no baseline").WithDetail(topicKey)
	}
	return out, nil
}

// RefreshBaseline recomputes the baseline of topicKey. When topicKey is
// empty every topic is refreshed. It returns how many baselines were
// written.
func (r *Reader) RefreshBaseline(ctx context.Context, topicKey string) (int, error) {
	if r.baselines == nil {
		return 0, errors.New(errors.ErrCodeServiceUnavailable, "baselines are not configured")
	}
	n := 0
	err := r.tx.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		if topicKey == "" {
			var err error
			n, err = r.baselines.RefreshAll(ctx, sc)
			return err
		}
		base, err := r.baselines.Refresh(ctx, sc, topicKey)
		if err != nil {
			return err
		}
		if base != nil {
			n = 1
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if topicKey == "" {
		r.baselines.InvalidateAll(ctx)
	} else {
		r.baselines.Invalidate(ctx, topicKey)
	}
	return n, nil
}
