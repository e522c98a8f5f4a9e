// Package scope defines the transactional unit of work every detection and
// aggregation operation runs in. The caller opens the scope and owns commit
// and rollback; operations never open one implicitly.
package scope

import (
	"context"

	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
)

// Scope exposes the repositories bound to one store session.
type Scope interface {
	Mentions() mention.Repository
	Issues() issue.Repository
	Sentiment() sentiment.Repository
}

// Transactor runs fn inside a transaction. fn's error rolls the transaction
// back and is returned; a nil error commits.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Scope) error) error
}

// TxFunc adapts a function to Transactor.
type TxFunc func(ctx context.Context, fn func(ctx context.Context, s Scope) error) error

// WithinTx calls f.
func (f TxFunc) WithinTx(ctx context.Context, fn func(ctx context.Context, s Scope) error) error {
	return f(ctx, fn)
}
