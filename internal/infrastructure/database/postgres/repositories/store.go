package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Store implements scope.Transactor on a PostgreSQL pool. Each WithinTx call
// runs in its own read-committed transaction.
type Store struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewStore creates a Store.
func NewStore(conn *postgres.Connection, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Store{conn: conn, log: log.Named("store")}
}

// WithinTx implements scope.Transactor. A panic in fn rolls back and is
// re-raised.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, sc scope.Scope) error) (err error) {
	tx, err := s.conn.DB().BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, newTxScope(s.conn, tx, s.log)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("transaction rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return dbError(err, "failed to commit transaction")
	}
	return nil
}

// HealthCheck pings the pool.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

type txScope struct {
	mentions  *postgresMentionRepo
	issues    *postgresIssueRepo
	sentiment *postgresSentimentRepo
}

func newTxScope(conn *postgres.Connection, tx *sql.Tx, log logging.Logger) *txScope {
	base := baseRepo{conn: conn, tx: tx, log: log}
	return &txScope{
		mentions:  &postgresMentionRepo{baseRepo: base},
		issues:    &postgresIssueRepo{baseRepo: base},
		sentiment: &postgresSentimentRepo{baseRepo: base},
	}
}

func (s *txScope) Mentions() mention.Repository    { return s.mentions }
func (s *txScope) Issues() issue.Repository        { return s.issues }
func (s *txScope) Sentiment() sentiment.Repository { return s.sentiment }

// NewMentionRepository returns a mention repository outside any
// transaction.
func NewMentionRepository(conn *postgres.Connection, log logging.Logger) mention.Repository {
	return &postgresMentionRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

// NewIssueRepository returns an issue repository outside any transaction.
func NewIssueRepository(conn *postgres.Connection, log logging.Logger) issue.Repository {
	return &postgresIssueRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

// NewSentimentRepository returns a sentiment repository outside any
// transaction.
func NewSentimentRepository(conn *postgres.Connection, log logging.Logger) sentiment.Repository {
	return &postgresSentimentRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

var _ scope.Transactor = (*Store)(nil)

func notFound(code errors.ErrorCode, what, id string) error {
	return errors.New(code, fmt.Sprintf("%s not found", what)).WithDetail(id)
}
