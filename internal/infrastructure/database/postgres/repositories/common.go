// Package repositories implements the mention, issue and sentiment
// repositories on PostgreSQL, and the Store that binds them to one
// transaction.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/lib/pq"

	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

type baseRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

func (r *baseRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func dbError(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.ErrCodeDatabaseError, message)
}

// marshalJSON encodes v for a JSONB column; nil maps become '{}'.
func marshalJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return []byte("{}")
	}
	return b
}

func unmarshalFloatMap(raw []byte) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]float64
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// float64Array passes nil through as SQL NULL.
func float64Array(v []float64) interface{} {
	if v == nil {
		return nil
	}
	return pq.Float64Array(v)
}

func stringArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}
