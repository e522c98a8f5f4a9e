//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/Issue-Intelligence/internal/application/detection"
	"github.com/turtacn/Issue-Intelligence/internal/application/scope"
	"github.com/turtacn/Issue-Intelligence/internal/config"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
)

// startPostgres launches a PostgreSQL 16 container, applies the embedded
// migrations and returns the engine store plus a pgx pool for assertions.
func startPostgres(t *testing.T) (*repositories.Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "issues_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{Host: host, Port: port.Int(), User: "test", Password: "test", DBName: "issues_test"}
	log := logging.NewNopLogger()

	require.NoError(t, postgres.NewMigrator(postgres.BuildDSN(cfg), log).Up())

	conn, err := postgres.NewConnection(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgres://test:test@%s:%s/issues_test?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return repositories.NewStore(conn, log), pool
}

func seedMention(t *testing.T, pool *pgxpool.Pool, id, topic string, embedding []float64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		INSERT INTO mentions (id, text, sentiment_label, sentiment_score, influence_weight, source, region, published_at)
		VALUES ($1, $2, 'negative', -0.5, 1, 'twitter', 'downtown', $3)`, id, "Fuel shortage downtown "+id, at)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO mention_topics (mention_id, topic_key, confidence) VALUES ($1, $2, 0.9)`, id, topic)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO mention_analyses (mention_id, embedding) VALUES ($1, $2)`, id, embedding)
	require.NoError(t, err)
}

func TestStore_DetectionRoundTrip(t *testing.T) {
	store, pool := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	vectors := [][]float64{{1, 0.1, 0}, {1, 0, 0.1}, {0.95, 0.05, 0.05}}
	for i, v := range vectors {
		seedMention(t, pool, fmt.Sprintf("m%d", i), "fuel", v, now.Add(-2*time.Hour+time.Duration(i)*30*time.Minute))
	}

	cfg := detection.DefaultConfig()
	cfg.Clustering.EmbeddingDim = 3
	det := detection.NewDetector(cfg, logging.NewNopLogger(), detection.WithClock(func() time.Time { return now }))

	var res *detection.Result
	err := store.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		res, err = det.DetectTopic(ctx, sc, "fuel")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 3, res.Linked)

	var (
		state string
		count int
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT state, mention_count FROM issues WHERE topic_key = 'fuel'`).Scan(&state, &count))
	assert.Equal(t, "emerging", state)
	assert.Equal(t, 3, count)

	var links int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM issue_mentions`).Scan(&links))
	assert.Equal(t, 3, links)

	// A second run finds nothing unlinked and links nothing twice.
	err = store.WithinTx(ctx, func(ctx context.Context, sc scope.Scope) error {
		var err error
		res, err = det.DetectTopic(ctx, sc, "fuel")
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM issue_mentions`).Scan(&links))
	assert.Equal(t, 3, links)

	var pkColumns string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT string_agg(a.attname, ',' ORDER BY array_position(i.indkey::int2[], a.attnum))
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = 'issue_mentions'::regclass AND i.indisprimary`).Scan(&pkColumns))
	assert.Equal(t, "issue_id,mention_id", pkColumns)
}

func TestMigrator_StatusAndRollback(t *testing.T) {
	_, pool := startPostgres(t)
	ctx := context.Background()
	cfg := pool.Config().ConnConfig
	dsn := postgres.BuildDSN(config.DatabaseConfig{Host: cfg.Host, Port: int(cfg.Port), User: cfg.User, Password: cfg.Password, DBName: cfg.Database})
	m := postgres.NewMigrator(dsn, nil)

	status, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(3), status.Version)
	assert.False(t, status.Dirty)

	require.NoError(t, m.Down(1))
	var exists bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('public.sentiment_trends') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists)

	require.NoError(t, m.Up())
	status, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(3), status.Version)
}
