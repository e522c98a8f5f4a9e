package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/application/aggregation"
	"github.com/turtacn/Issue-Intelligence/internal/application/issues"
	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
)

type countingRecorder struct {
	routes []string
}

func (c *countingRecorder) RecordHTTPRequest(_, path string, _ int, _ time.Duration) {
	c.routes = append(c.routes, path)
}

type stubRequester struct{}

func (stubRequester) Request(_ context.Context, topic, _ string) (string, error) {
	return "req-" + topic, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *testutil.MemStore, *countingRecorder) {
	t.Helper()
	store := testutil.NewMemStore()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store.SeedIssue(&issue.Issue{
		ID: "iss-1", Slug: "battery-swelling", Label: "Battery swelling",
		TopicKey: "acme", State: issue.StateActive, IsActive: true,
		StartTime: now.Add(-time.Hour), LastActivity: now, MentionCount: 3,
	})

	svc := issues.NewService(store, issues.Config{Lifecycle: issue.DefaultLifecycleConfig()}, logging.NewNopLogger())
	reader := aggregation.NewReader(store, nil, nil)
	rec := &countingRecorder{}

	r := NewRouter(RouterConfig{
		IssueHandler:     handlers.NewIssueHandler(svc),
		SentimentHandler: handlers.NewSentimentHandler(reader),
		DetectionHandler: handlers.NewDetectionHandler(stubRequester{}),
		HealthHandler:    handlers.NewHealthHandler("test", nil),
		Logger:           testutil.NewMockLogger(),
		Logging:          middleware.DefaultLoggingConfig(),
		Recorder:         rec,
		MetricsHandler:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
		Mode: gin.TestMode,
	})
	return r, store, rec
}

func TestRouter_Routes(t *testing.T) {
	r, _, rec := newTestRouter(t)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/issues", http.StatusOK},
		{http.MethodGet, "/api/v1/issues/iss-1", http.StatusOK},
		{http.MethodGet, "/api/v1/issues/nope", http.StatusNotFound},
		{http.MethodGet, "/api/v1/issues/iss-1/transitions", http.StatusOK},
		{http.MethodGet, "/api/v1/topics/acme/baseline", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/v1/topics/acme/detect", http.StatusAccepted},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
	assert.Contains(t, rec.routes, "/api/v1/issues/:id")
	assert.Contains(t, rec.routes, "unmatched")
}

func TestRouter_ArchiveFlow(t *testing.T) {
	r, store, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/issues/iss-1/archive", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	all := store.AllIssues()
	require.Len(t, all, 1)
	assert.True(t, all[0].IsArchived)
	assert.Equal(t, issue.StateArchived, all[0].State)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/issues", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`, "archived issues are hidden by default")
}

func TestRouter_NilHandlersAreNotMounted(t *testing.T) {
	r := NewRouter(RouterConfig{Mode: gin.TestMode})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/issues", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
