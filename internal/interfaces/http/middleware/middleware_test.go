package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := do(r, "/x", HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42", w.Body.String())

	w = do(r, "/x")
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())
}

func TestRequestLogging_Levels(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestID(), RequestLogging(log, LoggingConfig{SkipPaths: []string{"/healthz"}, SlowThreshold: 20 * time.Millisecond}))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/slow", func(c *gin.Context) {
		time.Sleep(30 * time.Millisecond)
		c.Status(http.StatusOK)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, "/ok")
	do(r, "/missing")
	do(r, "/boom")
	do(r, "/slow")
	do(r, "/healthz")

	assert.Equal(t, 1, log.Count("info", "HTTP request completed"))
	assert.True(t, log.HasMessage("warn", "HTTP request completed with client error"))
	assert.True(t, log.HasMessage("error", "HTTP request completed with server error"))
	assert.True(t, log.HasMessage("warn", "HTTP request completed (slow)"))
	assert.Len(t, log.GetMessages(), 4, "skipped paths are not logged")
}

type recorded struct {
	method, path string
	status       int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (f *fakeRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recorded{method, path, status})
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	rec := &fakeRecorder{}
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/issues/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, "/issues/a")
	do(r, "/issues/b")
	do(r, "/nowhere")

	require.Len(t, rec.seen, 3)
	assert.Equal(t, recorded{http.MethodGet, "/issues/:id", http.StatusOK}, rec.seen[0])
	assert.Equal(t, recorded{http.MethodGet, "/issues/:id", http.StatusOK}, rec.seen[1])
	assert.Equal(t, recorded{http.MethodGet, "unmatched", http.StatusNotFound}, rec.seen[2])
}
