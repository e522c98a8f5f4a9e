package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency that can report its health.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc struct {
	Component string
	Fn        func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.Component }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// HealthReporter receives the result of each readiness check.
type HealthReporter interface {
	SetHealth(component string, up bool)
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	checkers []HealthChecker
	reporter HealthReporter
	version  string
	startAt  time.Time
	timeout  time.Duration
}

// NewHealthHandler creates a HealthHandler. reporter may be nil.
func NewHealthHandler(version string, reporter HealthReporter, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		reporter: reporter,
		version:  version,
		startAt:  time.Now(),
		timeout:  5 * time.Second,
	}
}

// ComponentCheck is the health of one dependency.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Liveness handles GET /healthz. It never touches dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"version": h.version,
		"uptime":  time.Since(h.startAt).Truncate(time.Second).String(),
	})
}

// Readiness handles GET /readyz: 200 when every dependency is healthy,
// 503 otherwise.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	components := h.checkAll(ctx)
	status, code := "ready", http.StatusOK
	for _, cc := range components {
		if cc.Status != "healthy" {
			status, code = "not_ready", http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}

func (h *HealthHandler) checkAll(ctx context.Context) map[string]ComponentCheck {
	results := make(map[string]ComponentCheck, len(h.checkers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, checker := range h.checkers {
		wg.Add(1)
		go func(hc HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := hc.Check(ctx)
			cc := ComponentCheck{Status: "healthy", Latency: time.Since(start).Truncate(time.Microsecond).String()}
			if err != nil {
				cc.Status = "unhealthy"
				cc.Error = err.Error()
			}
			if h.reporter != nil {
				h.reporter.SetHealth(hc.Name(), err == nil)
			}
			mu.Lock()
			results[hc.Name()] = cc
			mu.Unlock()
		}(checker)
	}
	wg.Wait()
	return results
}
