package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Issue-Intelligence/internal/application/aggregation"
	"github.com/turtacn/Issue-Intelligence/internal/domain/sentiment"
)

// SentimentReader is the application surface the sentiment endpoints need.
type SentimentReader interface {
	Snapshot(ctx context.Context, typ sentiment.AggregationType, key string, w sentiment.Window) (*aggregation.Snapshot, error)
	List(ctx context.Context, typ sentiment.AggregationType, key string) ([]*sentiment.Aggregation, error)
	Baseline(ctx context.Context, topicKey string) (*sentiment.Baseline, error)
}

// SentimentHandler serves stored aggregations, trends and baselines.
type SentimentHandler struct {
	reader SentimentReader
}

// NewSentimentHandler creates a SentimentHandler.
func NewSentimentHandler(r SentimentReader) *SentimentHandler {
	return &SentimentHandler{reader: r}
}

// List handles GET /sentiment/:type/:key.
func (h *SentimentHandler) List(c *gin.Context) {
	typ, err := sentiment.ParseType(c.Param("type"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	aggs, err := h.reader.List(c.Request.Context(), typ, c.Param("key"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	if aggs == nil {
		aggs = []*sentiment.Aggregation{}
	}
	c.JSON(http.StatusOK, gin.H{"items": aggs})
}

// Snapshot handles GET /sentiment/:type/:key/:window.
func (h *SentimentHandler) Snapshot(c *gin.Context) {
	typ, err := sentiment.ParseType(c.Param("type"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	w, err := sentiment.ParseWindow(c.Param("window"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	snap, err := h.reader.Snapshot(c.Request.Context(), typ, c.Param("key"), w)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Baseline handles GET /topics/:topic/baseline.
func (h *SentimentHandler) Baseline(c *gin.Context) {
	base, err := h.reader.Baseline(c.Request.Context(), c.Param("topic"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, base)
}
