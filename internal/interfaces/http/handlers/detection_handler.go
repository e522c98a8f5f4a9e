package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// DetectionRequester enqueues an on-demand detection run.
type DetectionRequester interface {
	Request(ctx context.Context, topicKey, requestedBy string) (string, error)
}

// DetectionHandler serves POST /topics/:topic/detect.
type DetectionHandler struct {
	requester DetectionRequester
}

// NewDetectionHandler creates a DetectionHandler. A nil requester makes the
// endpoint answer 503.
func NewDetectionHandler(r DetectionRequester) *DetectionHandler {
	return &DetectionHandler{requester: r}
}

// Trigger enqueues a run and answers 202 with the request id.
func (h *DetectionHandler) Trigger(c *gin.Context) {
	if h.requester == nil {
		writeAppError(c, errors.New(errors.ErrCodeServiceUnavailable, "detection requests are disabled"))
		return
	}
	topic := c.Param("topic")
	id, err := h.requester.Request(c.Request.Context(), topic, c.GetHeader("X-Requested-By"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": id, "topic_key": topic})
}
