package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_WithSharesBuffer(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.With(logging.String("topic", "fuel"))

	child.Warn("skipped")
	child.Warn("skipped")

	assert.Equal(t, 2, logger.Count("warn", "skipped"))
	msgs := logger.GetMessages()
	assert.Equal(t, "topic", msgs[0].Fields[0].Key)
}
