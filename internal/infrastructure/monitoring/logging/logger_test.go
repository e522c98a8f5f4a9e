package logging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), buf, zapcore.DebugLevel)
	return NewLoggerFromCore(core), buf
}

func decodeLines(t *testing.T, buf *zaptest.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range buf.Lines() {
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/sub/app.log"}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestLogger_TypedFields(t *testing.T) {
	l, buf := newTestLogger(t)

	l.Info("detection finished",
		String("topic", "fuel"),
		Int("clusters", 3),
		Int64("mentions", 42),
		Float64("threshold", 0.75),
		Bool("created", true),
		Duration("elapsed", 1500*time.Millisecond),
		Strings("keywords", []string{"price", "subsidy"}),
		Err(errors.New("boom")),
	)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "detection finished", e["msg"])
	assert.Equal(t, "fuel", e["topic"])
	assert.EqualValues(t, 3, e["clusters"])
	assert.EqualValues(t, 42, e["mentions"])
	assert.Equal(t, 0.75, e["threshold"])
	assert.Equal(t, true, e["created"])
	assert.Equal(t, "boom", e["error"])
	assert.Len(t, e["keywords"], 2)
}

func TestLogger_ErrNil(t *testing.T) {
	assert.Equal(t, "<nil>", Err(nil).Value)
}

func TestLogger_WithAndNamed(t *testing.T) {
	l, buf := newTestLogger(t)

	child := l.Named("detector").With(String("topic", "fuel"))
	child.Warn("cluster skipped", Int("size", 4))
	l.Debug("parent entry")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "detector", entries[0]["logger"])
	assert.Equal(t, "fuel", entries[0]["topic"])
	assert.Equal(t, "warn", entries[0]["level"])
	_, hasTopic := entries[1]["topic"]
	assert.False(t, hasTopic)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestSetLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info"})
	require.NoError(t, err)

	zl := l.(*zapLogger)
	assert.False(t, zl.z.Core().Enabled(zapcore.DebugLevel))

	assert.True(t, SetLevel(l.Named("child"), "debug"))
	assert.True(t, zl.z.Core().Enabled(zapcore.DebugLevel))

	assert.False(t, SetLevel(NewNopLogger(), "debug"))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("ignored", String("k", "v"))
	assert.Equal(t, l, l.With(Int("n", 1)))
	assert.Equal(t, l, l.Named("x"))
	assert.NoError(t, Sync(l))
}

func TestDefault(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(original) })

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}
