package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	logger.Info("workspace created")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "workspace created", entry["msg"])
}

func TestLogger_SetLevelPropagatesToChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)
	child := logger.WithField("component", "fanout")

	child.Debug("before")
	assert.Zero(t, buf.Len())

	logger.SetLevel(DebugLevel)
	assert.True(t, child.Enabled(DebugLevel))

	child.Debug("after")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "fanout", entry["component"])
	assert.Equal(t, "after", entry["msg"])
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	assert.Same(t, logger, logger.WithError(nil))

	logger.WithError(errors.New("timeout")).WithFields(map[string]interface{}{
		"project_id": "p1",
	}).Warn("prediction failed")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "timeout", entry["error"])
	assert.Equal(t, "p1", entry["project_id"])
	assert.Equal(t, "prediction failed", entry["msg"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel(" error "))
	assert.Equal(t, InfoLevel, ParseLogLevel("verbose"))
	assert.Equal(t, "WARN", WarnLevel.String())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithWorkspaceID(ctx, "ws-1")

	FromContext(ctx).Info("handled")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "ws-1", entry["workspace_id"])
	assert.NotContains(t, entry, "trace_id")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "ws-1", GetWorkspaceID(ctx))

	t.Run("bare context uses the default logger", func(t *testing.T) {
		assert.Same(t, defaultLogger, FromContext(context.Background()))
	})
}
