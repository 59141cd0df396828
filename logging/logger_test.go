package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level LogLevel) (*SidekickLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: level, Format: "json", Output: &buf})
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	return lines
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelInfo, ParseLevel("info"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warn"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn message", lines[0]["msg"])
	assert.Equal(t, "error message", lines[1]["msg"])
}

func TestContextualFields(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.WithComponent("flow").WithSession("abc").WithContext("turn", 2).Info("hello")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "flow", lines[0]["component"])
	assert.Equal(t, "abc", lines[0]["session_id"])
	assert.Equal(t, float64(2), lines[0]["turn"])

	// The receiver is unchanged; With* methods return clones.
	buf.Reset()
	logger.Info("plain")
	lines = decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "component")
}

func TestLogLLMCall(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.LogLLMCall("gpt-4o-mini", 120*time.Millisecond, true, nil)
	logger.LogLLMCall("gpt-4o-mini", 50*time.Millisecond, false, errors.New("rate limited"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "gpt-4o-mini", lines[0]["model"])
	assert.Contains(t, lines[1], "error")
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))

	logger, _ := newBufferedLogger(LogLevelInfo)
	assert.Equal(t, logger, OrNoOp(logger))
}
