package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level Level) *Logger {
	return &Logger{out: buf, level: level}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LevelWarn)
	l.Info("should not appear")
	require.Empty(t, buf.String())
	l.Warn("should appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestWithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LevelDebug)
	child := l.With("iteration", 7)
	child.Info("tick")
	require.True(t, strings.Contains(buf.String(), "iteration=7"))
}

func TestJSONModeEmitsObject(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LevelDebug)
	l.json = true
	l.Info("hello")
	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "{"))
	require.True(t, strings.HasSuffix(line, "}"))
}
