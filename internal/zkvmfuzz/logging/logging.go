// Package logging implements the leveled, colorized stderr logger shared
// by both fuzzing driver CLIs.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
)

// Level is a log severity, ordered from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "EROR"
	default:
		return "????"
	}
}

var levelColor = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

// Logger writes leveled, colorized lines to an underlying writer. It is
// safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	json   bool
	fields map[string]any
}

// New returns a Logger writing to colorable stderr at minLevel. Set
// ZKFUZZ_LOG_JSON=1 in the environment to switch to line-delimited JSON,
// useful when output is piped to a log aggregator rather than a terminal.
func New(minLevel Level) *Logger {
	return &Logger{
		out:   colorable.NewColorableStderr(),
		level: minLevel,
		json:  os.Getenv("ZKFUZZ_LOG_JSON") == "1",
	}
}

// WithJSON toggles line-delimited JSON output and returns the receiver
// for chaining.
func (l *Logger) WithJSON(json bool) *Logger {
	l.json = json
	return l
}

// With returns a child logger that attaches the given key/value pairs to
// every line it emits, in addition to the parent's fields.
func (l *Logger) With(kv ...any) *Logger {
	child := &Logger{out: l.out, level: l.level, json: l.json, fields: make(map[string]any, len(l.fields)+len(kv)/2)}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			child.fields[key] = kv[i+1]
		}
	}
	return child
}

func (l *Logger) log(level Level, msg string, kv []any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		l.writeJSON(level, msg, kv)
		return
	}
	l.writeText(level, msg, kv)
}

func (l *Logger) writeText(level Level, msg string, kv []any) {
	ts := time.Now().Format("15:04:05.000")
	tag := levelColor[level].Sprint(level.String())
	fmt.Fprintf(l.out, "%s [%s] %s", ts, tag, msg)
	for k, v := range l.fields {
		fmt.Fprintf(l.out, " %s=%v", k, v)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", kv[i], kv[i+1])
	}
	if level >= LevelWarn {
		fmt.Fprintf(l.out, " caller=%v", stack.Caller(2))
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) writeJSON(level Level, msg string, kv []any) {
	fmt.Fprintf(l.out, `{"ts":"%s","level":"%s","msg":%q`, time.Now().Format(time.RFC3339), level.String(), msg)
	for k, v := range l.fields {
		fmt.Fprintf(l.out, `,%q:%q`, k, fmt.Sprint(v))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(l.out, `,%q:%q`, fmt.Sprint(kv[i]), fmt.Sprint(kv[i+1]))
	}
	fmt.Fprintln(l.out, "}")
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(LevelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(LevelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.log(LevelError, msg, kv) }

// Fatal logs at error level and exits the process with status 1. The
// CLIs in cmd/ do not call it; they report startup errors by returning
// cli.NewExitError.
func (l *Logger) Fatal(msg string, kv ...any) {
	l.log(LevelError, msg, kv)
	os.Exit(1)
}
