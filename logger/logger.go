// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

var isJournal = isStderrConnectedToJournal()

// Logger is a thin printf-style wrapper over slog used by every component.
type Logger struct {
	muted atomic.Bool
	sl    *slog.Logger
}

// New creates a Logger writing to stderr. Terminals get the colored tint
// handler, everything else gets the plain text handler.
func New() *Logger {
	// skip 2 slog pkg calls, 2 this pkg calls
	return &Logger{sl: newSlog(4)}
}

// newSlog builds the stderr slog.Logger. depth is the number of frames
// between the user call site and slog on the terminal handler path.
func newSlog(depth int) *slog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(withCallDepth(depth, newTerminalHandler()))
	}
	return slog.New(newTextHandler()).With(toolAttr)
}

// NewWithHandler creates a Logger on top of an arbitrary handler (tests, embedding).
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{sl: slog.New(h)}
}

func (l *Logger) Error(a ...any)   { l.log(slog.LevelError, fmt.Sprint(a...)) }
func (l *Logger) Warning(a ...any) { l.log(slog.LevelWarn, fmt.Sprint(a...)) }
func (l *Logger) Info(a ...any)    { l.log(slog.LevelInfo, fmt.Sprint(a...)) }
func (l *Logger) Debug(a ...any)   { l.log(slog.LevelDebug, fmt.Sprint(a...)) }

func (l *Logger) Errorf(format string, a ...any)   { l.log(slog.LevelError, fmt.Sprintf(format, a...)) }
func (l *Logger) Warningf(format string, a ...any) { l.log(slog.LevelWarn, fmt.Sprintf(format, a...)) }
func (l *Logger) Infof(format string, a ...any)    { l.log(slog.LevelInfo, fmt.Sprintf(format, a...)) }
func (l *Logger) Debugf(format string, a ...any)   { l.log(slog.LevelDebug, fmt.Sprintf(format, a...)) }

// With returns a child Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	if l.isNil() {
		return &Logger{sl: New().sl.With(args...)}
	}
	ll := &Logger{sl: l.sl.With(args...)}
	ll.muted.Store(l.muted.Load())
	return ll
}

// Mute silences the Logger, used by tests that exercise noisy paths.
func (l *Logger) Mute() {
	if l.isNil() {
		return
	}
	l.muted.Store(true)
}

func (l *Logger) log(level slog.Level, msg string) {
	if l.isNil() {
		nilLogger.sl.Log(context.Background(), level, msg)
		return
	}
	if !l.muted.Load() {
		l.sl.Log(context.Background(), level, msg)
	}
}

func (l *Logger) isNil() bool { return l == nil || l.sl == nil }

var nilLogger = New()

var toolAttr = slog.String("tool", "explain-manifest")
