// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel is the environment variable consulted by SetFromEnv.
const EnvLogLevel = "EXPLAIN_MANIFEST_LOG_LEVEL"

var Level = &level{lvl: newLevelVar()}

func newLevelVar() *slog.LevelVar {
	v := &slog.LevelVar{}
	// manifests go to stdout, keep stderr quiet unless asked
	v.Set(slog.LevelWarn)
	return v
}

type level struct {
	lvl *slog.LevelVar
}

func (l *level) Enabled(level slog.Level) bool {
	return level >= l.lvl.Level()
}

func (l *level) Set(level slog.Level) {
	l.lvl.Set(level)
}

// SetByName sets the level from its name; unknown names are ignored.
func (l *level) SetByName(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "err", "error":
		l.lvl.Set(slog.LevelError)
	case "warn", "warning":
		l.lvl.Set(slog.LevelWarn)
	case "info":
		l.lvl.Set(slog.LevelInfo)
	case "debug":
		l.lvl.Set(slog.LevelDebug)
	}
}

// SetFromEnv applies EnvLogLevel when it is set.
func (l *level) SetFromEnv() {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		l.SetByName(v)
	}
}
