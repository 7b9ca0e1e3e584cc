// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel_SetByName(t *testing.T) {
	tests := map[string]struct {
		name string
		want slog.Level
	}{
		"error":         {name: "error", want: slog.LevelError},
		"err":           {name: "ERR", want: slog.LevelError},
		"warning":       {name: "warning", want: slog.LevelWarn},
		"info":          {name: " info ", want: slog.LevelInfo},
		"debug":         {name: "debug", want: slog.LevelDebug},
		"unknown keeps": {name: "verbose", want: slog.LevelWarn},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			l := &level{lvl: newLevelVar()}
			l.SetByName(test.name)
			assert.Equal(t, test.want, l.lvl.Level())
		})
	}
}

func TestLevel_SetFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")

	l := &level{lvl: newLevelVar()}
	l.SetFromEnv()

	assert.True(t, l.Enabled(slog.LevelDebug))
}

func TestLogger_Mute(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l.Infof("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")

	buf.Reset()
	l.Mute()
	l.Info("muted")
	l.With("k", "v").Info("muted child")
	assert.Empty(t, buf.String())
}
