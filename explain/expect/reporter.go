// SPDX-License-Identifier: GPL-3.0-or-later

package expect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// ErrExpectationsFailed is returned by Reporter.Summarize when at least one
// failure was recorded.
var ErrExpectationsFailed = errors.New("expectations failed")

type color int

const (
	colorNone   color = 0
	colorRed    color = 31
	colorGreen  color = 32
	colorYellow color = 33
	colorWhite  color = 37
)

// Reporter writes the check report and accumulates failures for the
// final summary.
type Reporter struct {
	out      io.Writer
	colored  bool
	now      func() time.Time
	failures []string
}

// NewReporter creates a Reporter writing to out. Lines are colored when out
// is a terminal.
func NewReporter(out io.Writer) *Reporter {
	colored := false
	if f, ok := out.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{out: out, colored: colored, now: time.Now}
}

func (r *Reporter) line(c color, format string, a ...any) {
	var sb strings.Builder
	if r.colored && c != colorNone {
		fmt.Fprintf(&sb, "\033[%dm", c)
	}
	sb.WriteString(" " + r.now().Format("Jan 02 15:04:05") + " ")
	fmt.Fprintf(&sb, format, a...)
	sb.WriteString("\n")
	if r.colored && c != colorNone {
		sb.WriteString("\033[0m")
	}
	_, _ = io.WriteString(r.out, sb.String())
}

// Title announces a statement.
func (r *Reporter) Title(loc, msg string) { r.line(colorWhite, "[TEST] %s: %s", loc, msg) }

// Info writes a progress line.
func (r *Reporter) Info(msg string) { r.line(colorNone, "[INFO] %s", msg) }

// OK writes a passing result.
func (r *Reporter) OK(msg string) { r.line(colorGreen, "[OK  ] %s", msg) }

// Fail writes a failure and records it for the summary.
func (r *Reporter) Fail(loc, msg string) {
	r.line(colorRed, "[FAIL] %s", msg)
	r.failures = append(r.failures, loc+": "+msg)
}

// Error writes a failure line that is not recorded.
func (r *Reporter) Error(msg string) { r.line(colorYellow, "[FAIL] %s", msg) }

// Raw writes text verbatim.
func (r *Reporter) Raw(text string) {
	if text == "" {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, _ = io.WriteString(r.out, text)
}

// Failures returns the recorded failures in order.
func (r *Reporter) Failures() []string { return r.failures }

// Summarize reprints every recorded failure.
func (r *Reporter) Summarize() error {
	if len(r.failures) == 0 {
		return nil
	}
	r.line(colorRed, "[FAIL] Following failure(s) occurred:\n%s", strings.Join(r.failures, "\n"))
	return fmt.Errorf("%w: %d failure(s)", ErrExpectationsFailed, len(r.failures))
}
