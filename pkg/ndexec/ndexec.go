// SPDX-License-Identifier: GPL-3.0-or-later

// Package ndexec runs external helper programs synchronously.
package ndexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/logger"
)

const stderrLimit = 8 << 10 // 8 KiB

// Result is the outcome of a process that ran to completion.
type Result struct {
	Cmd      string
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// Run executes bin with args, feeding stdin when it is not nil, and blocks
// until the process exits. A non-zero exit status is not an error: it is
// reported in Result.ExitCode for the caller to interpret. Errors are
// returned only when the process could not be started or ctx ended first.
func Run(ctx context.Context, log *logger.Logger, stdin io.Reader, bin string, args ...string) (Result, error) {
	ex := exec.CommandContext(ctx, bin, args...) // no shell, args passed separately

	log.Debugf("executing: %v", ex)

	var stdout, stderr bytes.Buffer
	ex.Stdin = stdin
	ex.Stdout = &stdout
	ex.Stderr = &stderr

	res := Result{Cmd: ex.String()}

	err := ex.Run()
	res.Stdout = stdout.Bytes()
	res.Stderr = trimStderr(stderr.String())

	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%v: %w", ex, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("%v: %w (stderr: %s)", ex, err, res.Stderr)
}

// FindBinary returns the first of names found in PATH, falling back to the
// given absolute candidates.
func FindBinary(names []string, defaultPaths []string) (string, error) {
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, path := range defaultPaths {
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0 {
			return path, nil
		}
	}
	return "", fmt.Errorf("executable not found: tried %v in PATH and %v", names, defaultPaths)
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrLimit {
		s = s[:stderrLimit] + "… (truncated)"
	}
	return s
}
