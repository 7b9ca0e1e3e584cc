// SPDX-License-Identifier: GPL-3.0-or-later

package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/netdata/netdata/go/explainmanifest/logger"
	"github.com/netdata/netdata/go/explainmanifest/pkg/ndexec"
)

// Differ compares a rendered manifest with a golden file. Blank lines and
// changes in the amount of whitespace are not differences. An empty diff
// means the manifest is up to date.
type Differ interface {
	Diff(ctx context.Context, goldenPath string, manifest []byte) (string, error)
}

// ExternalDiffer runs the system diff tool with "-BbNaur".
type ExternalDiffer struct {
	*logger.Logger
	// Bin is the diff executable, looked up in PATH when empty.
	Bin string
}

func (d *ExternalDiffer) Diff(ctx context.Context, goldenPath string, manifest []byte) (string, error) {
	if err := checkGoldenPath(goldenPath); err != nil {
		return "", err
	}

	bin := d.Bin
	if bin == "" {
		path, err := ndexec.FindBinary([]string{"diff"}, []string{"/usr/bin/diff", "/bin/diff"})
		if err != nil {
			return "", err
		}
		bin = path
	}

	res, err := ndexec.Run(ctx, d.Logger, bytes.NewReader(manifest), bin, "-BbNaur", goldenPath, "-")
	if err != nil {
		return "", err
	}

	switch res.ExitCode {
	case 0:
		return "", nil
	case 1:
		return string(res.Stdout), nil
	default:
		return "", fmt.Errorf("%s: exit status %d (stderr: %s)", res.Cmd, res.ExitCode, res.Stderr)
	}
}

// BuiltinDiffer compares in process and renders a unified diff of the
// normalized lines.
type BuiltinDiffer struct{}

func (BuiltinDiffer) Diff(_ context.Context, goldenPath string, manifest []byte) (string, error) {
	if err := checkGoldenPath(goldenPath); err != nil {
		return "", err
	}

	golden, err := os.ReadFile(goldenPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read golden manifest '%s': %w", goldenPath, err)
	}

	a, b := normalizeLines(string(golden)), normalizeLines(string(manifest))
	if slices.Equal(a, b) {
		return "", nil
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: goldenPath,
		ToFile:   "-",
		Context:  3,
	})
}

// checkGoldenPath accepts a missing file, it diffs as empty.
func checkGoldenPath(path string) error {
	if path == "" {
		return errors.New("golden manifest path is empty")
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("golden manifest '%s': %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("golden manifest '%s' is a directory", path)
	}
	return nil
}

// normalizeLines drops blank lines and collapses whitespace runs. Every
// returned line ends with "\n".
func normalizeLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, leadingSpace(line)+strings.Join(fields, " ")+"\n")
	}
	return lines
}

// leadingSpace keeps indentation significant as a single space, like
// diff -b does for any non-empty whitespace run.
func leadingSpace(line string) string {
	if line != "" && (line[0] == ' ' || line[0] == '\t') {
		return " "
	}
	return ""
}
