// SPDX-License-Identifier: GPL-3.0-or-later

package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadFileList reads newline separated glob patterns. An empty path
// selects everything.
func ReadFileList(path string) ([]string, error) {
	if path == "" {
		return []string{"**"}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file list '%s': %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			patterns = append(patterns, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read file list '%s': %w", path, err)
	}

	return patterns, nil
}
