// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// globMatcher implements Matcher, it uses doublestar.Match to match.
// The pattern is stored already normalized.
type globMatcher string

// NewGlobMatcher creates a path glob matcher. Patterns without any glob
// metacharacters are served by a plain string matcher.
func NewGlobMatcher(pattern string) (Matcher, error) {
	pattern = trimLeadingSlash(pattern)

	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("bad glob pattern '%s'", pattern)
	}
	if !hasGlobMeta(pattern) {
		return pathFullMatcher(unescapeGlob(pattern)), nil
	}
	return globMatcher(pattern), nil
}

// NewPathMatcher creates a matcher that reports true when the path matches
// any of the patterns. An empty pattern list matches nothing.
func NewPathMatcher(patterns ...string) (Matcher, error) {
	m := FALSE()
	for _, p := range patterns {
		gm, err := NewGlobMatcher(p)
		if err != nil {
			return nil, err
		}
		m = Or(m, gm)
	}
	return m, nil
}

func (m globMatcher) Match(b []byte) bool { return m.MatchString(string(b)) }

func (m globMatcher) MatchString(line string) bool {
	ok, err := doublestar.Match(string(m), trimLeadingSlash(line))
	return err == nil && ok
}

// pathFullMatcher is a stringFullMatcher that ignores a leading slash.
type pathFullMatcher string

func (m pathFullMatcher) Match(b []byte) bool { return m.MatchString(string(b)) }

func (m pathFullMatcher) MatchString(line string) bool {
	return string(m) == trimLeadingSlash(line)
}

func trimLeadingSlash(s string) string {
	return strings.TrimPrefix(s, "/")
}

func hasGlobMeta(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func unescapeGlob(pattern string) string {
	if !strings.Contains(pattern, `\`) {
		return pattern
	}
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			i++
		}
		sb.WriteByte(pattern[i])
	}
	return sb.String()
}
