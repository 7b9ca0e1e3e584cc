// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

import (
	"bytes"
	"regexp"
	"strings"
)

// literalMatcher implements Matcher for regular expressions that turned out
// to be plain text, optionally anchored at either end.
type literalMatcher struct {
	s          string
	start, end bool
}

func (m literalMatcher) Match(b []byte) bool {
	switch {
	case m.start && m.end:
		return string(b) == m.s
	case m.start:
		return bytes.HasPrefix(b, []byte(m.s))
	case m.end:
		return bytes.HasSuffix(b, []byte(m.s))
	default:
		return bytes.Contains(b, []byte(m.s))
	}
}

func (m literalMatcher) MatchString(line string) bool {
	switch {
	case m.start && m.end:
		return line == m.s
	case m.start:
		return strings.HasPrefix(line, m.s)
	case m.end:
		return strings.HasSuffix(line, m.s)
	default:
		return strings.Contains(line, m.s)
	}
}

// NewRegExpMatcher creates a matcher with search semantics: the value
// matches when any substring matches expr.
func NewRegExpMatcher(expr string) (Matcher, error) {
	switch expr {
	case "", "^", "$":
		return TRUE(), nil
	case "^$", "$^":
		return literalMatcher{start: true, end: true}, nil
	}

	body := expr
	var m literalMatcher
	if strings.HasPrefix(body, "^") {
		m.start = true
		body = body[1:]
	}
	if strings.HasSuffix(body, "$") && !strings.HasSuffix(body, `\$`) {
		m.end = true
		body = body[:len(body)-1]
	}

	lit, ok := unescapeRegExpLiteral(body)
	if !ok {
		return regexp.Compile(expr)
	}
	m.s = lit
	return m, nil
}

// unescapeRegExpLiteral returns the literal text of expr if it contains no
// active regexp metacharacters.
func unescapeRegExpLiteral(expr string) (string, bool) {
	var sb strings.Builder
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case ch == '\\':
			if i == len(expr)-1 || !isASCIIPunct(expr[i+1]) {
				// trailing '\' or an escape class like \d
				return "", false
			}
			i++
			sb.WriteByte(expr[i])
		case isRegExpMeta(ch):
			return "", false
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String(), true
}

// isRegExpMeta reports whether byte b needs to be escaped by QuoteMeta.
func isRegExpMeta(b byte) bool {
	switch b {
	case '\\', '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$':
		return true
	default:
		return false
	}
}

// isASCIIPunct reports whether b may follow '\' as a literal escape in RE2.
func isASCIIPunct(b byte) bool {
	return (b >= '!' && b <= '/') || (b >= ':' && b <= '@') || (b >= '[' && b <= '`') || (b >= '{' && b <= '~')
}
