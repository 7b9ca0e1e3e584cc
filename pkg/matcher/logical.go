// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

type (
	constMatcher bool
	orMatcher    []Matcher
)

// TRUE returns a matcher which always returns true
func TRUE() Matcher { return constMatcher(true) }

// FALSE returns a matcher which always returns false
func FALSE() Matcher { return constMatcher(false) }

// Or returns a matcher which returns true if any of its sub-matchers returns true.
// Constant operands are folded away.
func Or(ms ...Matcher) Matcher {
	var out orMatcher
	for _, m := range ms {
		switch v := m.(type) {
		case constMatcher:
			if v {
				return TRUE()
			}
		case orMatcher:
			out = append(out, v...)
		default:
			out = append(out, m)
		}
	}
	switch len(out) {
	case 0:
		return FALSE()
	case 1:
		return out[0]
	default:
		return out
	}
}

func (m constMatcher) Match(_ []byte) bool       { return bool(m) }
func (m constMatcher) MatchString(_ string) bool { return bool(m) }

func (m orMatcher) Match(b []byte) bool {
	for _, v := range m {
		if v.Match(b) {
			return true
		}
	}
	return false
}

func (m orMatcher) MatchString(s string) bool {
	for _, v := range m {
		if v.MatchString(s) {
			return true
		}
	}
	return false
}
