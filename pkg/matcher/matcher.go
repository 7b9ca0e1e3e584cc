// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

// Matcher is an interface that wraps MatchString method.
type Matcher interface {
	// Match performs match against given []byte
	Match(b []byte) bool
	// MatchString performs match against given string
	MatchString(string) bool
}

// Must is a helper that wraps a call to a function returning (Matcher, error)
// and panics if the error is non-nil. It is intended for use in variable
// initializations such as
//
//	var m = matcher.Must(matcher.NewPathMatcher("**/kong/lib/libjq.so*"))
func Must(m Matcher, err error) Matcher {
	if err != nil {
		panic(err)
	}
	return m
}
