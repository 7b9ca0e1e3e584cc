// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

import "sync"

type cachedMatcher struct {
	matcher Matcher

	mux   sync.RWMutex
	cache map[string]bool
}

// WithCache memoizes results per input. Useful for patterns evaluated
// against every walked file.
func WithCache(m Matcher) Matcher {
	if _, ok := m.(constMatcher); ok {
		return m
	}
	return &cachedMatcher{matcher: m, cache: make(map[string]bool)}
}

func (m *cachedMatcher) Match(b []byte) bool { return m.MatchString(string(b)) }

func (m *cachedMatcher) MatchString(s string) bool {
	m.mux.RLock()
	result, ok := m.cache[s]
	m.mux.RUnlock()
	if ok {
		return result
	}

	result = m.matcher.MatchString(s)

	m.mux.Lock()
	m.cache[s] = result
	m.mux.Unlock()
	return result
}
