// SPDX-License-Identifier: GPL-3.0-or-later

// Package closematch finds "did you mean" candidates using the
// SequenceMatcher similarity ratio.
package closematch

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultCutoff is the minimum similarity ratio for a candidate.
const DefaultCutoff = 0.6

// Find returns up to n candidates from possibilities whose similarity to
// word is at least cutoff, best match first. Equal scores are ordered by
// reverse lexical order of the candidate.
func Find(word string, possibilities []string, n int, cutoff float64) []string {
	if n <= 0 {
		return nil
	}

	type scored struct {
		score float64
		s     string
	}

	wordSeq := chars(word)
	var found []scored

	for _, p := range possibilities {
		m := difflib.NewMatcher(chars(p), wordSeq)
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		if r := m.Ratio(); r >= cutoff {
			found = append(found, scored{score: r, s: p})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].score != found[j].score {
			return found[i].score > found[j].score
		}
		return found[i].s > found[j].s
	})

	if len(found) > n {
		found = found[:n]
	}
	out := make([]string, 0, len(found))
	for _, f := range found {
		out = append(out, f.s)
	}
	return out
}

// Closest returns the single best candidate above DefaultCutoff.
func Closest(word string, possibilities []string) (string, bool) {
	if res := Find(word, possibilities, 1, DefaultCutoff); len(res) > 0 {
		return res[0], true
	}
	return "", false
}

func chars(s string) []string {
	return strings.Split(s, "")
}
