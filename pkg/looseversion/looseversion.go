// SPDX-License-Identifier: GPL-3.0-or-later

// Package looseversion orders free-form version strings such as
// "GLIBC_2.17", "OPENSSL_3.2.0" or "3.4.29" by comparing their numeric and
// lowercase alphabetic components one by one.
//
// A version is split into runs of digits, runs of lowercase letters and the
// text between them; '.' separators are dropped. Numeric runs compare as
// integers, everything else compares as strings, and a number sorts before
// a string when the kinds differ. A version that is a strict prefix of
// another sorts first ("2.2" < "2.2.5").
package looseversion

import (
	"slices"
	"strconv"
	"strings"
)

// Version is a parsed loose version.
type Version struct {
	raw   string
	parts []part
}

type part struct {
	num   uint64
	str   string
	isNum bool
}

// Parse splits s into comparable components. It never fails.
func Parse(s string) Version {
	v := Version{raw: s}

	flushText := func(text string) {
		if text != "" && text != "." {
			v.parts = append(v.parts, part{str: text})
		}
	}

	var text strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isDigit(c):
			flushText(text.String())
			text.Reset()
			j := i
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			v.parts = append(v.parts, numPart(s[i:j]))
			i = j
		case isLower(c):
			flushText(text.String())
			text.Reset()
			j := i
			for j < len(s) && isLower(s[j]) {
				j++
			}
			v.parts = append(v.parts, part{str: s[i:j]})
			i = j
		case c == '.':
			flushText(text.String())
			text.Reset()
			i++
		default:
			text.WriteByte(c)
			i++
		}
	}
	flushText(text.String())

	return v
}

func numPart(s string) part {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		// longer than uint64: keep the digits, ordering by string is still stable
		return part{str: s}
	}
	return part{num: n, isNum: true}
}

// String returns the original text.
func (v Version) String() string { return v.raw }

// Compare returns -1, 0 or +1 when v is less than, equal to or greater than w.
func (v Version) Compare(w Version) int {
	for i := 0; i < len(v.parts) && i < len(w.parts); i++ {
		if c := v.parts[i].compare(w.parts[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(v.parts) < len(w.parts):
		return -1
	case len(v.parts) > len(w.parts):
		return 1
	default:
		return 0
	}
}

func (p part) compare(o part) int {
	switch {
	case p.isNum && o.isNum:
		switch {
		case p.num < o.num:
			return -1
		case p.num > o.num:
			return 1
		}
		return 0
	case p.isNum:
		return -1
	case o.isNum:
		return 1
	default:
		return strings.Compare(p.str, o.str)
	}
}

// Compare parses and compares two version strings.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Sort sorts versions in place in ascending loose-version order.
func Sort(versions []string) {
	slices.SortStableFunc(versions, Compare)
}

// Max returns the greatest version, or "" for an empty slice.
func Max(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	return slices.MaxFunc(versions, Compare)
}

// Min returns the smallest version, or "" for an empty slice.
func Min(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	return slices.MinFunc(versions, Compare)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
