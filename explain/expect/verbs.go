// SPDX-License-Identifier: GPL-3.0-or-later

package expect

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/pkg/looseversion"
)

// Verb is a token of the expectation grammar that is not an attribute name.
type Verb int

const (
	VerbEqual Verb = iota + 1
	VerbMatch
	VerbContain
	VerbContainMatch
	VerbLessThan
	VerbGreaterThan
	VerbExist
	VerbNot
	VerbKey
	VerbTo
)

var verbTokens = map[string]Verb{
	"equal":          VerbEqual,
	"equals":         VerbEqual,
	"match":          VerbMatch,
	"matches":        VerbMatch,
	"contain":        VerbContain,
	"contains":       VerbContain,
	"contain_match":  VerbContainMatch,
	"contains_match": VerbContainMatch,
	"less_than":      VerbLessThan,
	"greater_than":   VerbGreaterThan,
	"exist":          VerbExist,
	"exists":         VerbExist,
	"do_not":         VerbNot,
	"does_not":       VerbNot,
	"is_not":         VerbNot,
	"key":            VerbKey,
	"to":             VerbTo,
}

var verbNames = map[Verb]string{
	VerbEqual:        "equal",
	VerbMatch:        "match",
	VerbContain:      "contain",
	VerbContainMatch: "contain_match",
	VerbLessThan:     "less_than",
	VerbGreaterThan:  "greater_than",
	VerbExist:        "exist",
	VerbNot:          "do_not",
	VerbKey:          "key",
	VerbTo:           "to",
}

// ParseVerb resolves any accepted spelling of a verb.
func ParseVerb(token string) (Verb, bool) {
	v, ok := verbTokens[token]
	return v, ok
}

// VerbTokens returns every accepted verb spelling in lexical order.
func VerbTokens() []string {
	tokens := make([]string, 0, len(verbTokens))
	for t := range verbTokens {
		tokens = append(tokens, t)
	}
	slices.Sort(tokens)
	return tokens
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return "verb(" + strconv.Itoa(int(v)) + ")"
}

// repr formats attribute and expected values in failure messages.
func repr(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case string:
		return v
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = "'" + s + "'"
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	case map[string][]string:
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

// toStrings accepts []string and the []any YAML decoding produces.
func toStrings(v any) ([]string, bool) {
	switch v := v.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func valuesEqual(actual, expected any) bool {
	if a, ok := toInt64(actual); ok {
		e, ok := toInt64(expected)
		return ok && a == e
	}
	if a, ok := actual.([]string); ok {
		e, ok := toStrings(expected)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range a {
			if a[i] != e[i] {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

// compareOrdered orders numbers numerically and everything else as loose
// versions.
func compareOrdered(actual, expected any) int {
	a, aok := toInt64(actual)
	e, eok := toInt64(expected)
	if aok && eok {
		switch {
		case a < e:
			return -1
		case a > e:
			return 1
		}
		return 0
	}
	return looseversion.Compare(repr(actual), repr(expected))
}

// extreme picks the element compared by less_than (max) or greater_than
// (min). Lists are never empty here.
func extreme(v any, greatest bool) any {
	ss, ok := v.([]string)
	if !ok || len(ss) == 0 {
		return v
	}
	if greatest {
		return looseversion.Max(ss)
	}
	return looseversion.Min(ss)
}
