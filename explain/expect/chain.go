// SPDX-License-Identifier: GPL-3.0-or-later

// Package expect implements the fluent expectation grammar evaluated over
// walked file records:
//
//	e.Expect("/usr/local/openresty/nginx/sbin/nginx", "nginx rpath should contain kong lib").
//		Attr("rpath").Equals("/usr/local/openresty/luajit/lib:/usr/local/kong/lib")
//
// A statement selects records by path glob, then alternates attribute
// selections and verbs. Each verb is one check over every selected record.
package expect

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
	"github.com/netdata/netdata/go/explainmanifest/pkg/closematch"
	"github.com/netdata/netdata/go/explainmanifest/pkg/matcher"
)

// Engine evaluates statements against one walk result.
type Engine struct {
	infos     []*fileinfo.FileInfo
	rep       *Reporter
	useRpath  bool
	cur       *Chain
	selectors map[string]matcher.Matcher // by joined pattern list
}

// NewEngine creates an Engine over infos reporting to rep.
func NewEngine(infos []*fileinfo.FileInfo, rep *Reporter) *Engine {
	return &Engine{infos: infos, rep: rep, selectors: make(map[string]matcher.Matcher)}
}

// SetUseRpath selects which of rpath and runpath is authoritative: a
// statement asking for the other one is redirected.
func (e *Engine) SetUseRpath(v bool) { e.useRpath = v }

// Reporter returns the Reporter the Engine writes to.
func (e *Engine) Reporter() *Reporter { return e.rep }

// Expect starts a statement over the records matching pattern.
func (e *Engine) Expect(pattern, msg string) *Chain {
	return e.ExpectAt(callerLocation(1), []string{pattern}, msg)
}

// ExpectAt starts a statement reported at the given location.
func (e *Engine) ExpectAt(loc string, patterns []string, msg string) *Chain {
	e.Flush()

	c := &Chain{
		engine:   e,
		loc:      loc,
		patterns: patterns,
	}
	sel := e.selector(patterns)
	for _, f := range e.infos {
		if sel.MatchString(f.RelPath) {
			c.files = append(c.files, f)
		}
	}
	e.cur = c

	e.rep.Title(loc, msg)

	return c
}

// selector returns the cached matcher for a pattern list. Invalid
// patterns never match.
func (e *Engine) selector(patterns []string) matcher.Matcher {
	if e.selectors == nil {
		e.selectors = make(map[string]matcher.Matcher)
	}
	key := strings.Join(patterns, "\x00")
	if m, ok := e.selectors[key]; ok {
		return m
	}

	m := matcher.FALSE()
	for _, p := range patterns {
		gm, err := matcher.NewGlobMatcher(p)
		if err != nil {
			continue
		}
		m = matcher.Or(m, gm)
	}
	m = matcher.WithCache(m)
	e.selectors[key] = m

	return m
}

// Flush writes the result line of the pending statement.
func (e *Engine) Flush() {
	c := e.cur
	e.cur = nil
	if c == nil || c.checks == 0 {
		return
	}
	if c.failures == 0 {
		e.rep.OK(fmt.Sprintf("%d check(s) passed for %d file(s)", c.checks, len(c.files)))
	} else {
		e.rep.Error(fmt.Sprintf("%d/%d check(s) failed for %d file(s)", c.failures, c.checks, len(c.files)))
	}
}

// Chain is the state of one statement.
type Chain struct {
	engine   *Engine
	loc      string
	patterns []string
	files    []*fileinfo.FileInfo

	attr   string
	negate bool
	key    string
	hasKey bool

	checks   int
	failures int
}

// Attr selects the attribute the following verbs apply to. It clears a
// pending negation and key.
func (c *Chain) Attr(name string) *Chain {
	c.negate = false
	c.key, c.hasKey = "", false

	canon, ok := fileinfo.CanonicalAttr(name)
	if !ok {
		c.attr = ""
		msg := fmt.Sprintf("unknown attribute \"%s\"", name)
		if hint, ok := closematch.Closest(name, fileinfo.AttrNames()); ok {
			msg += fmt.Sprintf(", did you mean \"%s\"?", hint)
		}
		c.misuse(msg)
		return c
	}

	switch {
	case canon == "runpath" && c.engine.useRpath:
		canon = "rpath"
	case canon == "rpath" && !c.engine.useRpath:
		canon = "runpath"
	}
	c.attr = canon

	return c
}

// To does nothing, it reads well.
func (c *Chain) To() *Chain { return c }

// DoNot negates the next verb.
func (c *Chain) DoNot() *Chain {
	c.negate = true
	return c
}

// DoesNot is DoNot.
func (c *Chain) DoesNot() *Chain { return c.DoNot() }

// IsNot is DoNot.
func (c *Chain) IsNot() *Chain { return c.DoNot() }

// Key narrows a mapping valued attribute to one entry. Records whose
// mapping lacks the key are not checked. The key stays until the next
// attribute selection.
func (c *Chain) Key(name string) *Chain {
	c.key, c.hasKey = name, true
	return c
}

// Equals checks the attribute equals expected.
func (c *Chain) Equals(expected any) *Chain {
	return c.compare(VerbEqual, func(v any) (bool, string) {
		return valuesEqual(v, expected), fmt.Sprintf("'%s' does {NOT} equal to '%s'", repr(v), repr(expected))
	})
}

// Equal is Equals.
func (c *Chain) Equal(expected any) *Chain { return c.Equals(expected) }

// Match is Matches.
func (c *Chain) Match(expr string) *Chain { return c.Matches(expr) }

// Matches checks the attribute contains a match of the regular expression.
func (c *Chain) Matches(expr string) *Chain {
	m, err := matcher.NewRegExpMatcher(expr)
	if err != nil {
		return c.misuse(fmt.Sprintf("bad regular expression '%s': %v", expr, err))
	}
	return c.compare(VerbMatch, func(v any) (bool, string) {
		return m.MatchString(repr(v)), fmt.Sprintf("'%s' does {NOT} match '%s'", repr(v), expr)
	})
}

// Contain is Contains.
func (c *Chain) Contain(expected string) *Chain { return c.Contains(expected) }

// Contains checks a list attribute has expected as an element.
func (c *Chain) Contains(expected string) *Chain {
	attr := c.attr
	return c.compare(VerbContain, func(v any) (bool, string) {
		list, ok := v.([]string)
		if !ok {
			return false, fmt.Sprintf("'%s' is not a list", attr)
		}
		for _, s := range list {
			if s == expected {
				return true, fmt.Sprintf("'%s' is {NOT} found in the list", expected)
			}
		}
		if len(list) == 0 {
			return false, fmt.Sprintf("'%s' is empty", attr)
		}
		msg := fmt.Sprintf("'%s' is {NOT} found in the list", expected)
		if hint, ok := closematch.Closest(expected, list); ok {
			msg += fmt.Sprintf(", did you mean '%s'?", hint)
		}
		return false, msg
	})
}

// ContainMatch is ContainsMatch.
func (c *Chain) ContainMatch(expr string) *Chain { return c.ContainsMatch(expr) }

// ContainsMatch checks some element of a list attribute matches the
// regular expression.
func (c *Chain) ContainsMatch(expr string) *Chain {
	m, err := matcher.NewRegExpMatcher(expr)
	if err != nil {
		return c.misuse(fmt.Sprintf("bad regular expression '%s': %v", expr, err))
	}
	attr := c.attr
	return c.compare(VerbContainMatch, func(v any) (bool, string) {
		list, ok := v.([]string)
		if !ok {
			return false, fmt.Sprintf("'%s' is not a list", attr)
		}
		msg := fmt.Sprintf("'%s' is {NOT} found in the list", expr)
		for _, s := range list {
			if m.MatchString(s) {
				return true, msg
			}
		}
		return false, msg
	})
}

// LessThan checks the attribute, or the greatest element of a list, is
// strictly less than expected.
func (c *Chain) LessThan(expected any) *Chain {
	return c.compareOrder(VerbLessThan, expected, true)
}

// GreaterThan checks the attribute, or the smallest element of a list, is
// strictly greater than expected.
func (c *Chain) GreaterThan(expected any) *Chain {
	return c.compareOrder(VerbGreaterThan, expected, false)
}

func (c *Chain) compareOrder(verb Verb, expected any, less bool) *Chain {
	word := "greater"
	if less {
		word = "less"
	}
	return c.compare(verb, func(v any) (bool, string) {
		msg := fmt.Sprintf("'%s' is {NOT} %s than %s", repr(v), word, repr(expected))
		cmp := compareOrdered(extreme(v, less), expected)
		if less {
			return cmp < 0, msg
		}
		return cmp > 0, msg
	})
}

// Exists checks the statement selected at least one record.
func (c *Chain) Exists() *Chain {
	negate := c.consumeNegate()
	c.checks++

	if (len(c.files) > 0) == negate {
		c.fail(fmt.Sprintf("found %d files matching %s", len(c.files), repr(c.patterns)))
	}
	return c
}

// Exist is Exists.
func (c *Chain) Exist() *Chain { return c.Exists() }

// Step applies one token of the grammar, an attribute name or a verb
// spelling, with its argument.
func (c *Chain) Step(token string, args ...any) *Chain {
	verb, ok := ParseVerb(token)
	if !ok {
		if len(args) != 0 {
			return c.misuse(fmt.Sprintf("attribute \"%s\" takes no argument", token))
		}
		return c.Attr(token)
	}

	switch verb {
	case VerbTo:
		return c.To()
	case VerbNot:
		return c.DoNot()
	case VerbExist:
		return c.Exists()
	}

	if len(args) != 1 {
		return c.misuse(fmt.Sprintf("verb \"%s\" takes exactly one argument, got %d", token, len(args)))
	}
	arg := args[0]

	switch verb {
	case VerbEqual:
		return c.Equals(arg)
	case VerbLessThan:
		return c.LessThan(arg)
	case VerbGreaterThan:
		return c.GreaterThan(arg)
	}

	s, ok := arg.(string)
	if !ok {
		return c.misuse(fmt.Sprintf("verb \"%s\" takes a string argument, got %T", token, arg))
	}
	switch verb {
	case VerbKey:
		return c.Key(s)
	case VerbMatch:
		return c.Matches(s)
	case VerbContain:
		return c.Contains(s)
	default:
		return c.ContainsMatch(s)
	}
}

// compare runs one check. The first failing record records the failure
// and ends the check.
func (c *Chain) compare(verb Verb, fn func(v any) (bool, string)) *Chain {
	negate := c.consumeNegate()

	if c.attr == "" {
		return c.misuse(fmt.Sprintf("attribute is not set before verb \"%s\"", verb))
	}

	c.checks++

	for _, f := range c.files {
		v, ok := f.Attr(c.attr)
		if !ok {
			continue
		}
		if c.hasKey {
			if m, isMap := v.(map[string][]string); isMap {
				// Only this record is skipped, the rest are still checked
				// instead of ending the check as passed.
				if v, ok = m[c.key]; !ok {
					continue
				}
			}
		}

		if isEmptyList(v) && (verb == VerbLessThan || verb == VerbGreaterThan) {
			continue
		}

		passed, msg := fn(v)
		if passed != negate {
			continue
		}

		not := "not"
		if negate {
			not = "actually"
		}
		c.fail(fmt.Sprintf("file %s <%s>: %s", f.RelPath, c.attr, strings.ReplaceAll(msg, "{NOT}", not)))
		break
	}

	return c
}

func isEmptyList(v any) bool {
	ss, ok := v.([]string)
	return ok && len(ss) == 0
}

func (c *Chain) consumeNegate() bool {
	negate := c.negate
	c.negate = false
	return negate
}

func (c *Chain) fail(msg string) {
	c.failures++
	c.engine.rep.Fail(c.loc, msg)
}

// misuse reports a malformed statement. It counts as a failed check.
func (c *Chain) misuse(msg string) *Chain {
	c.consumeNegate()
	c.checks++
	c.fail(msg)
	return c
}

// callerLocation returns "file:line" of the caller skip frames above,
// relative to the working directory when possible.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "?"
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, file); err == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}
