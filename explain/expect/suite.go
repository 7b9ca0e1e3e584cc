// SPDX-License-Identifier: GPL-3.0-or-later

package expect

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
	"github.com/netdata/netdata/go/explainmanifest/explain/manifest"
)

// Params are the keyword parameters of a suite function.
type Params map[string]any

// String returns the string parameter key, "" when unset.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s': want string, got %T", key, v)
	}
	return s, nil
}

// Bool returns the bool parameter key, false when unset.
func (p Params) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter '%s': want bool, got %T", key, v)
	}
	return b, nil
}

// SuiteFunc issues the statements of one parameterized check bundle.
type SuiteFunc func(e *Engine, p Params) error

// Test is one suite function bound to its parameters.
type Test struct {
	Name   string
	Func   SuiteFunc
	Params Params
}

// ExpectSuite is a named set of tests together with the golden manifest
// and linking convention of one target environment.
type ExpectSuite struct {
	Name     string
	Manifest string
	UseRpath bool
	Tests    []Test
	// Transform normalizes records of this target before rendering.
	Transform fileinfo.Transform
}

// Override lists the fields a variant replaces. Zero fields are kept.
type Override struct {
	Name       string
	Manifest   string
	UseRpath   *bool
	ExtraTests []Test
}

// Variant returns a deep copy of s with o applied.
func (s *ExpectSuite) Variant(o Override) *ExpectSuite {
	v := &ExpectSuite{
		Name:      s.Name,
		Manifest:  s.Manifest,
		UseRpath:  s.UseRpath,
		Transform: s.Transform,
		Tests:     make([]Test, 0, len(s.Tests)+len(o.ExtraTests)),
	}
	for _, t := range slices.Concat(s.Tests, o.ExtraTests) {
		v.Tests = append(v.Tests, Test{Name: t.Name, Func: t.Func, Params: cloneParams(t.Params)})
	}

	if o.Name != "" {
		v.Name = o.Name
	}
	if o.Manifest != "" {
		v.Manifest = o.Manifest
	}
	if o.UseRpath != nil {
		v.UseRpath = *o.UseRpath
	}

	return v
}

func cloneParams(p Params) Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case Params:
		return cloneParams(v)
	default:
		return v
	}
}

// block wraps fn in start and finish lines with the elapsed time.
func (e *Engine) block(desc, suite string, fn func() error) error {
	e.rep.Info(fmt.Sprintf("start to %s of suite %s", desc, suite))
	start := time.Now()

	err := fn()

	e.rep.Info(fmt.Sprintf("finish to %s of suite %s in %.2fms", desc, suite, float64(time.Since(start).Microseconds())/1000))
	return err
}

// CompareManifest diffs the rendered manifest against the suite golden
// file. A difference is a recorded failure, the raw diff is echoed.
// Errors are returned only when the comparison could not run.
func (e *Engine) CompareManifest(ctx context.Context, s *ExpectSuite, rendered []byte, d manifest.Differ) error {
	e.SetUseRpath(s.UseRpath)

	return e.block("compare manifest", s.Name, func() error {
		if s.Manifest == "" {
			return nil
		}

		diff, err := d.Diff(ctx, s.Manifest, rendered)
		if err != nil {
			return err
		}
		if diff != "" {
			e.rep.Fail(s.Manifest, "manifest is not up-to-date:")
			e.rep.Raw(diff)
		}
		return nil
	})
}

// Run calls every test of the suite in order.
func (e *Engine) Run(s *ExpectSuite) error {
	e.SetUseRpath(s.UseRpath)

	return e.block("run test suite", s.Name, func() error {
		defer e.Flush()

		for _, t := range s.Tests {
			if t.Func == nil {
				return fmt.Errorf("suite '%s': test '%s' has no function", s.Name, t.Name)
			}
			if err := t.Func(e, t.Params); err != nil {
				return fmt.Errorf("suite '%s': test '%s': %w", s.Name, t.Name, err)
			}
		}
		return nil
	})
}
