// SPDX-License-Identifier: GPL-3.0-or-later

package suites

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/netdata/netdata/go/explainmanifest/explain/expect"
	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
	"github.com/netdata/netdata/go/explainmanifest/pkg/closematch"
)

//go:embed "targets.yaml"
var defaultTargets []byte

// DefaultConfigName labels the embedded target table in statement
// locations.
const DefaultConfigName = "targets.yaml"

type (
	config struct {
		Transform   string         `yaml:"transform"`
		DeriveArm64 bool           `yaml:"derive_arm64"`
		Targets     []targetConfig `yaml:"targets"`
	}
	targetConfig struct {
		ID        string       `yaml:"id"`
		Name      string       `yaml:"name"`
		Manifest  string       `yaml:"manifest"`
		UseRpath  bool         `yaml:"use_rpath"`
		Transform string       `yaml:"transform"`
		Tests     []testConfig `yaml:"tests"`
	}
	testConfig struct {
		Suite  string         `yaml:"suite"`
		Params map[string]any `yaml:"params"`
		Checks []checkConfig  `yaml:"checks"`
	}
	checkConfig struct {
		Expect any    `yaml:"expect"`
		Desc   string `yaml:"desc"`
		Steps  []any  `yaml:"steps"`
	}
)

type step struct {
	token string
	args  []any
}

// Default loads the embedded target table.
func Default(fixturesDir string) (*Registry, error) {
	return Load(defaultTargets, DefaultConfigName, fixturesDir, DefaultFuncs)
}

// LoadFile loads a target table from path.
func LoadFile(path, fixturesDir string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suites config '%s': %w", path, err)
	}
	return Load(data, filepath.Base(path), fixturesDir, DefaultFuncs)
}

// Load parses a YAML target table. Relative manifest paths are resolved
// against fixturesDir. source names the table in statement locations.
func Load(data []byte, source, fixturesDir string, funcs FuncRegistry) (*Registry, error) {
	var cfg config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse suites config '%s': %w", source, err)
	}

	transform, err := lookupTransform(cfg.Transform)
	if err != nil {
		return nil, fmt.Errorf("suites config '%s': %w", source, err)
	}

	reg := NewRegistry()
	reg.Transform = transform

	for _, tc := range cfg.Targets {
		s, err := tc.build(cfg.Transform, source, fixturesDir, funcs)
		if err != nil {
			return nil, fmt.Errorf("suites config '%s': target '%s': %w", source, tc.ID, err)
		}
		if err := reg.Add(tc.ID, s); err != nil {
			return nil, fmt.Errorf("suites config '%s': %w", source, err)
		}
	}

	if cfg.DeriveArm64 {
		if err := addArm64Variants(reg); err != nil {
			return nil, fmt.Errorf("suites config '%s': %w", source, err)
		}
	}

	return reg, nil
}

func (tc targetConfig) build(defTransform, source, fixturesDir string, funcs FuncRegistry) (*expect.ExpectSuite, error) {
	s := &expect.ExpectSuite{
		Name:     tc.Name,
		Manifest: tc.Manifest,
		UseRpath: tc.UseRpath,
	}
	if s.Name == "" {
		s.Name = tc.ID
	}
	if s.Manifest != "" && !filepath.IsAbs(s.Manifest) {
		s.Manifest = filepath.Join(fixturesDir, s.Manifest)
	}

	name := tc.Transform
	if name == "" {
		name = defTransform
	}
	t, err := lookupTransform(name)
	if err != nil {
		return nil, err
	}
	s.Transform = t

	checkNum := 0
	for i, test := range tc.Tests {
		switch {
		case test.Suite != "" && len(test.Checks) > 0:
			return nil, fmt.Errorf("test #%d: 'suite' and 'checks' are mutually exclusive", i+1)
		case test.Suite != "":
			fn, ok := funcs[test.Suite]
			if !ok {
				msg := fmt.Sprintf("test #%d: unknown suite function '%s'", i+1, test.Suite)
				if hint, ok := closematch.Closest(test.Suite, funcs.Names()); ok {
					msg += fmt.Sprintf(", did you mean '%s'?", hint)
				}
				return nil, errors.New(msg)
			}
			s.Tests = append(s.Tests, expect.Test{Name: test.Suite, Func: fn, Params: expect.Params(test.Params)})
		case len(test.Checks) > 0:
			fn, err := declarative(fmt.Sprintf("%s:%s", source, tc.ID), checkNum, test.Checks)
			if err != nil {
				return nil, fmt.Errorf("test #%d: %w", i+1, err)
			}
			checkNum += len(test.Checks)
			s.Tests = append(s.Tests, expect.Test{Name: "checks", Func: fn})
		default:
			return nil, fmt.Errorf("test #%d: neither 'suite' nor 'checks' is set", i+1)
		}
	}

	return s, nil
}

// declarative compiles YAML checks into a suite function. Check n is
// reported at "<loc>#<n>", numbered from offset+1.
func declarative(loc string, offset int, checks []checkConfig) (expect.SuiteFunc, error) {
	type statement struct {
		loc      string
		patterns []string
		desc     string
		steps    []step
	}

	stmts := make([]statement, 0, len(checks))
	for i, cc := range checks {
		patterns, err := toPatterns(cc.Expect)
		if err != nil {
			return nil, fmt.Errorf("check #%d: %w", offset+i+1, err)
		}
		st := statement{
			loc:      fmt.Sprintf("%s#%d", loc, offset+i+1),
			patterns: patterns,
			desc:     cc.Desc,
		}
		for _, raw := range cc.Steps {
			sp, err := parseStep(raw)
			if err != nil {
				return nil, fmt.Errorf("check #%d: %w", offset+i+1, err)
			}
			st.steps = append(st.steps, sp)
		}
		stmts = append(stmts, st)
	}

	return func(e *expect.Engine, _ expect.Params) error {
		for _, st := range stmts {
			c := e.ExpectAt(st.loc, st.patterns, st.desc)
			for _, sp := range st.steps {
				c.Step(sp.token, sp.args...)
			}
		}
		return nil
	}, nil
}

// lookupTransform resolves a transform name, "" and "none" mean no hook.
func lookupTransform(name string) (fileinfo.Transform, error) {
	if name == "" || name == "none" {
		return nil, nil
	}
	t, ok := Transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform '%s'", name)
	}
	return t, nil
}

func toPatterns(v any) ([]string, error) {
	switch v := v.(type) {
	case string:
		if v == "" {
			return nil, errors.New("'expect' is empty")
		}
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("'expect' must list non-empty strings, got %v", e)
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, errors.New("'expect' is empty")
		}
		return out, nil
	case nil:
		return nil, errors.New("'expect' is not set")
	default:
		return nil, fmt.Errorf("'expect' must be a string or a list, got %T", v)
	}
}

// parseStep accepts "token" and {token: argument}.
func parseStep(raw any) (step, error) {
	var sp step
	switch v := raw.(type) {
	case string:
		sp.token = v
	case map[any]any:
		if len(v) != 1 {
			return sp, fmt.Errorf("step %v: want exactly one key", v)
		}
		for k, arg := range v {
			key, ok := k.(string)
			if !ok {
				return sp, fmt.Errorf("step %v: key is not a string", v)
			}
			sp.token, sp.args = key, []any{arg}
		}
	default:
		return sp, fmt.Errorf("step %v: want a string or a single key mapping", raw)
	}

	if _, ok := expect.ParseVerb(sp.token); ok {
		return sp, nil
	}
	if _, ok := fileinfo.CanonicalAttr(sp.token); ok {
		return sp, nil
	}
	msg := fmt.Sprintf("unknown step '%s'", sp.token)
	if hint, ok := closematch.Closest(sp.token, stepTokens()); ok {
		msg += fmt.Sprintf(", did you mean '%s'?", hint)
	}
	return sp, errors.New(msg)
}

func stepTokens() []string {
	return slices.Concat(fileinfo.AttrNames(), expect.VerbTokens())
}

var arm64Families = []string{"alpine", "ubuntu", "debian", "amazonlinux"}

// addArm64Variants derives an arm64 suite from every amd64 target of a
// family that ships arm64 packages. FIPS targets and amazonlinux 2022 have
// no arm64 build.
func addArm64Variants(reg *Registry) error {
	for _, id := range reg.IDs() {
		family, _, _ := strings.Cut(id, "-")
		if !slices.Contains(arm64Families, family) ||
			id == "amazonlinux-2022-amd64" ||
			strings.HasSuffix(id, "-fips") ||
			!strings.Contains(id, "-amd64") {
			continue
		}

		armID := strings.Replace(id, "-amd64", "-arm64", 1)
		if _, err := reg.Lookup(armID); err == nil {
			continue
		}

		base, _ := reg.Lookup(id)
		v := base.Variant(expect.Override{
			Name:       strings.Replace(base.Name, "(amd64)", "(arm64)", 1),
			Manifest:   strings.Replace(base.Manifest, "-amd64.txt", "-arm64.txt", 1),
			ExtraTests: []expect.Test{{Name: "arm64", Func: Arm64}},
		})
		if err := reg.Add(armID, v); err != nil {
			return err
		}
	}
	return nil
}
