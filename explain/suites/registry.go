// SPDX-License-Identifier: GPL-3.0-or-later

package suites

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/explain/expect"
	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
	"github.com/netdata/netdata/go/explainmanifest/pkg/closematch"
)

// ErrUnknownSuite is returned by Lookup for a target that is not in the
// registry.
var ErrUnknownSuite = errors.New("unknown suite")

// Registry maps target identifiers to suites, keeping declaration order.
type Registry struct {
	// Transform is the table wide hook, used when no suite is selected.
	Transform fileinfo.Transform

	suites map[string]*expect.ExpectSuite
	ids    []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{suites: make(map[string]*expect.ExpectSuite)}
}

// Add registers s under id.
func (r *Registry) Add(id string, s *expect.ExpectSuite) error {
	if id == "" {
		return errors.New("suite id is empty")
	}
	if _, ok := r.suites[id]; ok {
		return fmt.Errorf("suite '%s' is already in registry", id)
	}
	r.suites[id] = s
	r.ids = append(r.ids, id)
	return nil
}

// Lookup returns the suite registered under id. The error for an unknown
// id suggests the closest registered one.
func (r *Registry) Lookup(id string) (*expect.ExpectSuite, error) {
	if s, ok := r.suites[id]; ok {
		return s, nil
	}
	if hint, ok := closematch.Closest(id, r.ids); ok {
		return nil, fmt.Errorf("%w '%s', did you mean '%s'?", ErrUnknownSuite, id, hint)
	}
	return nil, fmt.Errorf("%w '%s' (known: %s)", ErrUnknownSuite, id, strings.Join(r.ids, ", "))
}

// IDs returns the registered identifiers in declaration order.
func (r *Registry) IDs() []string { return slices.Clone(r.ids) }

// Len returns the number of registered suites.
func (r *Registry) Len() int { return len(r.ids) }
