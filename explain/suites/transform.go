// SPDX-License-Identifier: GPL-3.0-or-later

package suites

import (
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
	"github.com/netdata/netdata/go/explainmanifest/pkg/matcher"
)

const (
	kongLibDir     = "/usr/local/kong/lib"
	removedRunpath = "<removed in manifest>"
)

var (
	// libtool injects build sandbox rpaths into these.
	libtoolLibs = matcher.Must(matcher.NewPathMatcher(
		"**/kong/lib/libxslt.so*",
		"**/kong/lib/libexslt.so*",
		"**/kong/lib/libjq.so*",
	))
	// boringssl hardcodes its build directory.
	boringsslLibs = matcher.Must(matcher.NewPathMatcher("**/kong/lib/libssl.so.1.1"))
)

// Transforms maps the transform names used in target tables to hooks.
var Transforms = map[string]fileinfo.Transform{
	"kong": KongTransform,
}

// KongTransform drops build-environment noise from the rpath and runpath
// of Kong bundled libraries.
func KongTransform(f *fileinfo.FileInfo) {
	b := f.Binary
	if b == nil {
		return
	}

	if libtoolLibs.MatchString(f.Path) {
		switch {
		case strings.Contains(b.Rpath, kongLibDir):
			b.Rpath = kongLibDir
		case strings.Contains(b.Runpath, kongLibDir):
			b.Runpath = kongLibDir
		}
	}

	if boringsslLibs.MatchString(f.Path) {
		switch {
		case strings.Contains(b.Runpath, "boringssl_fips/build/crypto"):
			b.Runpath = removedRunpath
		case strings.Contains(b.Rpath, "boringssl_fips/build/crypto"):
			b.Rpath = removedRunpath
		}
	}
}
