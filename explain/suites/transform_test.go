// SPDX-License-Identifier: GPL-3.0-or-later

package suites

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
)

func TestKongTransform(t *testing.T) {
	const sandbox = "/root/.cache/bazel/_bazel_root/8f1b/execroot/kong/bazel-out/k8-fastbuild/bin/external/libxslt/lib"

	tests := map[string]struct {
		path        string
		rpath       string
		runpath     string
		wantRpath   string
		wantRunpath string
	}{
		"libxslt rpath collapsed": {
			path:      "/tmp/pkg/usr/local/kong/lib/libxslt.so.1.1.34",
			rpath:     sandbox + ":/usr/local/kong/lib",
			wantRpath: "/usr/local/kong/lib",
		},
		"libjq runpath collapsed": {
			path:        "/tmp/pkg/usr/local/kong/lib/libjq.so.1",
			runpath:     sandbox + ":/usr/local/kong/lib",
			wantRunpath: "/usr/local/kong/lib",
		},
		"libexslt rpath preferred over runpath": {
			path:        "/tmp/pkg/usr/local/kong/lib/libexslt.so",
			rpath:       "/usr/local/kong/lib:" + sandbox,
			runpath:     "/usr/local/kong/lib:" + sandbox,
			wantRpath:   "/usr/local/kong/lib",
			wantRunpath: "/usr/local/kong/lib:" + sandbox,
		},
		"libxslt without kong lib kept": {
			path:      "/tmp/pkg/usr/local/kong/lib/libxslt.so",
			rpath:     sandbox,
			wantRpath: sandbox,
		},
		"boringssl runpath redacted": {
			path:        "/tmp/pkg/usr/local/kong/lib/libssl.so.1.1",
			runpath:     "/work/boringssl_fips/build/crypto:/usr/local/kong/lib",
			wantRunpath: "<removed in manifest>",
		},
		"boringssl rpath redacted": {
			path:      "/tmp/pkg/usr/local/kong/lib/libssl.so.1.1",
			rpath:     "/work/boringssl_fips/build/crypto",
			wantRpath: "<removed in manifest>",
		},
		"other library untouched": {
			path:      "/tmp/pkg/usr/local/kong/lib/libssl.so.3",
			rpath:     "/work/boringssl_fips/build/crypto",
			wantRpath: "/work/boringssl_fips/build/crypto",
		},
		"outside kong lib untouched": {
			path:      "/tmp/pkg/usr/lib/libxslt.so.1",
			rpath:     sandbox + ":/usr/local/kong/lib",
			wantRpath: sandbox + ":/usr/local/kong/lib",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := &fileinfo.FileInfo{
				Path:   test.path,
				Kind:   fileinfo.KindBinary,
				Binary: fileinfo.NewBinaryInfo(fileinfo.ELFData{Rpath: test.rpath, Runpath: test.runpath}),
			}

			KongTransform(f)

			assert.Equal(t, test.wantRpath, f.Binary.Rpath)
			assert.Equal(t, test.wantRunpath, f.Binary.Runpath)
		})
	}
}

func TestKongTransform_PlainFile(t *testing.T) {
	f := &fileinfo.FileInfo{Path: "/usr/local/kong/lib/libxslt.so.txt"}

	assert.NotPanics(t, func() { KongTransform(f) })
	assert.Nil(t, f.Binary)
}
