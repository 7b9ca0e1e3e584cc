// SPDX-License-Identifier: GPL-3.0-or-later

package suites

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/explainmanifest/explain/expect"
	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
)

func TestDefault(t *testing.T) {
	reg, err := Default("/src/explain_manifest")
	require.NoError(t, err)

	wantIDs := []string{
		"alpine-amd64",
		"amazonlinux-2-amd64",
		"amazonlinux-2022-amd64",
		"el7-amd64",
		"el8-amd64-fips",
		"ubuntu-20.04-amd64",
		"ubuntu-20.04-amd64-fips",
		"ubuntu-22.04-amd64",
		"ubuntu-22.04-amd64-fips",
		"debian-10-amd64",
		"debian-11-amd64",
		"alpine-arm64",
		"amazonlinux-2-arm64",
		"ubuntu-20.04-arm64",
		"ubuntu-22.04-arm64",
		"debian-10-arm64",
		"debian-11-arm64",
	}
	assert.Equal(t, wantIDs, reg.IDs())

	el7, err := reg.Lookup("el7-amd64")
	require.NoError(t, err)
	assert.Equal(t, "Redhat 7 (amd64)", el7.Name)
	assert.Equal(t, filepath.Join("/src/explain_manifest", "fixtures/el7-amd64.txt"), el7.Manifest)
	assert.True(t, el7.UseRpath)
	assert.NotNil(t, el7.Transform)
	require.Len(t, el7.Tests, 2)
	assert.Equal(t, "common", el7.Tests[0].Name)
	assert.Equal(t, expect.Params{"max_libc": "2.17", "max_libcxx": "3.4.19", "max_cxxabi": "1.3.7"}, el7.Tests[1].Params)

	fips, err := reg.Lookup("el8-amd64-fips")
	require.NoError(t, err)
	isFips, err := fips.Tests[0].Params.Bool("fips")
	require.NoError(t, err)
	assert.True(t, isFips)

	alpine, err := reg.Lookup("alpine-amd64")
	require.NoError(t, err)
	_, hasLibc := alpine.Tests[1].Params["max_libc"]
	assert.False(t, hasLibc)
}

func TestDefault_Arm64Variant(t *testing.T) {
	reg, err := Default("fixtures-root")
	require.NoError(t, err)

	amd, err := reg.Lookup("ubuntu-22.04-amd64")
	require.NoError(t, err)
	arm, err := reg.Lookup("ubuntu-22.04-arm64")
	require.NoError(t, err)

	assert.Equal(t, "Ubuntu 22.04 (arm64)", arm.Name)
	assert.Equal(t, filepath.Join("fixtures-root", "fixtures/ubuntu-22.04-arm64.txt"), arm.Manifest)
	assert.Equal(t, amd.UseRpath, arm.UseRpath)
	require.Len(t, arm.Tests, len(amd.Tests)+1)
	assert.Equal(t, "arm64", arm.Tests[len(arm.Tests)-1].Name)

	arm.Tests[1].Params["max_libc"] = "9.99"
	assert.Equal(t, "2.35", amd.Tests[1].Params["max_libc"])

	for _, id := range []string{"amazonlinux-2022-arm64", "el7-arm64", "ubuntu-22.04-arm64-fips"} {
		_, err := reg.Lookup(id)
		assert.ErrorIs(t, err, ErrUnknownSuite, id)
	}
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		config  string
		wantErr string
	}{
		"minimal": {
			config: `
targets:
  - id: local
    tests:
      - suite: arm64
`,
		},
		"unknown field": {
			config: `
targets:
  - id: local
    use_rpaths: true
`,
			wantErr: "use_rpaths",
		},
		"unknown suite function": {
			config: `
targets:
  - id: local
    tests:
      - suite: comon
`,
			wantErr: "unknown suite function 'comon', did you mean 'common'?",
		},
		"unknown transform": {
			config: `
transform: debian
targets:
  - id: local
`,
			wantErr: "unknown transform 'debian'",
		},
		"suite and checks": {
			config: `
targets:
  - id: local
    tests:
      - suite: common
        checks:
          - expect: "**"
            steps: [exists]
`,
			wantErr: "mutually exclusive",
		},
		"empty test": {
			config: `
targets:
  - id: local
    tests:
      - params: {fips: true}
`,
			wantErr: "neither 'suite' nor 'checks' is set",
		},
		"duplicate id": {
			config: `
targets:
  - id: local
  - id: local
`,
			wantErr: "already in registry",
		},
		"unknown step": {
			config: `
targets:
  - id: local
    tests:
      - checks:
          - expect: "**/*.so"
            steps: [arhc]
`,
			wantErr: "unknown step 'arhc', did you mean 'arch'?",
		},
		"step with two keys": {
			config: `
targets:
  - id: local
    tests:
      - checks:
          - expect: "**/*.so"
            steps:
              - {arch: x, equals: y}
`,
			wantErr: "want exactly one key",
		},
		"missing expect": {
			config: `
targets:
  - id: local
    tests:
      - checks:
          - steps: [exists]
`,
			wantErr: "'expect' is not set",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			reg, err := Load([]byte(test.config), "custom.yaml", ".", DefaultFuncs)

			if test.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, []string{"local"}, reg.IDs())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.wantErr)
		})
	}
}

func TestLoad_DeclarativeChecks(t *testing.T) {
	const config = `
transform: none
targets:
  - id: local
    name: Local build
    manifest: /abs/local.txt
    use_rpath: true
    tests:
      - checks:
          - expect: /usr/local/openresty/nginx/sbin/nginx
            desc: nginx rpath should contain kong lib
            steps:
              - runpath
              - equals: /usr/local/kong/lib
          - expect: ["**/*.so", "**/*.so.*"]
            desc: libc cap
            steps:
              - version_requirement
              - key: libc.so.6
              - is_not
              - greater_than: GLIBC_2.28
      - suite: arm64
      - checks:
          - expect: /etc/kong/kong.conf
            desc: no default config
            steps: [does_not, exist]
`
	reg, err := Load([]byte(config), "custom.yaml", "/ignored", DefaultFuncs)
	require.NoError(t, err)

	s, err := reg.Lookup("local")
	require.NoError(t, err)
	assert.Equal(t, "Local build", s.Name)
	assert.Equal(t, "/abs/local.txt", s.Manifest)
	assert.Nil(t, s.Transform)
	require.Len(t, s.Tests, 3)

	infos := []*fileinfo.FileInfo{
		{
			RelPath: "/usr/local/openresty/nginx/sbin/nginx",
			Kind:    fileinfo.KindBinary,
			Binary:  fileinfo.NewBinaryInfo(fileinfo.ELFData{Arch: "AARCH64", Rpath: "/usr/local/kong/lib"}),
		},
		{
			RelPath: "/usr/local/kong/lib/libfoo.so.1",
			Kind:    fileinfo.KindBinary,
			Binary: fileinfo.NewBinaryInfo(fileinfo.ELFData{
				Arch:                "x86_64",
				VersionRequirements: map[string][]string{"libc.so.6": {"GLIBC_2.34"}},
			}),
		},
	}

	var buf bytes.Buffer
	rep := expect.NewReporter(&buf)
	e := expect.NewEngine(infos, rep)
	require.NoError(t, e.Run(s))

	failures := rep.Failures()
	require.Len(t, failures, 2, "%v", failures)
	assert.Contains(t, failures[0], "custom.yaml:local#2: file /usr/local/kong/lib/libfoo.so.1 <version_requirement>")
	assert.Contains(t, failures[1], "'x86_64' does not equal to 'AARCH64'")
	assert.Contains(t, buf.String(), "[TEST] custom.yaml:local#1: nginx rpath should contain kong lib")
	assert.Contains(t, buf.String(), "[TEST] custom.yaml:local#3: no default config")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets:\n  - id: mine\n    manifest: mine.txt\n"), 0o644))

	reg, err := LoadFile(path, dir)
	require.NoError(t, err)

	s, err := reg.Lookup("mine")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mine.txt"), s.Manifest)
	assert.Equal(t, "mine", s.Name)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"), dir)
	assert.Error(t, err)
}
