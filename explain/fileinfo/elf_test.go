// SPDX-License-Identifier: GPL-3.0-or-later

package fileinfo

import (
	"debug/elf"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo/elftest"
)

func TestParseBinary(t *testing.T) {
	tests := map[string]struct {
		spec    elftest.Spec
		check   func(t *testing.T, b *BinaryInfo)
		wantErr bool
	}{
		"dynamic section": {
			spec: elftest.Spec{
				Needed:  []string{"libssl.so.3", "libcrypto.so.3", "libc.so.6"},
				Rpath:   []string{"/tmp/build/lib", "/usr/local/kong/lib"},
				Runpath: []string{"/usr/local/openresty/luajit/lib"},
			},
			check: func(t *testing.T, b *BinaryInfo) {
				assert.Equal(t, "x86_64", b.Arch)
				assert.Equal(t, []string{"libssl.so.3", "libcrypto.so.3", "libc.so.6"}, b.NeededLibraries)
				assert.Equal(t, "/usr/local/kong/lib", b.Rpath)
				assert.Equal(t, "/usr/local/openresty/luajit/lib", b.Runpath)
			},
		},
		"aarch64": {
			spec: elftest.Spec{Machine: elf.EM_AARCH64, Needed: []string{"libc.so.6"}},
			check: func(t *testing.T, b *BinaryInfo) {
				assert.Equal(t, "AARCH64", b.Arch)
				assert.Empty(t, b.Rpath)
				assert.Empty(t, b.Runpath)
			},
		},
		"symbols": {
			spec: elftest.Spec{
				Exported: []string{"pcre_free", "ngx_http_lua_kong_ffi_get_static_tag"},
				Imported: []string{"malloc", "free", "malloc"},
				Locals:   []string{"ngx_worker_loop"},
			},
			check: func(t *testing.T, b *BinaryInfo) {
				exported, err := b.ExportedSymbols()
				require.NoError(t, err)
				assert.Equal(t, []string{"ngx_http_lua_kong_ffi_get_static_tag", "pcre_free"}, exported)

				imported, err := b.ImportedSymbols()
				require.NoError(t, err)
				assert.Equal(t, []string{"free", "malloc"}, imported)

				functions, err := b.Functions()
				require.NoError(t, err)
				assert.Equal(t, []string{"ngx_http_lua_kong_ffi_get_static_tag", "ngx_worker_loop", "pcre_free"}, functions)
			},
		},
		"version requirements are version sorted": {
			spec: elftest.Spec{
				Needed: []string{"libc.so.6", "libstdc++.so.6"},
				Needs: []elftest.Need{
					{File: "libc.so.6", Versions: []string{"GLIBC_2.17", "GLIBC_2.2.5", "GLIBC_2.3"}},
					{File: "libstdc++.so.6", Versions: []string{"GLIBCXX_3.4.29", "CXXABI_1.3.9", "GLIBCXX_3.4"}},
				},
			},
			check: func(t *testing.T, b *BinaryInfo) {
				reqs, err := b.VersionRequirements()
				require.NoError(t, err)
				assert.Equal(t, map[string][]string{
					"libc.so.6":      {"GLIBC_2.2.5", "GLIBC_2.3", "GLIBC_2.17"},
					"libstdc++.so.6": {"CXXABI_1.3.9", "GLIBCXX_3.4", "GLIBCXX_3.4.29"},
				}, reqs)
			},
		},
		"no version requirements": {
			spec: elftest.Spec{Needed: []string{"libc.so.6"}},
			check: func(t *testing.T, b *BinaryInfo) {
				reqs, err := b.VersionRequirements()
				require.NoError(t, err)
				assert.Empty(t, reqs)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lib", "libtest.so")
			elftest.Write(t, path, test.spec)

			b, err := parseBinary(path, nil)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			test.check(t, b)
		})
	}
}

func TestParseBinary_NotELF(t *testing.T) {
	dir := t.TempDir()

	tests := map[string][]byte{
		"text file":   []byte("#!/bin/sh\necho hello\n"),
		"empty file":  nil,
		"short magic": []byte("\x7fEL"),
		"bad header":  append([]byte(elf.ELFMAG), make([]byte, 12)...),
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, content, 0o644))

			_, err := parseBinary(path, nil)
			assert.Error(t, err)
		})
	}
}

func TestParseBinary_DamagedVersionNeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib", "libtest.so")
	elftest.Write(t, path, elftest.Spec{
		Needed:   []string{"libc.so.6"},
		Exported: []string{"foo_init"},
		Needs:    []elftest.Need{{File: "libc.so.6", Versions: []string{"GLIBC_2.17"}}},
	})
	// vn_version 2 is not a known verneed revision
	overwriteSection(t, path, ".gnu.version_r", 0, []byte{2, 0})

	b, err := parseBinary(path, nil)
	require.NoError(t, err)

	reqs, err := b.VersionRequirements()
	require.NoError(t, err)
	assert.Empty(t, reqs)

	exported, err := b.ExportedSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"foo_init"}, exported)
}

type countingSource struct {
	symbolCalls  atomic.Int32
	versionCalls atomic.Int32
}

func (s *countingSource) symbolTables() (symbolTables, error) {
	s.symbolCalls.Add(1)
	return symbolTables{exported: []string{"a"}, imported: []string{"b"}, functions: []string{"c"}}, nil
}

func (s *countingSource) versionNeeds() (map[string][]string, error) {
	s.versionCalls.Add(1)
	return map[string][]string{"libc.so.6": {"GLIBC_2.17"}}, nil
}

func TestBinaryInfo_LazyAttributesComputedOnce(t *testing.T) {
	src := &countingSource{}
	b := &BinaryInfo{src: src}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.ExportedSymbols()
			_, _ = b.ImportedSymbols()
			_, _ = b.Functions()
			_, _ = b.VersionRequirements()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.symbolCalls.Load())
	assert.Equal(t, int32(1), src.versionCalls.Load())
}

func TestNewBinaryInfo(t *testing.T) {
	b := NewBinaryInfo(ELFData{
		Arch:            "x86_64",
		NeededLibraries: []string{"libc.so.6"},
		ExportedSymbols: []string{"b", "a", "a"},
		VersionRequirements: map[string][]string{
			"libc.so.6": {"GLIBC_2.26", "GLIBC_2.17"},
		},
	})

	exported, err := b.ExportedSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, exported)

	imported, err := b.ImportedSymbols()
	require.NoError(t, err)
	assert.Empty(t, imported)

	reqs, err := b.VersionRequirements()
	require.NoError(t, err)
	assert.Equal(t, []string{"GLIBC_2.17", "GLIBC_2.26"}, reqs["libc.so.6"])
}
