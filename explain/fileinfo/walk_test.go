// SPDX-License-Identifier: GPL-3.0-or-later

package fileinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo/elftest"
)

func prepareTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	write := func(rel, content string, perm os.FileMode) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), perm))
	}

	write("etc/kong/kong.logrotate", "/usr/local/kong/logs/*.log {}\n", 0o644)
	write("etc/.hidden", "secret", 0o600)
	write(".git/config", "[core]", 0o644)
	write("usr/local/kong/lib/libtext.so", "not an elf file", 0o755)
	write("usr/local/bin/kong", "#!/usr/bin/env resty\n", 0o755)

	elftest.Write(t, filepath.Join(root, "usr/local/kong/lib/libbar.so"), elftest.Spec{
		Needed:  []string{"libc.so.6"},
		Runpath: []string{"/usr/local/kong/lib"},
		Needs: []elftest.Need{
			{File: "libc.so.6", Versions: []string{"GLIBC_2.26", "GLIBC_2.17"}},
		},
	})
	elftest.Write(t, filepath.Join(root, "usr/local/openresty/nginx/sbin/nginx"), elftest.Spec{
		Needed: []string{"libcrypt.so.1", "libc.so.6"},
		Rpath:  []string{"/usr/local/openresty/luajit/lib:/usr/local/kong/lib"},
		Rodata: []string{testCompileFlags, "built with OpenSSL 3.1.4 24 Oct 2023 (running with "},
	})

	require.NoError(t, os.Symlink("/nonexistent", filepath.Join(root, "usr/local/kong/lib/libfoo.so")))
	require.NoError(t, os.Symlink("libbar.so", filepath.Join(root, "usr/local/kong/lib/libbar.so.1")))
	require.NoError(t, os.Symlink("../kong", filepath.Join(root, "usr/local/kong/lib/loop")))

	return root
}

func byRelPath(infos []*FileInfo) map[string]*FileInfo {
	m := make(map[string]*FileInfo, len(infos))
	for _, f := range infos {
		m[f.RelPath] = f
	}
	return m
}

func TestWalker_Walk(t *testing.T) {
	root := prepareTree(t)

	infos, err := (&Walker{}).Walk(context.Background(), root)
	require.NoError(t, err)

	var rels []string
	for _, f := range infos {
		rels = append(rels, f.RelPath)
	}
	assert.Equal(t, []string{
		"/etc",
		"/etc/kong",
		"/etc/kong/kong.logrotate",
		"/usr",
		"/usr/local",
		"/usr/local/bin",
		"/usr/local/bin/kong",
		"/usr/local/kong",
		"/usr/local/kong/lib",
		"/usr/local/kong/lib/libbar.so",
		"/usr/local/kong/lib/libbar.so.1",
		"/usr/local/kong/lib/libfoo.so",
		"/usr/local/kong/lib/libtext.so",
		"/usr/local/kong/lib/loop",
		"/usr/local/openresty",
		"/usr/local/openresty/nginx",
		"/usr/local/openresty/nginx/sbin",
		"/usr/local/openresty/nginx/sbin/nginx",
	}, rels)

	files := byRelPath(infos)

	t.Run("directory", func(t *testing.T) {
		f := files["/etc/kong"]
		assert.True(t, f.IsDir)
		assert.Equal(t, KindFile, f.Kind)
		v, ok := f.Attr("directory")
		assert.True(t, ok)
		assert.Equal(t, true, v)
	})

	t.Run("plain file", func(t *testing.T) {
		f := files["/etc/kong/kong.logrotate"]
		assert.Equal(t, KindFile, f.Kind)
		assert.Equal(t, "0644", f.FileMode())
		assert.Equal(t, uint32(0o100644), f.Mode)
		assert.True(t, f.HasSize)
		assert.EqualValues(t, len("/usr/local/kong/logs/*.log {}\n"), f.Size)

		text, ok := f.Attr("text_content")
		assert.True(t, ok)
		assert.Equal(t, "/usr/local/kong/logs/*.log {}\n", text)

		_, ok = f.Attr("rpath")
		assert.False(t, ok)
	})

	t.Run("dangling symlink in a library dir", func(t *testing.T) {
		f := files["/usr/local/kong/lib/libfoo.so"]
		require.NotNil(t, f)
		assert.True(t, f.IsLink)
		assert.Equal(t, "/nonexistent", f.Link)
		assert.Equal(t, KindFile, f.Kind)
		assert.Nil(t, f.Binary)
		assert.False(t, f.HasSize)

		_, ok := f.Attr("size")
		assert.False(t, ok)
		_, ok = f.Attr("needed_libraries")
		assert.False(t, ok)
	})

	t.Run("symlinked directory is not entered", func(t *testing.T) {
		f := files["/usr/local/kong/lib/loop"]
		assert.True(t, f.IsLink)
		assert.False(t, f.IsDir)
		assert.NotContains(t, files, "/usr/local/kong/lib/loop/lib")
	})

	t.Run("non ELF in a library dir", func(t *testing.T) {
		f := files["/usr/local/kong/lib/libtext.so"]
		assert.Equal(t, KindFile, f.Kind)
		assert.Nil(t, f.Binary)
		_, ok := f.Attr("version_requirement")
		assert.False(t, ok)
	})

	t.Run("ELF library", func(t *testing.T) {
		f := files["/usr/local/kong/lib/libbar.so"]
		require.Equal(t, KindBinary, f.Kind)
		assert.Equal(t, []string{"libc.so.6"}, f.Binary.NeededLibraries)
		assert.Equal(t, "/usr/local/kong/lib", f.Binary.Runpath)

		v, ok := f.Attr("version_requirement")
		require.True(t, ok)
		assert.Equal(t, map[string][]string{"libc.so.6": {"GLIBC_2.17", "GLIBC_2.26"}}, v)

		v, ok = f.Attr("rpath")
		assert.True(t, ok)
		assert.Equal(t, "", v)
	})

	t.Run("nginx", func(t *testing.T) {
		f := files["/usr/local/openresty/nginx/sbin/nginx"]
		require.Equal(t, KindNginx, f.Kind)
		require.NotNil(t, f.Nginx)
		assert.Equal(t, "/usr/local/openresty/luajit/lib:/usr/local/kong/lib", f.Binary.Rpath)

		v, ok := f.Attr("nginx_compiled_openssl")
		assert.True(t, ok)
		assert.Equal(t, "OpenSSL 3.1.4 24 Oct 2023", v)

		v, ok = f.Attr("has_dwarf_info")
		assert.True(t, ok)
		assert.Equal(t, false, v)
	})

	t.Run("hidden entries", func(t *testing.T) {
		assert.NotContains(t, files, "/etc/.hidden")
		assert.NotContains(t, files, "/.git")
		assert.NotContains(t, files, "/.git/config")
	})
}

func TestWalker_Walk_SkipBinaryLinks(t *testing.T) {
	root := prepareTree(t)

	infos, err := (&Walker{SkipBinaryLinks: true}).Walk(context.Background(), root)
	require.NoError(t, err)

	files := byRelPath(infos)
	assert.NotContains(t, files, "/usr/local/kong/lib/libfoo.so")
	assert.NotContains(t, files, "/usr/local/kong/lib/libbar.so.1")
	assert.NotContains(t, files, "/usr/local/kong/lib/loop")
	assert.Contains(t, files, "/usr/local/kong/lib/libbar.so")
}

func TestWalker_Walk_Patterns(t *testing.T) {
	root := prepareTree(t)

	w := &Walker{Patterns: []string{"/usr/local/kong/lib/*.so", "**/*.logrotate"}}
	infos, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	var rels []string
	for _, f := range infos {
		rels = append(rels, f.RelPath)
	}
	assert.Equal(t, []string{
		"/etc/kong/kong.logrotate",
		"/usr/local/kong/lib/libbar.so",
		"/usr/local/kong/lib/libfoo.so",
		"/usr/local/kong/lib/libtext.so",
	}, rels)
}

func TestWalker_Walk_Transform(t *testing.T) {
	root := prepareTree(t)

	var seen []string
	w := &Walker{
		Workers: 2,
		Transform: func(f *FileInfo) {
			seen = append(seen, f.RelPath)
			if f.Binary != nil && f.Binary.Runpath != "" {
				f.Binary.Runpath = "<removed in manifest>"
			}
		},
	}
	infos, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	assert.Len(t, seen, len(infos))
	assert.IsIncreasing(t, seen)
	assert.Equal(t, "<removed in manifest>", byRelPath(infos)["/usr/local/kong/lib/libbar.so"].Binary.Runpath)
}

func TestWalker_Walk_Idempotent(t *testing.T) {
	root := prepareTree(t)

	snapshot := func() map[string][]any {
		infos, err := (&Walker{}).Walk(context.Background(), root)
		require.NoError(t, err)

		out := make(map[string][]any)
		for _, f := range infos {
			for _, name := range []string{"nginx_modules", "version_requirement", "exported_symbols", "needed_libraries"} {
				v, _ := f.Attr(name)
				out[f.RelPath] = append(out[f.RelPath], v)
			}
		}
		return out
	}

	assert.Equal(t, snapshot(), snapshot())
}

func TestWalker_Walk_NotDirectory(t *testing.T) {
	root := prepareTree(t)

	_, err := (&Walker{}).Walk(context.Background(), filepath.Join(root, "etc/kong/kong.logrotate"))
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = (&Walker{}).Walk(context.Background(), filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestWalker_Walk_Canceled(t *testing.T) {
	root := prepareTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Walker{}).Walk(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	tests := map[string]Kind{
		"/usr/local/openresty/nginx/sbin/nginx":  KindNginx,
		"usr/sbin/nginx":                         KindNginx,
		"/usr/local/openresty/nginx/nginx":       KindFile,
		"/usr/local/kong/lib/libssl.so.3":        KindBinary,
		"/usr/local/lib/lua/5.1/lpeg.so":         KindBinary,
		"/usr/local/bin/kong":                    KindBinary,
		"/usr/lib64/libz.a":                      KindBinary,
		"/etc/kong/kong.conf.default":            KindFile,
		"/usr/local/share/lua/5.1/kong/init.lua": KindFile,
	}

	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, Classify(path))
		})
	}
}
