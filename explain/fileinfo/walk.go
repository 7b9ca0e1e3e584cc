// SPDX-License-Identifier: GPL-3.0-or-later

package fileinfo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/netdata/netdata/go/explainmanifest/logger"
	"github.com/netdata/netdata/go/explainmanifest/pkg/matcher"
)

// Transform rewrites noisy attributes of a freshly built record in place.
type Transform func(f *FileInfo)

// Walker builds the records of a directory tree.
type Walker struct {
	*logger.Logger

	// Patterns restricts the walk to matching relative paths, all paths when empty.
	Patterns []string
	// Transform is applied to every record in walk order.
	Transform Transform
	// SkipBinaryLinks drops symlinks found where binaries are expected
	// instead of recording them as links.
	SkipBinaryLinks bool
	// Workers bounds the number of files parsed concurrently.
	Workers int
}

var binaryDirs = map[string]bool{"bin": true, "lib": true, "lib64": true, "sbin": true}

// Classify decides the record kind from the relative path alone.
func Classify(relPath string) Kind {
	relPath = "/" + strings.TrimPrefix(relPath, "/")

	if path.Base(relPath) == "nginx" && strings.HasSuffix(relPath, "sbin/nginx") {
		return KindNginx
	}
	if path.Ext(relPath) == ".so" || binaryDirs[path.Base(path.Dir(relPath))] {
		return KindBinary
	}
	return KindFile
}

// Walk returns the records under root sorted by relative path. Hidden
// entries are not listed and symlinks are never followed.
func (w *Walker) Walk(ctx context.Context, root string) ([]*FileInfo, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("'%s': %w", root, ErrNotDirectory)
	}

	rels, err := w.collect(ctx, root)
	if err != nil {
		return nil, err
	}
	w.Debugf("walk '%s': %d entries matched", root, len(rels))

	mapper := iter.Mapper[string, *FileInfo]{MaxGoroutines: w.workers()}

	infos, err := mapper.MapErr(rels, func(rel *string) (*FileInfo, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return w.build(filepath.Join(root, filepath.FromSlash(*rel)), "/"+*rel)
	})
	if err != nil {
		return nil, err
	}

	infos = slices.DeleteFunc(infos, func(f *FileInfo) bool { return f == nil })

	if w.Transform != nil {
		for _, f := range infos {
			w.Transform(f)
		}
	}

	return infos, nil
}

func (w *Walker) workers() int {
	if w.Workers > 0 {
		return w.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// collect returns the sorted slash separated paths relative to root.
func (w *Walker) collect(ctx context.Context, root string) ([]string, error) {
	var pm matcher.Matcher = matcher.TRUE()
	if len(w.Patterns) > 0 {
		m, err := matcher.NewPathMatcher(w.Patterns...)
		if err != nil {
			return nil, fmt.Errorf("file list: %w", err)
		}
		pm = m
	}

	var rels []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if pm.MatchString(rel) {
			rels = append(rels, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk '%s': %w", root, err)
	}

	slices.Sort(rels)

	return rels, nil
}

// build returns nil for entries that are not listed.
func (w *Walker) build(path, relPath string) (*FileInfo, error) {
	f, err := newFileInfo(path, relPath)
	if err != nil {
		return nil, err
	}

	kind := Classify(relPath)
	if kind == KindFile || f.IsDir {
		return f, nil
	}
	if f.IsLink {
		if w.SkipBinaryLinks {
			return nil, nil
		}
		return f, nil
	}

	b, err := parseBinary(path, w.Logger)
	if err != nil {
		w.Debugf("'%s' is not a usable ELF file, listed as a plain file: %v", relPath, err)
		return f, nil
	}
	f.Kind, f.Binary = KindBinary, b

	if kind == KindNginx {
		n, err := parseNginx(path, w.Logger)
		if err != nil {
			w.Debugf("'%s': reading nginx build details: %v", relPath, err)
			return f, nil
		}
		f.Kind, f.Nginx = KindNginx, n
	}

	return f, nil
}
