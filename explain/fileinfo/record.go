// SPDX-License-Identifier: GPL-3.0-or-later

// Package fileinfo builds the per-file inventory of an extracted tree:
// ownership and permissions for every entry, dynamic linking metadata for
// ELF binaries and build details for the nginx executable.
package fileinfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"unicode/utf8"
)

// ErrNotDirectory is returned when the walk root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Kind is the classification of a record made at construction time.
type Kind int

const (
	KindFile Kind = iota
	KindBinary
	KindNginx
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindBinary:
		return "binary"
	case KindNginx:
		return "nginx"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FileInfo is one entry of the walked tree. Binary is set only for a
// successfully parsed ELF image, Nginx only for the nginx executable.
type FileInfo struct {
	Path    string // on-disk path
	RelPath string // always starts with "/"
	Kind    Kind

	Mode uint32 // st_mode of the entry itself, symlinks are not followed
	Uid  int
	Gid  int

	Size    int64
	HasSize bool // false for symlinks

	Link   string
	IsLink bool
	IsDir  bool

	Binary *BinaryInfo
	Nginx  *NginxInfo

	text lazy[string]
}

// FileMode is the permission part of Mode in the "0755" notation.
func (f *FileInfo) FileMode() string {
	return fmt.Sprintf("0%o", f.Mode&0o777)
}

// TextContent reads the file on first use. Non UTF-8 content is an error.
func (f *FileInfo) TextContent() (string, error) {
	return f.text.get(func() (string, error) {
		bs, err := os.ReadFile(f.Path)
		if err != nil {
			return "", err
		}
		if !utf8.Valid(bs) {
			return "", fmt.Errorf("'%s' is not a text file", f.RelPath)
		}
		return string(bs), nil
	})
}

// lazy is a value computed at most once, safe for concurrent use.
type lazy[T any] struct {
	once sync.Once
	v    T
	err  error
}

func (l *lazy[T]) get(fn func() (T, error)) (T, error) {
	l.once.Do(func() { l.v, l.err = fn() })
	return l.v, l.err
}

const (
	sIFREG  = 0o100000
	sIFDIR  = 0o040000
	sIFLNK  = 0o120000
	sIFIFO  = 0o010000
	sIFSOCK = 0o140000
	sIFCHR  = 0o020000
	sIFBLK  = 0o060000
	sISUID  = 0o4000
	sISGID  = 0o2000
	sISVTX  = 0o1000
)

// unixMode converts a portable file mode to the st_mode layout.
func unixMode(m fs.FileMode) uint32 {
	mode := uint32(m.Perm())

	switch {
	case m&fs.ModeDir != 0:
		mode |= sIFDIR
	case m&fs.ModeSymlink != 0:
		mode |= sIFLNK
	case m&fs.ModeNamedPipe != 0:
		mode |= sIFIFO
	case m&fs.ModeSocket != 0:
		mode |= sIFSOCK
	case m&fs.ModeCharDevice != 0:
		mode |= sIFCHR
	case m&fs.ModeDevice != 0:
		mode |= sIFBLK
	default:
		mode |= sIFREG
	}
	if m&fs.ModeSetuid != 0 {
		mode |= sISUID
	}
	if m&fs.ModeSetgid != 0 {
		mode |= sISGID
	}
	if m&fs.ModeSticky != 0 {
		mode |= sISVTX
	}
	return mode
}

// newFileInfo stats path without following a final symlink.
func newFileInfo(path, relPath string) (*FileInfo, error) {
	lfi, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}

	f := &FileInfo{
		Path:    path,
		RelPath: relPath,
		Kind:    KindFile,
	}
	f.Mode, f.Uid, f.Gid = ownership(lfi)

	switch {
	case lfi.Mode()&fs.ModeSymlink != 0:
		if f.Link, err = os.Readlink(path); err != nil {
			return nil, err
		}
		f.IsLink = true
	case lfi.IsDir():
		f.IsDir = true
		f.Size, f.HasSize = lfi.Size(), true
	default:
		f.Size, f.HasSize = lfi.Size(), true
	}

	return f, nil
}
