// SPDX-License-Identifier: GPL-3.0-or-later

package fileinfo

import (
	"slices"
)

// Attribute values are one of string, int64, bool, []string and
// map[string][]string. A getter returns false when the record does not
// carry the attribute.
type getter func(f *FileInfo) (any, bool)

var attrTable = map[string]getter{
	"path":      func(f *FileInfo) (any, bool) { return f.Path, true },
	"relpath":   func(f *FileInfo) (any, bool) { return f.RelPath, true },
	"mode":      func(f *FileInfo) (any, bool) { return int64(f.Mode), true },
	"file_mode": func(f *FileInfo) (any, bool) { return f.FileMode(), true },
	"uid":       func(f *FileInfo) (any, bool) { return int64(f.Uid), true },
	"gid":       func(f *FileInfo) (any, bool) { return int64(f.Gid), true },
	"size": func(f *FileInfo) (any, bool) {
		return f.Size, f.HasSize
	},
	"link": func(f *FileInfo) (any, bool) {
		return f.Link, f.IsLink
	},
	"directory": func(f *FileInfo) (any, bool) {
		return true, f.IsDir
	},
	"text_content": func(f *FileInfo) (any, bool) {
		if f.IsDir {
			return nil, false
		}
		s, err := f.TextContent()
		return s, err == nil
	},

	"arch": binaryAttr(func(b *BinaryInfo) (any, error) { return b.Arch, nil }),
	"needed_libraries": binaryAttr(func(b *BinaryInfo) (any, error) {
		return nonNil(b.NeededLibraries), nil
	}),
	"rpath":   binaryAttr(func(b *BinaryInfo) (any, error) { return b.Rpath, nil }),
	"runpath": binaryAttr(func(b *BinaryInfo) (any, error) { return b.Runpath, nil }),
	"exported_symbols": binaryAttr(func(b *BinaryInfo) (any, error) {
		return b.ExportedSymbols()
	}),
	"imported_symbols": binaryAttr(func(b *BinaryInfo) (any, error) {
		return b.ImportedSymbols()
	}),
	"functions": binaryAttr(func(b *BinaryInfo) (any, error) {
		return b.Functions()
	}),
	"version_requirement": binaryAttr(func(b *BinaryInfo) (any, error) {
		return b.VersionRequirements()
	}),

	"nginx_compile_flags": nginxAttr(func(n *NginxInfo) (any, error) { return n.CompileFlags, nil }),
	"nginx_modules": nginxAttr(func(n *NginxInfo) (any, error) {
		return nonNil(n.Modules), nil
	}),
	"nginx_compiled_openssl": nginxAttr(func(n *NginxInfo) (any, error) { return n.CompiledOpenSSL, nil }),
	"has_dwarf_info": nginxAttr(func(n *NginxInfo) (any, error) {
		return n.HasDwarfInfo()
	}),
	"has_ngx_http_request_t_DW": nginxAttr(func(n *NginxInfo) (any, error) {
		return n.HasRequestDebugInfo()
	}),
}

var attrAliases = map[string]string{
	"relative_path":        "relpath",
	"needed":               "needed_libraries",
	"exported":             "exported_symbols",
	"imported":             "imported_symbols",
	"version_requirements": "version_requirement",
	"modules":              "nginx_modules",
}

func binaryAttr(fn func(b *BinaryInfo) (any, error)) getter {
	return func(f *FileInfo) (any, bool) {
		if f.Binary == nil {
			return nil, false
		}
		v, err := fn(f.Binary)
		return v, err == nil
	}
}

func nginxAttr(fn func(n *NginxInfo) (any, error)) getter {
	return func(f *FileInfo) (any, bool) {
		if f.Nginx == nil {
			return nil, false
		}
		v, err := fn(f.Nginx)
		return v, err == nil
	}
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// CanonicalAttr resolves an alias. The second result is false for names
// that are not attributes.
func CanonicalAttr(name string) (string, bool) {
	if canon, ok := attrAliases[name]; ok {
		name = canon
	}
	_, ok := attrTable[name]
	return name, ok
}

// AttrNames returns the sorted canonical attribute names.
func AttrNames() []string {
	names := make([]string, 0, len(attrTable))
	for name := range attrTable {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Attr returns the named attribute of the record.
func (f *FileInfo) Attr(name string) (any, bool) {
	canon, ok := CanonicalAttr(name)
	if !ok {
		return nil, false
	}
	return attrTable[canon](f)
}
