// SPDX-License-Identifier: GPL-3.0-or-later

// Package manifest renders walked records into the golden manifest text
// format and compares a rendering against a checked-in golden file.
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/explain/fileinfo"
)

// Options selects the optional fields of a manifest.
type Options struct {
	Owners             bool
	Mode               bool
	Size               bool
	Arch               bool
	ImportedSymbols    bool
	ExportedSymbols    bool
	VersionRequirement bool

	// MergeRpathsRunpaths renders RPATH and RUNPATH as a single entry
	// labeled after UseRpath.
	MergeRpathsRunpaths bool
	UseRpath            bool
}

const indent = 2

type entry struct {
	key   string
	value any // string, int64, bool, nil or []string
}

// Render returns the manifest of infos. A non-empty title adds a
// "# Manifest for <title>" header.
func Render(title string, infos []*fileinfo.FileInfo, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, title, infos, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the manifest of infos to w.
func Write(w io.Writer, title string, infos []*fileinfo.FileInfo, opts Options) error {
	var buf bytes.Buffer

	if title != "" {
		fmt.Fprintf(&buf, "# Manifest for %s\n\n", title)
	}

	for _, f := range infos {
		entries, err := explain(f, opts)
		if err != nil {
			return fmt.Errorf("explain '%s': %w", f.RelPath, err)
		}
		writeEntries(&buf, entries)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func writeEntries(buf *bytes.Buffer, entries []entry) {
	for i, e := range entries {
		if i == 0 {
			buf.WriteString("-" + strings.Repeat(" ", indent-1))
		} else {
			buf.WriteString(strings.Repeat(" ", indent))
		}
		fmt.Fprintf(buf, "%-10s:%s\n", e.key, formatValue(e.value))
	}
	buf.WriteString("\n")
}

func formatValue(v any) string {
	switch v := v.(type) {
	case []string:
		var sb strings.Builder
		for _, item := range v {
			sb.WriteString("\n" + strings.Repeat(" ", indent) + "- " + item)
		}
		return sb.String()
	case bool:
		if v {
			return " True"
		}
		return " False"
	case nil:
		return " None"
	default:
		return fmt.Sprintf(" %v", v)
	}
}

func explain(f *fileinfo.FileInfo, opts Options) ([]entry, error) {
	entries := []entry{{"Path", f.RelPath}}

	switch {
	case f.IsLink:
		entries = append(entries, entry{"Link", f.Link}, entry{"Type", "link"})
	case f.IsDir:
		entries = append(entries, entry{"Type", "directory"})
	}

	if opts.Owners {
		entries = append(entries, entry{"Uid,Gid", fmt.Sprintf("%d, %d", f.Uid, f.Gid)})
	}
	if opts.Mode {
		entries = append(entries, entry{"Mode", fmt.Sprintf("0o%o", f.Mode)})
	}
	if opts.Size && f.HasSize {
		entries = append(entries, entry{"Size", f.Size})
	}

	if b := f.Binary; b != nil {
		be, err := explainBinary(b, opts)
		if err != nil {
			return nil, err
		}
		entries = append(entries, be...)
	}

	if n := f.Nginx; n != nil {
		ne, err := explainNginx(n)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ne...)
	}

	return entries, nil
}

func explainBinary(b *fileinfo.BinaryInfo, opts Options) ([]entry, error) {
	var entries []entry

	if opts.Arch && b.Arch != "" {
		entries = append(entries, entry{"Arch", b.Arch})
	}
	if len(b.NeededLibraries) > 0 {
		entries = append(entries, entry{"Needed", b.NeededLibraries})
	}

	if opts.MergeRpathsRunpaths {
		label, value := "Runpath", b.Runpath
		if opts.UseRpath {
			label = "Rpath"
		}
		if value == "" || (opts.UseRpath && b.Rpath != "") {
			value = b.Rpath
		}
		if value != "" {
			entries = append(entries, entry{label, value})
		}
	} else {
		if b.Rpath != "" {
			entries = append(entries, entry{"Rpath", b.Rpath})
		}
		if b.Runpath != "" {
			entries = append(entries, entry{"Runpath", b.Runpath})
		}
	}

	if opts.ExportedSymbols {
		syms, err := b.ExportedSymbols()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{"Exported", syms})
	}
	if opts.ImportedSymbols {
		syms, err := b.ImportedSymbols()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{"Imported", syms})
	}
	if opts.VersionRequirement {
		reqs, err := b.VersionRequirements()
		if err != nil {
			return nil, err
		}
		if len(reqs) > 0 {
			entries = append(entries, entry{"Version Requirement", versionLines(reqs)})
		}
	}

	return entries, nil
}

func versionLines(reqs map[string][]string) []string {
	libs := make([]string, 0, len(reqs))
	for lib := range reqs {
		libs = append(libs, lib)
	}
	slices.Sort(libs)

	lines := make([]string, 0, len(libs))
	for _, lib := range libs {
		lines = append(lines, fmt.Sprintf("%s (%s)", lib, strings.Join(reqs[lib], ", ")))
	}
	return lines
}

func explainNginx(n *fileinfo.NginxInfo) ([]entry, error) {
	hasInfo, err := n.HasDwarfInfo()
	if err != nil {
		return nil, err
	}
	hasReq, err := n.HasRequestDebugInfo()
	if err != nil {
		return nil, err
	}

	var openssl any
	if n.CompiledOpenSSL != "" {
		openssl = n.CompiledOpenSSL
	}

	return []entry{
		{"Modules", n.Modules},
		{"OpenSSL", openssl},
		{"DWARF", hasInfo},
		{"DWARF - ngx_http_request_t related DWARF DIEs", hasReq},
	}, nil
}
