// SPDX-License-Identifier: GPL-3.0-or-later

package fileinfo

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"regexp"
	"slices"
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/logger"
)

// NginxInfo holds what the nginx executable reveals about its build.
type NginxInfo struct {
	CompileFlags    string
	Modules         []string // sorted, vendored modules excluded
	CompiledOpenSSL string

	dwarfSrc func() (dwarfFacts, error)
	dwarf    lazy[dwarfFacts]
}

type dwarfFacts struct {
	hasInfo       bool
	hasRequestDIE bool
}

// HasDwarfInfo reports whether the executable carries DWARF debug info.
func (n *NginxInfo) HasDwarfInfo() (bool, error) {
	df, err := n.loadDwarf()
	return df.hasInfo, err
}

// HasRequestDebugInfo reports whether a DIE named ngx_http_request_t is
// present in the ngx_http_request compilation units.
func (n *NginxInfo) HasRequestDebugInfo() (bool, error) {
	df, err := n.loadDwarf()
	return df.hasRequestDIE, err
}

func (n *NginxInfo) loadDwarf() (dwarfFacts, error) {
	return n.dwarf.get(func() (dwarfFacts, error) {
		if n.dwarfSrc == nil {
			return dwarfFacts{}, nil
		}
		return n.dwarfSrc()
	})
}

// NewNginxInfo builds a NginxInfo from known build details.
func NewNginxInfo(compileFlags, compiledOpenSSL string, hasDwarfInfo, hasRequestDebugInfo bool) *NginxInfo {
	df := dwarfFacts{hasInfo: hasDwarfInfo, hasRequestDIE: hasRequestDebugInfo}
	return &NginxInfo{
		CompileFlags:    compileFlags,
		Modules:         parseModules(compileFlags),
		CompiledOpenSSL: compiledOpenSSL,
		dwarfSrc:        func() (dwarfFacts, error) { return df, nil },
	}
}

var (
	reCompileFlags = regexp.MustCompile(`^\s*--prefix=/`)
	reAddModule    = regexp.MustCompile(`add(?:-dynamic)?-module=(.*?) `)
	reBuiltWith    = regexp.MustCompile(`^built with (.+) \(running with`)
)

func parseNginx(path string, log *logger.Logger) (*NginxInfo, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ef.Close() }()

	n := &NginxInfo{
		Modules:  []string{},
		dwarfSrc: func() (dwarfFacts, error) { return scanDwarf(path, log) },
	}

	strs, err := rodataStrings(ef)
	if err != nil {
		return nil, err
	}
	for _, s := range strs {
		if reCompileFlags.MatchString(s) {
			n.CompileFlags = s
			n.Modules = parseModules(s)
		} else if m := reBuiltWith.FindStringSubmatch(s); m != nil {
			n.CompiledOpenSSL = strings.TrimSpace(m[1])
		}
	}

	return n, nil
}

// parseModules extracts third-party module names from a configure line.
// Modules given relative to the parent directory are bundled and skipped.
func parseModules(flags string) []string {
	mods := []string{}
	for _, m := range reAddModule.FindAllStringSubmatch(flags, -1) {
		if strings.HasPrefix(m[1], "../") {
			continue
		}
		mods = append(mods, moduleName(m[1]))
	}
	slices.Sort(mods)
	return mods
}

// moduleName keeps the last two path segments, dropping a parent named
// "external" or "distribution".
func moduleName(modPath string) string {
	dir, base := "", modPath
	if i := strings.LastIndexByte(modPath, '/'); i >= 0 {
		dir, base = strings.TrimRight(modPath[:i], "/"), modPath[i+1:]
	}
	parent := dir[strings.LastIndexByte(dir, '/')+1:]

	switch parent {
	case "", "external", "distribution":
		return base
	default:
		return parent + "/" + base
	}
}

const minStringLen = 5

// rodataStrings returns the NUL terminated printable strings of .rodata.
func rodataStrings(ef *elf.File) ([]string, error) {
	sec := ef.Section(".rodata")
	if sec == nil || sec.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}

	var strs []string
	for _, chunk := range bytes.Split(data, []byte{0}) {
		if len(chunk) >= minStringLen && isPrintable(chunk) {
			strs = append(strs, string(chunk))
		}
	}
	return strs, nil
}

func isPrintable(bs []byte) bool {
	for _, c := range bs {
		if (c < 0x20 || c > 0x7e) && c != '\t' && c != '\n' {
			return false
		}
	}
	return true
}

func hasDwarfSections(ef *elf.File) bool {
	return ef.Section(".debug_info") != nil || ef.Section(".zdebug_info") != nil
}

const (
	requestUnitName = "ngx_http_request"
	requestTypeName = "ngx_http_request_t"
)

// scanDwarf reports the debug info facts of path. Undecodable DWARF leaves
// hasInfo as found in the section headers and reads as no request DIE.
func scanDwarf(path string, log *logger.Logger) (dwarfFacts, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return dwarfFacts{}, err
	}
	defer func() { _ = ef.Close() }()

	var df dwarfFacts
	if df.hasInfo = hasDwarfSections(ef); !df.hasInfo {
		return df, nil
	}

	d, err := ef.DWARF()
	if err != nil {
		log.Debugf("'%s': decoding DWARF: %v", path, err)
		return df, nil
	}
	if df.hasRequestDIE, err = findRequestDIE(d.Reader()); err != nil {
		log.Debugf("'%s': scanning DWARF entries: %v", path, err)
		df.hasRequestDIE = false
	}

	return df, nil
}

// findRequestDIE walks only the units named after ngx_http_request and
// stops at the first matching entry.
func findRequestDIE(r *dwarf.Reader) (bool, error) {
	for {
		e, err := r.Next()
		if err != nil {
			return false, err
		}
		if e == nil {
			return false, nil
		}
		if e.Tag != dwarf.TagCompileUnit && e.Tag != dwarf.TagPartialUnit {
			continue
		}

		name, _ := e.Val(dwarf.AttrName).(string)
		if !strings.Contains(name, requestUnitName) || !e.Children {
			r.SkipChildren()
			continue
		}

		found, err := scanUnit(r)
		if err != nil || found {
			return found, err
		}
	}
}

func scanUnit(r *dwarf.Reader) (bool, error) {
	for depth := 1; depth > 0; {
		e, err := r.Next()
		if err != nil {
			return false, err
		}
		if e == nil {
			return false, nil
		}
		if e.Tag == 0 {
			depth--
			continue
		}
		if name, _ := e.Val(dwarf.AttrName).(string); name == requestTypeName {
			return true, nil
		}
		if e.Children {
			depth++
		}
	}
	return false, nil
}
