// SPDX-License-Identifier: GPL-3.0-or-later

package fileinfo

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/netdata/netdata/go/explainmanifest/logger"
	"github.com/netdata/netdata/go/explainmanifest/pkg/looseversion"
)

var errNotELF = errors.New("not an ELF file")

// BinaryInfo is the dynamic linking view of an ELF file. Symbol tables and
// version requirements are read from the file on first access and cached.
type BinaryInfo struct {
	Arch            string
	NeededLibraries []string // link order
	Rpath           string
	Runpath         string

	src      symbolSource
	symbols  lazy[symbolTables]
	versions lazy[map[string][]string]
}

type symbolTables struct {
	exported  []string
	imported  []string
	functions []string
}

type symbolSource interface {
	symbolTables() (symbolTables, error)
	versionNeeds() (map[string][]string, error)
}

// ExportedSymbols returns the sorted names of the defined global symbols.
func (b *BinaryInfo) ExportedSymbols() ([]string, error) {
	st, err := b.loadSymbols()
	return st.exported, err
}

// ImportedSymbols returns the sorted names of the undefined global symbols.
func (b *BinaryInfo) ImportedSymbols() ([]string, error) {
	st, err := b.loadSymbols()
	return st.imported, err
}

// Functions returns the sorted names of the functions defined in the file.
func (b *BinaryInfo) Functions() ([]string, error) {
	st, err := b.loadSymbols()
	return st.functions, err
}

// VersionRequirements maps a needed shared object to the symbol versions
// demanded from it, sorted in version order.
func (b *BinaryInfo) VersionRequirements() (map[string][]string, error) {
	return b.versions.get(func() (map[string][]string, error) {
		if b.src == nil {
			return map[string][]string{}, nil
		}
		return b.src.versionNeeds()
	})
}

func (b *BinaryInfo) loadSymbols() (symbolTables, error) {
	return b.symbols.get(func() (symbolTables, error) {
		if b.src == nil {
			return symbolTables{}, nil
		}
		return b.src.symbolTables()
	})
}

// ELFData is the content of a BinaryInfo built without a file on disk.
type ELFData struct {
	Arch                string
	NeededLibraries     []string
	Rpath               string
	Runpath             string
	ExportedSymbols     []string
	ImportedSymbols     []string
	Functions           []string
	VersionRequirements map[string][]string
}

// NewBinaryInfo builds a BinaryInfo from already known data. Lists are
// sorted the same way parsing would sort them.
func NewBinaryInfo(d ELFData) *BinaryInfo {
	st := symbolTables{
		exported:  sortedUnique(d.ExportedSymbols),
		imported:  sortedUnique(d.ImportedSymbols),
		functions: sortedUnique(d.Functions),
	}
	vn := make(map[string][]string, len(d.VersionRequirements))
	for lib, vs := range d.VersionRequirements {
		vs = slices.Clone(vs)
		looseversion.Sort(vs)
		vn[lib] = vs
	}
	return &BinaryInfo{
		Arch:            d.Arch,
		NeededLibraries: slices.Clone(d.NeededLibraries),
		Rpath:           d.Rpath,
		Runpath:         d.Runpath,
		src:             staticSource{st: st, vn: vn},
	}
}

type staticSource struct {
	st symbolTables
	vn map[string][]string
}

func (s staticSource) symbolTables() (symbolTables, error)          { return s.st, nil }
func (s staticSource) versionNeeds() (map[string][]string, error) { return s.vn, nil }

// parseBinary reads the ELF header and dynamic section of path.
func parseBinary(path string, log *logger.Logger) (*BinaryInfo, error) {
	if err := checkMagic(path); err != nil {
		return nil, err
	}

	ef, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ef.Close() }()

	b := &BinaryInfo{
		Arch: archName(ef.Machine),
		src:  fileSource{path: path, log: log},
	}

	if b.NeededLibraries, err = ef.DynString(elf.DT_NEEDED); err != nil {
		return nil, fmt.Errorf("read DT_NEEDED: %w", err)
	}
	if b.Rpath, err = lastDynString(ef, elf.DT_RPATH); err != nil {
		return nil, err
	}
	if b.Runpath, err = lastDynString(ef, elf.DT_RUNPATH); err != nil {
		return nil, err
	}

	return b, nil
}

func checkMagic(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = fh.Close() }()

	magic := make([]byte, len(elf.ELFMAG))
	if _, err := io.ReadFull(fh, magic); err != nil {
		return errNotELF
	}
	if !bytes.Equal(magic, []byte(elf.ELFMAG)) {
		return errNotELF
	}
	return nil
}

// lastDynString returns the last entry for tag, repeated entries overwrite.
func lastDynString(ef *elf.File, tag elf.DynTag) (string, error) {
	vs, err := ef.DynString(tag)
	if err != nil {
		return "", fmt.Errorf("read %v: %w", tag, err)
	}
	if len(vs) == 0 {
		return "", nil
	}
	return vs[len(vs)-1], nil
}

var archNames = map[elf.Machine]string{
	elf.EM_X86_64:  "x86_64",
	elf.EM_386:     "i386",
	elf.EM_AARCH64: "AARCH64",
	elf.EM_ARM:     "ARM",
}

func archName(m elf.Machine) string {
	if name, ok := archNames[m]; ok {
		return name
	}
	return strings.TrimPrefix(m.String(), "EM_")
}

// fileSource reopens the file for every lazy attribute. Malformed tables
// read as empty, only a failure to open the file is returned.
type fileSource struct {
	path string
	log  *logger.Logger
}

const sttGNUIFunc = elf.SymType(10)

func (s fileSource) symbolTables() (symbolTables, error) {
	ef, err := elf.Open(s.path)
	if err != nil {
		return symbolTables{}, err
	}
	defer func() { _ = ef.Close() }()

	var syms []elf.Symbol
	for _, read := range []func() ([]elf.Symbol, error){ef.DynamicSymbols, ef.Symbols} {
		ss, err := read()
		if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
			s.log.Debugf("'%s': reading symbols: %v", s.path, err)
			continue
		}
		syms = append(syms, ss...)
	}

	var st symbolTables
	for _, sym := range syms {
		if sym.Name == "" {
			continue
		}
		bind, typ := elf.ST_BIND(sym.Info), elf.ST_TYPE(sym.Info)
		global := bind == elf.STB_GLOBAL || bind == elf.STB_WEAK || bind == elf.STB_LOOS
		defined := sym.Section != elf.SHN_UNDEF

		switch {
		case !defined && global:
			st.imported = append(st.imported, sym.Name)
		case defined && global && (typ == elf.STT_FUNC || typ == elf.STT_OBJECT || typ == sttGNUIFunc || typ == elf.STT_TLS):
			st.exported = append(st.exported, sym.Name)
		}
		if defined && typ == elf.STT_FUNC && sym.Value != 0 {
			st.functions = append(st.functions, sym.Name)
		}
	}

	st.exported = sortedUnique(st.exported)
	st.imported = sortedUnique(st.imported)
	st.functions = sortedUnique(st.functions)

	return st, nil
}

func (s fileSource) versionNeeds() (map[string][]string, error) {
	ef, err := elf.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ef.Close() }()

	reqs := make(map[string][]string)
	if ef.SectionByType(elf.SHT_GNU_VERSYM) == nil {
		return reqs, nil
	}

	needs, err := ef.DynamicVersionNeeds()
	if err != nil {
		s.log.Debugf("'%s': reading version needs: %v", s.path, err)
		return reqs, nil
	}
	for _, need := range needs {
		vs := make([]string, 0, len(need.Needs))
		for _, dep := range need.Needs {
			vs = append(vs, dep.Dep)
		}
		looseversion.Sort(vs)
		reqs[need.Name] = vs
	}

	return reqs, nil
}

func sortedUnique(ss []string) []string {
	out := slices.Clone(ss)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
