// SPDX-License-Identifier: GPL-3.0-or-later

// Package elftest writes small but well-formed ELF64 shared objects for tests.
package elftest

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Need is one Elf_Verneed entry: versions required from File.
type Need struct {
	File     string
	Versions []string
}

// Unit is a DWARF compile unit. Every unit also holds a struct with one
// member ahead of its typedefs.
type Unit struct {
	Name     string
	Typedefs []string
}

// Spec describes the content of the generated image.
type Spec struct {
	Machine  elf.Machine // EM_X86_64 when zero
	Needed   []string
	Rpath    []string // every element becomes its own DT_RPATH entry
	Runpath  []string
	Exported []string // global functions defined in .text
	Imported []string // undefined global symbols
	Locals   []string // local functions defined in .text
	Needs    []Need
	Rodata   []string
	Dwarf    []Unit // .debug_abbrev and .debug_info are written when set
}

// Write builds the image and stores it at path, creating parent directories.
func Write(t testing.TB, path string, s Spec) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, Build(s), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type strtab struct {
	buf  bytes.Buffer
	offs map[string]uint32
}

func newStrtab() *strtab {
	st := &strtab{offs: map[string]uint32{}}
	st.buf.WriteByte(0)
	return st
}

func (st *strtab) add(s string) uint32 {
	if off, ok := st.offs[s]; ok {
		return off
	}
	off := uint32(st.buf.Len())
	st.buf.WriteString(s)
	st.buf.WriteByte(0)
	st.offs[s] = off
	return off
}

type section struct {
	name    string
	typ     elf.SectionType
	flags   elf.SectionFlag
	link    uint32
	entsize uint64
	data    []byte
}

const (
	idxDynstr = 1
	idxDynsym = 2
	idxText   = 5
)

// Build returns the raw bytes of the image.
func Build(s Spec) []byte {
	le := binary.LittleEndian
	machine := s.Machine
	if machine == 0 {
		machine = elf.EM_X86_64
	}

	dynstr := newStrtab()

	// .dynsym
	var dynsym bytes.Buffer
	_ = binary.Write(&dynsym, le, elf.Sym64{})
	addSym := func(name string, bind elf.SymBind, typ elf.SymType, shndx uint16, value uint64) {
		_ = binary.Write(&dynsym, le, elf.Sym64{
			Name:  dynstr.add(name),
			Info:  elf.ST_INFO(bind, typ),
			Shndx: shndx,
			Value: value,
			Size:  16,
		})
	}
	value := uint64(0x1000)
	for _, name := range s.Locals {
		addSym(name, elf.STB_LOCAL, elf.STT_FUNC, idxText, value)
		value += 16
	}
	for _, name := range s.Exported {
		addSym(name, elf.STB_GLOBAL, elf.STT_FUNC, idxText, value)
		value += 16
	}
	for _, name := range s.Imported {
		addSym(name, elf.STB_GLOBAL, elf.STT_FUNC, uint16(elf.SHN_UNDEF), 0)
	}

	// .dynamic
	var dynamic bytes.Buffer
	addDyn := func(tag elf.DynTag, val uint64) {
		_ = binary.Write(&dynamic, le, elf.Dyn64{Tag: int64(tag), Val: val})
	}
	for _, lib := range s.Needed {
		addDyn(elf.DT_NEEDED, uint64(dynstr.add(lib)))
	}
	for _, p := range s.Rpath {
		addDyn(elf.DT_RPATH, uint64(dynstr.add(p)))
	}
	for _, p := range s.Runpath {
		addDyn(elf.DT_RUNPATH, uint64(dynstr.add(p)))
	}
	addDyn(elf.DT_NULL, 0)

	// .gnu.version_r
	var verneed bytes.Buffer
	other := uint16(2)
	for i, need := range s.Needs {
		next := uint32(16 + 16*len(need.Versions))
		if i == len(s.Needs)-1 {
			next = 0
		}
		for _, v := range []any{uint16(1), uint16(len(need.Versions)), dynstr.add(need.File), uint32(16), next} {
			_ = binary.Write(&verneed, le, v)
		}
		for j, ver := range need.Versions {
			anext := uint32(16)
			if j == len(need.Versions)-1 {
				anext = 0
			}
			for _, v := range []any{uint32(0), uint16(0), other, dynstr.add(ver), anext} {
				_ = binary.Write(&verneed, le, v)
			}
			other++
		}
	}

	// .gnu.version, one entry per dynsym symbol
	var versym bytes.Buffer
	for i := 0; i < dynsym.Len()/24; i++ {
		_ = binary.Write(&versym, le, uint16(1))
	}

	var rodata []byte
	if len(s.Rodata) > 0 {
		rodata = []byte(strings.Join(s.Rodata, "\x00") + "\x00")
	}

	sections := []section{
		{},
		{name: ".dynstr", typ: elf.SHT_STRTAB, flags: elf.SHF_ALLOC, data: dynstr.buf.Bytes()},
		{name: ".dynsym", typ: elf.SHT_DYNSYM, flags: elf.SHF_ALLOC, link: idxDynstr, entsize: 24, data: dynsym.Bytes()},
		{name: ".dynamic", typ: elf.SHT_DYNAMIC, flags: elf.SHF_ALLOC | elf.SHF_WRITE, link: idxDynstr, entsize: 16, data: dynamic.Bytes()},
		{name: ".gnu.version_r", typ: elf.SHT_GNU_VERNEED, flags: elf.SHF_ALLOC, link: idxDynstr, data: verneed.Bytes()},
		{name: ".text", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, data: make([]byte, 64)},
		{name: ".rodata", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC, data: rodata},
		{name: ".gnu.version", typ: elf.SHT_GNU_VERSYM, flags: elf.SHF_ALLOC, link: idxDynsym, entsize: 2, data: versym.Bytes()},
	}
	if len(s.Dwarf) > 0 {
		abbrev, info := buildDwarf(s.Dwarf)
		sections = append(sections,
			section{name: ".debug_abbrev", typ: elf.SHT_PROGBITS, data: abbrev},
			section{name: ".debug_info", typ: elf.SHT_PROGBITS, data: info},
		)
	}
	sections = append(sections, section{name: ".shstrtab", typ: elf.SHT_STRTAB})
	if len(s.Needs) == 0 {
		sections[4].typ = elf.SHT_PROGBITS
		sections[4].name = ".note.empty"
	}

	shstr := newStrtab()
	names := make([]uint32, len(sections))
	for i := 1; i < len(sections); i++ {
		names[i] = shstr.add(sections[i].name)
	}
	sections[len(sections)-1].data = shstr.buf.Bytes()

	const ehsize = 64
	var body bytes.Buffer
	offs := make([]uint64, len(sections))
	for i := 1; i < len(sections); i++ {
		for (ehsize+body.Len())%8 != 0 {
			body.WriteByte(0)
		}
		offs[i] = uint64(ehsize + body.Len())
		body.Write(sections[i].data)
	}
	for (ehsize+body.Len())%8 != 0 {
		body.WriteByte(0)
	}
	shoff := uint64(ehsize + body.Len())

	var out bytes.Buffer
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	_ = binary.Write(&out, le, elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    ehsize,
		Shentsize: 64,
		Shnum:     uint16(len(sections)),
		Shstrndx:  uint16(len(sections) - 1),
	})
	out.Write(body.Bytes())

	for i, sec := range sections {
		if i == 0 {
			_ = binary.Write(&out, le, elf.Section64{})
			continue
		}
		_ = binary.Write(&out, le, elf.Section64{
			Name:      names[i],
			Type:      uint32(sec.typ),
			Flags:     uint64(sec.flags),
			Off:       offs[i],
			Size:      uint64(len(sec.data)),
			Link:      sec.link,
			Addralign: 1,
			Entsize:   sec.entsize,
		})
	}

	return out.Bytes()
}

const (
	abbrevCompileUnit = 1
	abbrevTypedef     = 2
	abbrevStruct      = 3
	abbrevMember      = 4
)

// buildDwarf encodes DWARF 4 units with string names only.
func buildDwarf(units []Unit) (abbrev, info []byte) {
	var ab bytes.Buffer
	for _, a := range []struct {
		code     byte
		tag      dwarf.Tag
		children byte
	}{
		{abbrevCompileUnit, dwarf.TagCompileUnit, 1},
		{abbrevTypedef, dwarf.TagTypedef, 0},
		{abbrevStruct, dwarf.TagStructType, 1},
		{abbrevMember, dwarf.TagMember, 0},
	} {
		ab.Write([]byte{a.code, byte(a.tag), a.children, byte(dwarf.AttrName), formString, 0, 0})
	}
	ab.WriteByte(0)

	var ib bytes.Buffer
	for _, u := range units {
		var dies bytes.Buffer
		die := func(code byte, name string) {
			dies.WriteByte(code)
			dies.WriteString(name)
			dies.WriteByte(0)
		}
		die(abbrevCompileUnit, u.Name)
		die(abbrevStruct, "padding_t")
		die(abbrevMember, "next")
		dies.WriteByte(0)
		for _, name := range u.Typedefs {
			die(abbrevTypedef, name)
		}
		dies.WriteByte(0)

		// unit length, version, abbrev offset, address size
		_ = binary.Write(&ib, binary.LittleEndian, uint32(2+4+1+dies.Len()))
		_ = binary.Write(&ib, binary.LittleEndian, uint16(4))
		_ = binary.Write(&ib, binary.LittleEndian, uint32(0))
		ib.WriteByte(8)
		ib.Write(dies.Bytes())
	}

	return ab.Bytes(), ib.Bytes()
}

const formString = 0x08 // DW_FORM_string
