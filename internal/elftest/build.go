// Package elftest builds minimal, hand-assembled ELF64 x86-64 images for
// unit tests. It exists so internal/elfview, internal/scanner,
// internal/gadget, and internal/symbols can each construct a synthetic
// binary exercising exactly the section/relocation/symbol shape a test
// cares about, without shipping binary fixture files the way the teacher's
// own elf_test.go instead probes for an optional real .so on disk.
package elftest

import (
	"bytes"
	"encoding/binary"
)

// DynSym describes one entry to place in .dynsym.
type DynSym struct {
	Name    string
	Value   uint64
	Size    uint64
	Info    byte // (bind<<4)|type, see STT_FUNC/STT_GNU_IFUNC below.
	Shndx   uint16
}

// Rela describes one Elf64_Rela entry to place in .rela.plt.
type Rela struct {
	Offset uint64
	Type   uint32
	Sym    uint32 // index into the dynsym table, 1-based (0 is STN_UNDEF)
	Addend int64
}

const (
	STT_FUNC      = 2
	STT_GNU_IFUNC = 10
	STB_GLOBAL    = 1
)

// Section is one raw section to embed, fully specified by the caller.
type Section struct {
	Name      string
	Type      uint32 // SHT_* constant
	Flags     uint64 // SHF_* bitmask
	Addr      uint64
	Data      []byte
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

const (
	shtNull    = 0
	shtProgbits = 1
	shtSymtab  = 2
	shtStrtab  = 3
	shtRela    = 4
	shtDynsym  = 11

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecInstr = 0x4

	etDyn     = 3
	emX86_64  = 62
	elfClass64 = 2
	elfData2LSB = 1
)

// Builder assembles a full ELF64 image from a set of named, addressed
// sections plus a dynamic symbol table and PLT relocation list.
type Builder struct {
	Sections []Section
	DynSyms  []DynSym // index 0 is implicitly STN_UNDEF; callers supply 1..N
	Relas    []Rela
}

// Build serializes the image. Layout: ELF header, then each section's raw
// bytes back to back (file offset == declared layout order), then
// .dynstr/.dynsym/.rela.plt/.shstrtab appended after the caller-supplied
// sections, then the section header table.
func (b *Builder) Build() []byte {
	var dynstr bytes.Buffer
	dynstr.WriteByte(0) // index 0 is the empty string, per ELF convention
	nameOff := make([]uint32, len(b.DynSyms))
	for i, s := range b.DynSyms {
		nameOff[i] = uint32(dynstr.Len())
		dynstr.WriteString(s.Name)
		dynstr.WriteByte(0)
	}

	var dynsym bytes.Buffer
	// STN_UNDEF entry, index 0.
	dynsym.Write(make([]byte, 24))
	for i, s := range b.DynSyms {
		var entry [24]byte
		binary.LittleEndian.PutUint32(entry[0:], nameOff[i])
		entry[4] = s.Info
		entry[5] = 0
		binary.LittleEndian.PutUint16(entry[6:], s.Shndx)
		binary.LittleEndian.PutUint64(entry[8:], s.Value)
		binary.LittleEndian.PutUint64(entry[16:], s.Size)
		dynsym.Write(entry[:])
	}

	var rela bytes.Buffer
	for _, r := range b.Relas {
		var entry [24]byte
		binary.LittleEndian.PutUint64(entry[0:], r.Offset)
		info := (uint64(r.Sym) << 32) | uint64(r.Type)
		binary.LittleEndian.PutUint64(entry[8:], info)
		binary.LittleEndian.PutUint64(entry[16:], uint64(r.Addend))
		rela.Write(entry[:])
	}

	allSections := append([]Section{}, b.Sections...)
	dynstrIdx := len(allSections) + 1
	allSections = append(allSections, Section{Name: ".dynstr", Type: shtStrtab, Data: dynstr.Bytes()})
	dynsymIdx := len(allSections) + 1
	allSections = append(allSections, Section{
		Name: ".dynsym", Type: shtDynsym, Data: dynsym.Bytes(),
		Link: uint32(dynstrIdx), EntSize: 24,
	})
	allSections = append(allSections, Section{
		Name: ".rela.plt", Type: shtRela, Data: rela.Bytes(),
		Link: uint32(dynsymIdx), EntSize: 24,
	})

	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	shNameOff := make([]uint32, len(allSections)+1)
	for i, s := range allSections {
		shNameOff[i+1] = uint32(shstrtab.Len())
		shstrtab.WriteString(s.Name)
		shstrtab.WriteByte(0)
	}
	shstrtabNameOff := uint32(shstrtab.Len())
	shstrtab.WriteString(".shstrtab")
	shstrtab.WriteByte(0)

	const ehsize = 64
	const shentsize = 64

	// Lay out section data after the ELF header; faddr == running offset.
	offsets := make([]uint64, len(allSections))
	cur := uint64(ehsize)
	for i, s := range allSections {
		offsets[i] = cur
		cur += uint64(len(s.Data))
	}
	shstrtabOffset := cur
	cur += uint64(shstrtab.Len())

	shoff := cur
	shnum := len(allSections) + 2 // NULL + sections + .shstrtab itself
	shstrndx := shnum - 1

	var out bytes.Buffer
	// e_ident
	out.Write([]byte{0x7f, 'E', 'L', 'F', elfClass64, elfData2LSB, 1, 0})
	out.Write(make([]byte, 8)) // padding
	var hdr [48]byte
	binary.LittleEndian.PutUint16(hdr[0:], etDyn)
	binary.LittleEndian.PutUint16(hdr[2:], emX86_64)
	binary.LittleEndian.PutUint32(hdr[4:], 1) // e_version
	binary.LittleEndian.PutUint64(hdr[8:], 0) // e_entry
	binary.LittleEndian.PutUint64(hdr[16:], 0) // e_phoff
	binary.LittleEndian.PutUint64(hdr[24:], shoff)
	binary.LittleEndian.PutUint32(hdr[32:], 0) // e_flags
	binary.LittleEndian.PutUint16(hdr[36:], ehsize)
	binary.LittleEndian.PutUint16(hdr[38:], 0) // e_phentsize
	binary.LittleEndian.PutUint16(hdr[40:], 0) // e_phnum
	binary.LittleEndian.PutUint16(hdr[42:], shentsize)
	binary.LittleEndian.PutUint16(hdr[44:], uint16(shnum))
	binary.LittleEndian.PutUint16(hdr[46:], uint16(shstrndx))
	out.Write(hdr[:])

	for _, s := range allSections {
		out.Write(s.Data)
	}
	out.Write(shstrtab.Bytes())

	writeShdr := func(nameOff uint32, typ uint32, flags, addr, offset, size uint64, link, info uint32, align, entsize uint64) {
		var e [shentsize]byte
		binary.LittleEndian.PutUint32(e[0:], nameOff)
		binary.LittleEndian.PutUint32(e[4:], typ)
		binary.LittleEndian.PutUint64(e[8:], flags)
		binary.LittleEndian.PutUint64(e[16:], addr)
		binary.LittleEndian.PutUint64(e[24:], offset)
		binary.LittleEndian.PutUint64(e[32:], size)
		binary.LittleEndian.PutUint32(e[40:], link)
		binary.LittleEndian.PutUint32(e[44:], info)
		binary.LittleEndian.PutUint64(e[48:], align)
		binary.LittleEndian.PutUint64(e[56:], entsize)
		out.Write(e[:])
	}

	// NULL section.
	writeShdr(0, shtNull, 0, 0, 0, 0, 0, 0, 0, 0)
	for i, s := range allSections {
		align := s.AddrAlign
		if align == 0 {
			align = 1
		}
		writeShdr(shNameOff[i+1], s.Type, s.Flags, s.Addr, offsets[i], uint64(len(s.Data)), s.Link, s.Info, align, s.EntSize)
	}
	writeShdr(shstrtabNameOff, shtStrtab, 0, 0, shstrtabOffset, uint64(shstrtab.Len()), 0, 0, 1, 0)

	return out.Bytes()
}

// Flags re-exports the SHF_* bitmask constants for test callers.
const (
	FlagAlloc     = shfAlloc
	FlagExecInstr = shfExecInstr
	FlagWrite     = shfWrite
)

// Types re-exports the SHT_* constants for test callers.
const (
	TypeProgbits = shtProgbits
	TypeSymtab   = shtSymtab
)
