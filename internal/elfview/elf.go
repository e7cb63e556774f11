// Package elfview exposes the narrow slice of an ELF64 x86-64 image the
// gadget-discovery core needs: executable sections, a named-section
// lookup, PLT relocations, and dynamic function symbols. It wraps
// debug/elf the way the teacher's internal/emulator package did for
// ARM64 segments and relocations, generalized here to x86-64 PLT/GOT
// resolution instead of runtime segment loading.
package elfview

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// x86-64 relocation types relevant to PLT/GOT resolution, written as raw
// psABI numbers so they compare directly against the uint32 type field
// decoded from r_info below (same codes as spec.md section 4.1 and
// section 9).
const (
	rX86_64JumpSlot  = 0x07
	rX86_64IRelative = 0x25
)

// ExecutableSection describes one section with the executable flag set.
type ExecutableSection struct {
	Name      string
	BaseVAddr uint64
	BaseFAddr uint64
	Size      uint64
}

// NamedSectionBounds describes a section retrieved by name.
type NamedSectionBounds struct {
	BaseVAddr uint64
	BaseFAddr uint64
	Size      uint64
}

// PltRelocation is one entry from the PLT relocation table: the GOT slot
// it patches and (when statically resolvable) the external function it
// resolves to. See DESIGN.md for how the two x86-64 relocation types
// (R_X86_64_IRELATIVE and R_X86_64_JUMP_SLOT) are reconciled.
type PltRelocation struct {
	GotSlotVAddr uint64
	// TargetVAddr is the resolved function's vaddr when the relocation
	// carries it directly (IRELATIVE's addend, or a JUMP_SLOT symbol that
	// already has a non-zero value). Zero when unresolved by address.
	TargetVAddr uint64
	// Symbol is the relocation's dynamic symbol name, when its symbol
	// index names one. Used as a fallback when TargetVAddr can't be
	// cross-referenced against the dynamic symbol table by address.
	Symbol string
}

// View is a read-only handle onto an ELF64 x86-64 image's metadata.
// Constructed once per analysis; every accessor is a pure function of the
// immutable backing buffer.
type View struct {
	buf []byte
	f   *elf.File
}

// Open parses buf as an ELF64 x86-64 image.
func Open(buf []byte) (*View, error) {
	f, err := elf.NewFile(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("%w: class %v", ErrNotELF, f.Class)
	}
	if f.Machine != elf.EM_X86_64 {
		return nil, fmt.Errorf("%w: machine %v", ErrUnsupportedObject, f.Machine)
	}
	return &View{buf: buf, f: f}, nil
}

// Buffer returns the raw file bytes the view was opened from. Every
// downstream component (the decoder, the formatter) decodes out of this
// same buffer; its lifetime must not outlive the iterator chain.
func (v *View) Buffer() []byte {
	return v.buf
}

// ExecutableSections returns every section with the executable flag set,
// in ELF section-header order.
func (v *View) ExecutableSections() []ExecutableSection {
	var out []ExecutableSection
	for _, sec := range v.f.Sections {
		if sec.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		if sec.Type == elf.SHT_NOBITS || sec.Size == 0 {
			continue
		}
		out = append(out, ExecutableSection{
			Name:      sec.Name,
			BaseVAddr: sec.Addr,
			BaseFAddr: sec.Offset,
			Size:      sec.Size,
		})
	}
	return out
}

// NamedSection retrieves a section's bounds by name, failing with
// ErrSectionNotFound when absent.
func (v *View) NamedSection(name string) (NamedSectionBounds, error) {
	sec := v.f.Section(name)
	if sec == nil {
		return NamedSectionBounds{}, fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	}
	return NamedSectionBounds{
		BaseVAddr: sec.Addr,
		BaseFAddr: sec.Offset,
		Size:      sec.Size,
	}, nil
}

// PltRelocations yields one entry per PLT relocation, accepting both
// R_X86_64_IRELATIVE and R_X86_64_JUMP_SLOT (spec.md section 9's open
// question resolved in favor of accepting either, since the type actually
// present varies by toolchain/libc).
func (v *View) PltRelocations() ([]PltRelocation, error) {
	sec := v.f.Section(".rela.plt")
	if sec == nil {
		return nil, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("elfview: read .rela.plt: %w", err)
	}

	dynsyms, _ := v.f.DynamicSymbols()

	const entrySize = 24 // Elf64_Rela: r_offset, r_info, r_addend, 8 bytes each.
	var out []PltRelocation
	for i := 0; i+entrySize <= len(data); i += entrySize {
		offset := binary.LittleEndian.Uint64(data[i:])
		info := binary.LittleEndian.Uint64(data[i+8:])
		addend := int64(binary.LittleEndian.Uint64(data[i+16:]))

		relType := uint32(info & 0xffffffff)
		symIdx := int(info >> 32)

		switch relType {
		case rX86_64IRelative:
			out = append(out, PltRelocation{
				GotSlotVAddr: offset,
				TargetVAddr:  uint64(addend),
			})
		case rX86_64JumpSlot:
			rel := PltRelocation{GotSlotVAddr: offset}
			// dynsyms is 0-indexed but ELF symbol indices are 1-based
			// (index 0 is always STN_UNDEF); debug/elf's DynamicSymbols
			// already drops STN_UNDEF, so subtract 1.
			if arrIdx := symIdx - 1; arrIdx >= 0 && arrIdx < len(dynsyms) {
				sym := dynsyms[arrIdx]
				rel.Symbol = sym.Name
				if sym.Value != 0 {
					rel.TargetVAddr = sym.Value
				}
			}
			out = append(out, rel)
		}
	}
	return out, nil
}

// DynFunctionSymbols returns every dynamic symbol table entry of type
// STT_FUNC or STT_GNU_IFUNC, keyed by symbol value (vaddr).
func (v *View) DynFunctionSymbols() (map[uint64]string, error) {
	syms, err := v.f.DynamicSymbols()
	if err != nil {
		// No dynamic symbol table is a valid (if useless) ELF image; the
		// PLT symbol resolver will simply resolve nothing.
		return map[uint64]string{}, nil
	}
	out := make(map[uint64]string, len(syms))
	for _, sym := range syms {
		if sym.Value == 0 || sym.Name == "" {
			continue
		}
		typ := elf.ST_TYPE(sym.Info)
		if typ != elf.STT_FUNC && typ != elf.STT_GNU_IFUNC {
			continue
		}
		out[sym.Value] = sym.Name
	}
	return out, nil
}
