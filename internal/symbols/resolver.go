// Package symbols implements the PLT symbol resolver (C4): it walks the
// .plt.sec stub section in fixed 16-byte strides and cross-references each
// stub's indirect memory operand against the PLT relocation table and the
// dynamic symbol table to recover the external function name each stub
// trampolines to.
package symbols

import (
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
)

// StubEntrySize is the standard .plt.sec stub size on x86-64 ELF: an
// endbr64 (4 bytes) followed by a 6-byte indirect jmp, padded to 16 bytes.
const StubEntrySize = 16

// Map is a read-only PLT-stub-vaddr -> external-function-name mapping.
type Map map[uint64]string

// Build walks view's ".plt.sec" section and returns the stub-to-symbol
// map. A stub whose layout doesn't match the expected ENDBR64-then-memop
// shape is a fatal error (spec.md section 4.4): that shape is assumed by
// every x86-64 ELF produced by a CET-aware toolchain, so a mismatch means
// either a corrupt binary or a section the caller mis-identified as
// .plt.sec. A stub that decodes fine but whose GOT slot has no matching
// relocation, or whose target has no symbol, is silently omitted.
func Build(view *elfview.View, dec *decoder.Decoder) (Map, error) {
	plt, err := view.NamedSection(".plt.sec")
	if err != nil {
		return nil, err
	}

	relocs, err := view.PltRelocations()
	if err != nil {
		return nil, err
	}
	relocByGotSlot := make(map[uint64]elfview.PltRelocation, len(relocs))
	for _, r := range relocs {
		relocByGotSlot[r.GotSlotVAddr] = r
	}

	funcSyms, err := view.DynFunctionSymbols()
	if err != nil {
		return nil, err
	}

	out := make(Map)
	for off := uint64(0); off+StubEntrySize <= plt.Size; off += StubEntrySize {
		stubFAddr := int(plt.BaseFAddr + off)
		stubVAddr := plt.BaseVAddr + off

		endbr := dec.DecodeAt(stubFAddr, stubVAddr)
		if !endbr.Valid || endbr.Mnemonic() != "ENDBR64" {
			return nil, fmt.Errorf("symbols: stub at 0x%x: expected ENDBR64, got %q", stubVAddr, endbr.Mnemonic())
		}

		jmpFAddr := stubFAddr + endbr.Len()
		jmpVAddr := stubVAddr + uint64(endbr.Len())
		jmp := dec.DecodeAt(jmpFAddr, jmpVAddr)
		gotSlot, ok := jmp.MemoryTarget(0)
		if !jmp.Valid || !ok {
			return nil, fmt.Errorf("symbols: stub at 0x%x: second instruction has no memory operand", stubVAddr)
		}

		reloc, ok := relocByGotSlot[gotSlot]
		if !ok {
			continue
		}

		name := ""
		if reloc.TargetVAddr != 0 {
			name = funcSyms[reloc.TargetVAddr]
		}
		if name == "" {
			name = reloc.Symbol
		}
		if name == "" {
			continue
		}
		out[stubVAddr] = demangleName(name)
	}
	return out, nil
}

// demangleName demangles Itanium-mangled C++ names (common for PLT
// stubs trampolining into a C++ shared object's exported thunks). Names
// that aren't mangled, or that demangle fails to parse, pass through
// unchanged.
func demangleName(name string) string {
	if !strings.HasPrefix(name, "_Z") {
		return name
	}
	if out, err := demangle.ToString(name); err == nil {
		return out
	}
	return name
}
