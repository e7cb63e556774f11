package scanner

import (
	"testing"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
)

// callRel32 encodes "call rel32" targeting target, given the instruction's
// own vaddr (the call is 5 bytes: E8 + 4-byte little-endian displacement
// measured from the byte after the instruction).
func callRel32(vaddr, target uint64) []byte {
	disp := int32(int64(target) - int64(vaddr) - 5)
	return []byte{0xE8, byte(disp), byte(disp >> 8), byte(disp >> 16), byte(disp >> 24)}
}

func TestScannerFindsDirectCallIntoPLT(t *testing.T) {
	const textVAddr = 0x1000
	const pltBase = 0x2000
	const pltSize = 0x100

	text := make([]byte, 0x20)
	// A few pop instructions (one byte each) followed by a call into the
	// PLT range, to double as a gadget-enumerator fixture later.
	copy(text, []byte{0x5B, 0x5D, 0x41, 0x5C, 0x41, 0x5D, 0x41, 0x5E}) // pop rbx/rbp/r12/r13/r14
	callOff := uint64(8)
	copy(text[callOff:], callRel32(textVAddr+callOff, pltBase+0x10))

	buf := text
	dec := decoder.New(buf)
	sections := []elfview.ExecutableSection{{Name: ".text", BaseVAddr: textVAddr, BaseFAddr: 0, Size: uint64(len(text))}}

	s := New(dec, sections, pltBase, pltSize)
	terms := s.All()
	if len(terms) != 1 {
		t.Fatalf("expected 1 terminal, got %d: %+v", len(terms), terms)
	}
	got := terms[0]
	if got.VAddr != textVAddr+callOff || got.Target != pltBase+0x10 {
		t.Errorf("unexpected terminal: %+v", got)
	}
}

func TestScannerDeterministic(t *testing.T) {
	const textVAddr = 0x1000
	const pltBase = 0x2000
	text := make([]byte, 0x10)
	copy(text, callRel32(textVAddr, pltBase+4))

	dec := decoder.New(text)
	sections := []elfview.ExecutableSection{{BaseVAddr: textVAddr, BaseFAddr: 0, Size: uint64(len(text))}}

	s := New(dec, sections, pltBase, 0x10)
	first := s.All()
	s.Reset()
	second := s.All()
	if len(first) != len(second) || len(first) == 0 {
		t.Fatalf("non-deterministic or empty scan: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestScannerSkipsBranchesOutsidePLT(t *testing.T) {
	const textVAddr = 0x1000
	text := make([]byte, 0x10)
	copy(text, callRel32(textVAddr, 0x5000)) // not in [0x2000, 0x2100)

	dec := decoder.New(text)
	sections := []elfview.ExecutableSection{{BaseVAddr: textVAddr, BaseFAddr: 0, Size: uint64(len(text))}}
	s := New(dec, sections, 0x2000, 0x100)
	if terms := s.All(); len(terms) != 0 {
		t.Errorf("expected no terminals, got %+v", terms)
	}
}
