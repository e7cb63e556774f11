package gadget

import (
	"testing"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
	"github.com/zboralski/pltcall/internal/scanner"
)

func callRel32(vaddr, target uint64) []byte {
	disp := int32(int64(target) - int64(vaddr) - 5)
	return []byte{0xE8, byte(disp), byte(disp >> 8), byte(disp >> 16), byte(disp >> 24)}
}

// popChainAndCall builds: pop rbx; pop rbp; pop r12; pop r13; pop r14; call plt
// the same instruction shape as spec.md's end-to-end seed case.
func popChainAndCall(textVAddr, pltTarget uint64) []byte {
	buf := []byte{0x5B, 0x5D, 0x41, 0x5C, 0x41, 0x5D, 0x41, 0x5E}
	callOff := uint64(len(buf))
	buf = append(buf, callRel32(textVAddr+callOff, pltTarget)...)
	return buf
}

func TestEnumeratorFindsPopChainGadget(t *testing.T) {
	const textVAddr = 0x1000
	const pltBase, pltSize = 0x2000, 0x100
	text := popChainAndCall(textVAddr, pltBase+0x20)

	sections := []elfview.ExecutableSection{{Name: ".text", BaseVAddr: textVAddr, BaseFAddr: 0, Size: uint64(len(text))}}
	dec := decoder.New(text)
	s := scanner.New(dec, sections, pltBase, pltSize)
	e := New(s, dec, sections)

	gadgets := e.All()
	found := false
	for _, g := range gadgets {
		if g.FAddr == 0 && g.VAddr == textVAddr {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the full 8-byte pop-chain gadget, got %+v", gadgets)
	}
}

func TestEnumeratorNoGadgetBeforeSectionStart(t *testing.T) {
	const textVAddr = 0x1000
	const pltBase, pltSize = 0x2000, 0x100
	// A call as the very first instruction of the section: no bytes
	// precede it, so no prefix length can produce a valid gadget.
	text := callRel32(textVAddr, pltBase+4)

	sections := []elfview.ExecutableSection{{BaseVAddr: textVAddr, BaseFAddr: 0, Size: uint64(len(text))}}
	dec := decoder.New(text)
	s := scanner.New(dec, sections, pltBase, pltSize)
	e := New(s, dec, sections)

	if gadgets := e.All(); len(gadgets) != 0 {
		t.Errorf("expected zero gadgets, got %+v", gadgets)
	}
}

func TestEnumeratorEachGadgetLandsExactlyOnTerminal(t *testing.T) {
	const textVAddr = 0x1000
	const pltBase, pltSize = 0x2000, 0x100
	text := popChainAndCall(textVAddr, pltBase+0x20)

	sections := []elfview.ExecutableSection{{BaseVAddr: textVAddr, BaseFAddr: 0, Size: uint64(len(text))}}
	dec := decoder.New(text)
	s := scanner.New(dec, sections, pltBase, pltSize)
	e := New(s, dec, sections)

	for _, g := range e.All() {
		if g.VAddr-uint64(g.FAddr) != g.Terminal.VAddr-uint64(g.Terminal.FAddr) {
			t.Errorf("gadget/terminal section-offset mismatch: %+v", g)
		}

		pos := g.FAddr
		v := g.VAddr
		for pos < g.Terminal.FAddr {
			in := dec.DecodeAt(pos, v)
			if !in.Valid || !in.IsFallThrough() {
				t.Fatalf("gadget %+v contains an invalid/non-fallthrough instruction at %d", g, pos)
			}
			pos += in.Len()
			v += uint64(in.Len())
		}
		if pos != g.Terminal.FAddr {
			t.Errorf("gadget %+v does not land exactly on terminal faddr", g)
		}
	}
}
