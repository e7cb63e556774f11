// Package gadget implements the gadget enumerator (C3): for each terminal
// produced by the terminal scanner, it lazily emits every backward
// extension of that terminal that decodes as an uninterrupted run of
// fall-through instructions landing exactly on the terminal's first byte.
package gadget

import (
	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
	"github.com/zboralski/pltcall/internal/scanner"
)

// MaxGadgetPrefix bounds the backward search: spec.md section 4.3 sets it
// to 256, comfortably exceeding any practical gadget (15-byte maximum x86
// instruction times the largest useful gadget length).
const MaxGadgetPrefix = 256

// Gadget is a terminal plus the prefix instructions that fall through into
// it.
type Gadget struct {
	VAddr    uint64
	FAddr    int
	Terminal scanner.Terminal
}

// TerminalSource is anything that yields terminals one at a time — the
// interface scanner.Scanner satisfies, kept narrow so tests can feed the
// enumerator a canned sequence without constructing a real Scanner.
type TerminalSource interface {
	Next() (scanner.Terminal, bool)
}

// Enumerator pulls gadgets out of a terminal source. For a given terminal
// it tries every prefix length in ascending order and emits every one that
// validates, before moving on to the next terminal.
type Enumerator struct {
	src      TerminalSource
	dec      *decoder.Decoder
	sections []elfview.ExecutableSection

	curTerm   scanner.Terminal
	haveTerm  bool
	nextLen   int // next prefix length to try for curTerm
}

// New constructs an Enumerator. sections is used only to find each
// terminal's enclosing section, so that a backward prefix never crosses
// into a different section (spec.md section 4.3's edge case).
func New(src TerminalSource, dec *decoder.Decoder, sections []elfview.ExecutableSection) *Enumerator {
	return &Enumerator{src: src, dec: dec, sections: sections, nextLen: 1}
}

// Next returns the next valid gadget. ok is false once the terminal
// source and all its prefixes are exhausted.
func (e *Enumerator) Next() (Gadget, bool) {
	for {
		if !e.haveTerm {
			t, ok := e.src.Next()
			if !ok {
				return Gadget{}, false
			}
			e.curTerm = t
			e.haveTerm = true
			e.nextLen = 1
		}

		sectionBase := e.sectionBaseFor(e.curTerm.FAddr)

		for e.nextLen < MaxGadgetPrefix {
			L := e.nextLen
			e.nextLen++

			start := e.curTerm.FAddr - L
			if start < sectionBase {
				// Every larger L underflows too; this terminal is done.
				e.haveTerm = false
				break
			}

			startVAddr := e.curTerm.VAddr - uint64(L)
			if ok := e.validatePrefix(start, startVAddr); ok {
				return Gadget{VAddr: startVAddr, FAddr: start, Terminal: e.curTerm}, true
			}
		}

		if e.nextLen >= MaxGadgetPrefix {
			e.haveTerm = false
		}
	}
}

// validatePrefix decodes forward from (faddr, vaddr) and reports whether
// the chain of valid, fall-through instructions lands exactly on the
// terminal's faddr without overlapping or overshooting it.
func (e *Enumerator) validatePrefix(faddr int, vaddr uint64) bool {
	pos := faddr
	v := vaddr
	for pos < e.curTerm.FAddr {
		in := e.dec.DecodeAt(pos, v)
		if !in.Valid || !in.IsFallThrough() {
			return false
		}
		pos += in.Len()
		v += uint64(in.Len())
		if pos > e.curTerm.FAddr {
			return false // overshoot: last instruction straddled the terminal
		}
	}
	return pos == e.curTerm.FAddr
}

func (e *Enumerator) sectionBaseFor(faddr int) int {
	for _, sec := range e.sections {
		lo := int(sec.BaseFAddr)
		hi := lo + int(sec.Size)
		if faddr >= lo && faddr < hi {
			return lo
		}
	}
	return faddr // no enclosing section found: no room to extend backward
}

// All drains the enumerator into a slice.
func (e *Enumerator) All() []Gadget {
	var out []Gadget
	for {
		g, ok := e.Next()
		if !ok {
			return out
		}
		out = append(out, g)
	}
}
