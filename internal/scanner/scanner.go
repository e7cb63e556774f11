// Package scanner implements the terminal scanner (C2): a lazy,
// pull-based sequence of direct near-branch instructions whose target
// lands inside the PLT-stub address range.
package scanner

import (
	"fmt"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
)

// Terminal is a direct near-call (or near-jmp, see spec.md section 9) into
// the PLT-stub range.
type Terminal struct {
	VAddr  uint64
	FAddr  int
	Target uint64
}

// Scanner pulls terminals one at a time out of a fixed set of executable
// sections. It steps one byte at a time within each section — not by
// instruction length — because gadgets routinely begin mid-instruction
// relative to the linker's own view of the code.
type Scanner struct {
	dec      *decoder.Decoder
	sections []elfview.ExecutableSection
	pltBase  uint64
	pltEnd   uint64

	secIdx int
	off    uint64 // byte offset within the current section
}

// New constructs a Scanner over buf's executable sections, terminating
// decodes whose branch target falls in [pltBase, pltBase+pltSize).
func New(dec *decoder.Decoder, sections []elfview.ExecutableSection, pltBase, pltSize uint64) *Scanner {
	return &Scanner{
		dec:      dec,
		sections: sections,
		pltBase:  pltBase,
		pltEnd:   pltBase + pltSize,
	}
}

// Next advances the scanner and returns the next terminal. ok is false
// once every executable section has been exhausted; there is no error
// return because an invalid decode at a given offset is never a failure,
// only "no terminal here" (spec.md section 4.2).
func (s *Scanner) Next() (Terminal, bool) {
	for s.secIdx < len(s.sections) {
		sec := s.sections[s.secIdx]
		if sec.BaseFAddr+sec.Size > uint64(s.dec.Len()) {
			panic(fmt.Sprintf("scanner: section %q bounds [%d,%d) exceed buffer length %d",
				sec.Name, sec.BaseFAddr, sec.BaseFAddr+sec.Size, s.dec.Len()))
		}

		for s.off < sec.Size {
			faddr := int(sec.BaseFAddr + s.off)
			vaddr := sec.BaseVAddr + s.off
			s.off++

			in := s.dec.DecodeAt(faddr, vaddr)
			if !in.Valid || !in.IsDirectNearBranch() {
				continue
			}
			target, ok := in.BranchTarget()
			if !ok || target < s.pltBase || target >= s.pltEnd {
				continue
			}
			return Terminal{VAddr: vaddr, FAddr: faddr, Target: target}, true
		}

		s.secIdx++
		s.off = 0
	}
	return Terminal{}, false
}

// Reset rewinds the scanner to the first executable section, for tests
// that want to re-run the same scan and check determinism (spec.md
// section 8: "re-running the enumerator on the same buffer yields an
// identical sequence").
func (s *Scanner) Reset() {
	s.secIdx = 0
	s.off = 0
}

// All drains the scanner into a slice. Convenience for callers (and
// tests) that don't need the lazy, pull-based shape.
func (s *Scanner) All() []Terminal {
	var out []Terminal
	for {
		t, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}
