// Package format implements the gadget formatter (C5): it renders a
// Gadget as a single "<vaddr>: <instr>; ...; <terminal>; " line, with
// optional PLT-symbol substitution and optional ANSI colorization by
// token class.
package format

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/format/colorize"
	"github.com/zboralski/pltcall/internal/gadget"
	"github.com/zboralski/pltcall/internal/symbols"
)

// Formatter renders gadgets. A Formatter from New renders plain,
// unresolved text; WithSymbols and WithColor opt into the two features
// spec.md section 4.5 names.
type Formatter struct {
	dec     *decoder.Decoder
	symbols symbols.Map
	color   bool
}

// New constructs a Formatter decoding out of dec.
func New(dec *decoder.Decoder) *Formatter {
	return &Formatter{dec: dec}
}

// WithSymbols installs a stub-vaddr -> name map; any operand whose
// absolute address matches a key is rendered as "name (hex)" instead of a
// bare address.
func (f *Formatter) WithSymbols(m symbols.Map) *Formatter {
	f.symbols = m
	return f
}

// WithColor enables ANSI colorization by token class.
func (f *Formatter) WithColor(enabled bool) *Formatter {
	f.color = enabled
	return f
}

// symLookup adapts f.symbols into the x86asm.SymLookup callback the
// decoder passes through to x86asm.IntelSyntax.
func (f *Formatter) symLookup() x86asm.SymLookup {
	if f.symbols == nil {
		return nil
	}
	return func(addr uint64) (string, uint64) {
		name, ok := f.symbols[addr]
		if !ok {
			return "", 0
		}
		return fmt.Sprintf("%s (%x)", name, addr), addr
	}
}

// Render produces the single-line rendering of g.
func (f *Formatter) Render(g gadget.Gadget) string {
	var b strings.Builder

	header := fmt.Sprintf("%X: ", g.VAddr)
	if f.color {
		b.WriteString(colorize.Address(strings.TrimSuffix(header, ": ")))
		b.WriteString(colorize.Plain(": "))
	} else {
		b.WriteString(header)
	}

	symname := f.symLookup()

	pos := g.FAddr
	v := g.VAddr
	for pos <= g.Terminal.FAddr {
		in := f.dec.DecodeAt(pos, v)
		if !in.Valid {
			break
		}
		text := in.String(symname)
		if f.color {
			b.WriteString(colorize.Instruction(text))
			b.WriteString(colorize.Plain("; "))
		} else {
			b.WriteString(text)
			b.WriteString("; ")
		}

		n := in.Len()
		if n == 0 {
			break
		}
		pos += n
		v += uint64(n)
	}

	return b.String()
}
