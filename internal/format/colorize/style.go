// Package colorize applies ANSI coloring to a rendered gadget line,
// classifying each token the way spec.md section 4.5 requires: numbers
// green, function/label names and addresses bright blue, mnemonics and
// prefixes bright yellow, registers bright red, everything else white.
//
// The split into style.go (token-class -> color mapping, registered once)
// and colorize.go (the lexer/formatter pipeline) mirrors the teacher's own
// internal/ui/colorize package, which registered a "disasm-dark" IDA-style
// chroma.Style and a lexer/formatter pipeline around it. GadgetStyle here
// replaces DisasmDark with the five buckets spec.md actually names.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// ANSI 16-color escapes for the parts of a line the lexer never sees: the
// address header (Address) and the "; " separators (Plain). Instruction
// tokens are colored through GadgetStyle by the first available chroma
// terminal formatter (terminal16m, then terminal256, then terminal).
const (
	ansiGreen       = "\033[32m"
	ansiBrightBlue  = "\033[94m"
	ansiBrightYellow = "\033[93m"
	ansiBrightRed   = "\033[91m"
	ansiWhite       = "\033[37m"
	ansiReset       = "\033[0m"
)

func init() {
	_ = GadgetStyle // force style registration on import
}

// GadgetStyle maps chroma's NASM-lexer token types onto spec.md's five
// coloring buckets.
var GadgetStyle = styles.Register(chroma.MustNewStyle("pltcall-gadget", chroma.StyleEntries{
	chroma.Text:       "#ffffff",
	chroma.Background: "bg:#000000",

	// Mnemonics, prefixes, directives, keywords -> bright yellow.
	chroma.Keyword:       "bold #ffff55",
	chroma.KeywordPseudo: "bold #ffff55",
	chroma.KeywordReserved: "bold #ffff55",

	// Registers -> bright red. NASM-family lexers tokenize registers as
	// generic Name / NameBuiltin / NameVariable; there's no distinct
	// "register" token type in chroma, so all three buckets are mapped
	// here the way the teacher's own DisasmDark style did for ARM64
	// registers.
	chroma.Name:         "bold #ff5555",
	chroma.NameBuiltin:  "bold #ff5555",
	chroma.NameVariable: "bold #ff5555",

	// Numbers -> green.
	chroma.LiteralNumber:        "#55ff55",
	chroma.LiteralNumberHex:     "#55ff55",
	chroma.LiteralNumberBin:     "#55ff55",
	chroma.LiteralNumberOct:     "#55ff55",
	chroma.LiteralNumberInteger: "#55ff55",
	chroma.LiteralNumberFloat:   "#55ff55",

	// Function/label names and addresses -> bright blue.
	chroma.NameLabel:    "bold #5555ff",
	chroma.NameFunction: "bold #5555ff",

	chroma.Operator:    "#ffffff",
	chroma.Punctuation: "#ffffff",
	chroma.String:      "#ffffff",
	chroma.Comment:     "#ffffff",
}))
