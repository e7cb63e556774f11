package colorize

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
)

func getAssemblyLexer() chroma.Lexer {
	candidates := []string{"nasm", "gas", "GAS", "Gas"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256", "terminal"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Instruction colorizes a single rendered instruction (mnemonic + operands,
// no trailing "; ") by token class, per spec.md section 4.5.
func Instruction(insn string) string {
	lexer := getAssemblyLexer()
	if lexer == nil {
		return insn
	}
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, insn)
	if err != nil {
		return insn
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, GadgetStyle, iterator); err != nil {
		return insn
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Address colors a bare hex address (used for the gadget's leading
// "<vaddr>: " header) bright blue, same bucket as function/label names.
func Address(s string) string {
	return ansiBrightBlue + s + ansiReset
}

// Plain wraps text in the "everything else" white bucket, for separators
// like "; " that the per-instruction tokenizer never sees.
func Plain(s string) string {
	return ansiWhite + s + ansiReset
}

// Sprintf is a convenience wrapper combining fmt.Sprintf with Plain, for
// callers building short fixed strings (error messages, etc.) that should
// still carry the "other" color when colorization is enabled.
func Sprintf(format string, args ...any) string {
	return Plain(fmt.Sprintf(format, args...))
}
