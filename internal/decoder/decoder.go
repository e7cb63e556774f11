// Package decoder wraps golang.org/x/arch/x86/x86asm into the narrow
// streaming interface the gadget-discovery core needs: decode one
// instruction at a file offset, report its length and validity, and
// classify whether it falls through to the next instruction or diverts
// control flow.
package decoder

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Mode is the x86asm decode mode; the core only ever analyzes x86-64 images.
const Mode = 64

// Instruction is a single decoded instruction, tagged with the vaddr/faddr
// it was decoded from.
type Instruction struct {
	Inst  x86asm.Inst
	VAddr uint64
	FAddr int
	Valid bool
}

// Len reports the instruction's length in bytes. Zero for an invalid decode.
func (in Instruction) Len() int {
	if !in.Valid {
		return 0
	}
	return in.Inst.Len
}

// IsFallThrough reports whether the instruction is "straight-line": it
// neither branches, calls, returns, traps, nor halts. Gadget bodies may
// only contain fall-through instructions; terminals are never fall-through.
func (in Instruction) IsFallThrough() bool {
	if !in.Valid {
		return false
	}
	switch in.Inst.Op {
	case x86asm.CALL, x86asm.LCALL,
		x86asm.JMP, x86asm.LJMP,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS,
		x86asm.RET, x86asm.LRET, x86asm.IRET,
		x86asm.INT, x86asm.INT3, x86asm.INTO,
		x86asm.SYSCALL, x86asm.SYSENTER, x86asm.SYSEXIT, x86asm.SYSRET,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE,
		x86asm.HLT, x86asm.UD2, x86asm.UD1:
		return false
	default:
		return true
	}
}

// IsDirectNearBranch reports whether operand 0 is a direct near-branch
// displacement (spec.md's OpKind::NearBranch64 equivalent): a call or jmp
// whose target is computed as pc + displacement, not an indirect branch
// through a register or memory operand.
func (in Instruction) IsDirectNearBranch() bool {
	if !in.Valid {
		return false
	}
	switch in.Inst.Op {
	case x86asm.CALL, x86asm.JMP,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS:
	default:
		return false
	}
	_, ok := in.Inst.Args[0].(x86asm.Rel)
	return ok
}

// BranchTarget resolves the absolute virtual address of a direct
// near-branch instruction's operand 0. ok is false when operand 0 is not a
// Rel displacement.
func (in Instruction) BranchTarget() (target uint64, ok bool) {
	if !in.Valid {
		return 0, false
	}
	rel, ok := in.Inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return uint64(int64(in.VAddr) + int64(in.Inst.Len) + int64(rel)), true
}

// MemoryTarget resolves the absolute address a memory operand computes to,
// handling RIP-relative addressing (the common case for .plt.sec stubs:
// "jmp [rip+disp]"). ok is false when operandIdx is not a Mem operand.
func (in Instruction) MemoryTarget(operandIdx int) (addr uint64, ok bool) {
	if !in.Valid || operandIdx < 0 || operandIdx >= len(in.Inst.Args) {
		return 0, false
	}
	mem, ok := in.Inst.Args[operandIdx].(x86asm.Mem)
	if !ok {
		return 0, false
	}
	if mem.Base == x86asm.RIP {
		// RIP-relative: displacement is measured from the address of the
		// byte following the instruction. x86asm.RIP is a distinct nonzero
		// Reg constant the decoder substitutes for the mod==0,rm==5
		// encoding; Reg(0) is an unused sentinel, not "no base register".
		return uint64(int64(in.VAddr) + int64(in.Inst.Len) + mem.Disp), true
	}
	// Absolute addressing (no base, no index) isn't RIP-relative; the
	// displacement is itself the address.
	if mem.Base == 0 && mem.Index == 0 {
		return uint64(mem.Disp), true
	}
	// Register-relative addressing isn't resolvable without runtime
	// register state; callers treat this as "no static target".
	return 0, false
}

// Mnemonic reports the string mnemonic (e.g. "ENDBR64") of the instruction.
func (in Instruction) Mnemonic() string {
	if !in.Valid {
		return ""
	}
	return in.Inst.Op.String()
}

// String renders the instruction Intel-syntax, resolving call/jmp targets
// and memory operands through symname when non-nil.
func (in Instruction) String(symname x86asm.SymLookup) string {
	if !in.Valid {
		return "(bad)"
	}
	s, err := x86asm.IntelSyntax(in.Inst, in.VAddr, symname)
	if err != nil {
		return fmt.Sprintf(".byte 0x%02x", in.Inst.Opcode>>24)
	}
	return s
}

// Decoder decodes instructions from a fixed in-memory image. One instance
// is reused for an entire analysis: the underlying x86asm.Decode call is
// stateless per call, so "decoder reuse" here means reusing the buffer
// reference and the Instruction scratch values, avoiding a new slice header
// per candidate the way a stateful reset-able decoder would.
type Decoder struct {
	buf []byte
	// baseVAddr/baseFAddr are left zero by New and are not read by any
	// method; callers pass both faddr and vaddr to DecodeAt.
	baseVAddr uint64
	baseFAddr int
}

// New constructs a Decoder over the whole file image. vaddr/faddr
// translation for a given section is computed by the caller (elfview);
// the decoder itself only needs faddr to index into buf.
func New(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// DecodeAt decodes a single instruction whose first byte is buf[faddr],
// reporting the vaddr the caller supplies for that byte (vaddr and faddr
// need not share the file's base offset; the caller tracks the mapping).
func (d *Decoder) DecodeAt(faddr int, vaddr uint64) Instruction {
	if faddr < 0 || faddr >= len(d.buf) {
		return Instruction{VAddr: vaddr, FAddr: faddr, Valid: false}
	}
	inst, err := x86asm.Decode(d.buf[faddr:], Mode)
	if err != nil || inst.Len == 0 {
		return Instruction{VAddr: vaddr, FAddr: faddr, Valid: false}
	}
	return Instruction{Inst: inst, VAddr: vaddr, FAddr: faddr, Valid: true}
}

// Len returns the length of the underlying buffer, for bounds checks.
func (d *Decoder) Len() int {
	return len(d.buf)
}

// ByteAt returns the raw byte at faddr; ok is false when faddr is outside
// the buffer.
func (d *Decoder) ByteAt(faddr int) (byte, bool) {
	if faddr < 0 || faddr >= len(d.buf) {
		return 0, false
	}
	return d.buf[faddr], true
}
