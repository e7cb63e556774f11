package symbols

import (
	"testing"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elftest"
	"github.com/zboralski/pltcall/internal/elfview"
)

// stub builds one 16-byte ".plt.sec" entry: endbr64; jmp [rip+disp] -> gotSlotVAddr.
func stub(stubVAddr, gotSlotVAddr uint64) []byte {
	entry := []byte{0xF3, 0x0F, 0x1E, 0xFA, 0xFF, 0x25, 0, 0, 0, 0}
	jmpEnd := stubVAddr + 4 + 6
	disp := int32(int64(gotSlotVAddr) - int64(jmpEnd))
	entry[6] = byte(disp)
	entry[7] = byte(disp >> 8)
	entry[8] = byte(disp >> 16)
	entry[9] = byte(disp >> 24)
	padded := make([]byte, StubEntrySize)
	copy(padded, entry)
	return padded
}

func buildBinaryWithOnePltStub(stubVAddr, gotSlot, funcVAddr uint64, funcName string) []byte {
	pltData := stub(stubVAddr, gotSlot)

	b := &elftest.Builder{
		Sections: []elftest.Section{
			{Name: ".plt.sec", Type: elftest.TypeProgbits, Flags: elftest.FlagAlloc | elftest.FlagExecInstr, Addr: stubVAddr, Data: pltData},
		},
		DynSyms: []elftest.DynSym{
			{Name: funcName, Value: funcVAddr, Info: (elftest.STB_GLOBAL << 4) | elftest.STT_FUNC},
		},
		Relas: []elftest.Rela{
			{Offset: gotSlot, Type: 0x25, Addend: int64(funcVAddr)}, // R_X86_64_IRELATIVE
		},
	}
	return b.Build()
}

func TestBuildResolvesPltStub(t *testing.T) {
	const stubVAddr = 0x2000
	const gotSlot = 0x4000
	const funcVAddr = 0x9000

	buf := buildBinaryWithOnePltStub(stubVAddr, gotSlot, funcVAddr, "strcasecmp")
	view, err := elfview.Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	dec := decoder.New(buf)

	m, err := Build(view, dec)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m[stubVAddr] != "strcasecmp" {
		t.Errorf("expected strcasecmp at 0x%x, got %q (map=%v)", stubVAddr, m[stubVAddr], m)
	}
}

func TestBuildOmitsStubWithoutRelocation(t *testing.T) {
	const stubVAddr = 0x2000
	const gotSlot = 0x4000
	const funcVAddr = 0x9000

	pltData := stub(stubVAddr, gotSlot)
	b := &elftest.Builder{
		Sections: []elftest.Section{
			{Name: ".plt.sec", Type: elftest.TypeProgbits, Flags: elftest.FlagAlloc | elftest.FlagExecInstr, Addr: stubVAddr, Data: pltData},
		},
		DynSyms: []elftest.DynSym{
			{Name: "strcasecmp", Value: funcVAddr, Info: (elftest.STB_GLOBAL << 4) | elftest.STT_FUNC},
		},
		// No relocation entries at all: the stub's GOT slot is unresolved.
	}
	buf := b.Build()
	view, err := elfview.Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	dec := decoder.New(buf)

	m, err := Build(view, dec)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("expected no resolved stubs, got %v", m)
	}
}
