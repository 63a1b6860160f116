package hwio_test

import (
	"testing"

	"gbapu/hw/hwio"
)

// Unmapped
type openbus struct{}

func (ob *openbus) Read8(addr uint16) uint8       { return 0xFF }
func (ob *openbus) Peek8(addr uint16) uint8       { return 0xFE }
func (ob *openbus) Write8(addr uint16, val uint8) {}

type testTable struct {
	t   testing.TB
	Bus *hwio.Table

	// mapped to $FF30-$FF3F, mirrored at $FF40-$FF4F
	RAM hwio.Mem `hwio:"bank=0,offset=0x0,size=0x10,vsize=0x20,wcb"`

	// $FF10
	Reg0 hwio.Reg8 `hwio:"bank=1,offset=0x0,reset=0x77"`
	// $FF11
	Reg1 hwio.Reg8 `hwio:"bank=1,offset=0x1,rwmask=0xF0,rcb,reset=0x99"`
	// $FF12
	Reg2 hwio.Reg8 `hwio:"bank=1,offset=0x2,rwmask=0xF0,readonly,pcb=PeekReg2"`

	lastRAMWrite uint16
}

func newTestTable(tb testing.TB) *testTable {
	tbl := &testTable{t: tb}
	hwio.MustInitRegs(tbl)

	tbl.Bus = hwio.NewTable("bus")
	tbl.Bus.MapBank(0xFF30, tbl, 0)
	tbl.Bus.MapBank(0xFF10, tbl, 1)
	tbl.Bus.Unmapped = &openbus{}
	return tbl
}

// $FF11
func (tbl *testTable) ReadREG1(val uint8) uint8 { return tbl.Reg1.Value + 1 }

// $FF12
func (tbl *testTable) PeekReg2(val uint8) uint8 { return 0x12 }

// $FF30-$FF3F
func (tbl *testTable) WriteRAM(addr uint16, val uint8) { tbl.lastRAMWrite = addr }

func (tbl *testTable) wantRead8(addr uint16, want uint8) {
	tbl.t.Helper()

	if got := tbl.Bus.Read8(addr); got != want {
		tbl.t.Errorf("Read8(%04X) = %02X, want %02X", addr, got, want)
	}
}

func (tbl *testTable) Write8(addr uint16, val uint8) {
	tbl.Bus.Write8(addr, val)
}

func (tbl *testTable) wantPeek8(addr uint16, want uint8) {
	tbl.t.Helper()

	if got := tbl.Bus.Peek8(addr); got != want {
		tbl.t.Errorf("Peek8(%04X) = %02X, want %02X", addr, got, want)
	}
}

func TestTableMem(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0xFF30, 0)
	tbl.Write8(0xFF30, 0x12)
	tbl.wantRead8(0xFF30, 0x12)
	tbl.wantRead8(0xFF40, 0x12)
	if tbl.lastRAMWrite != 0xFF30 {
		t.Errorf("WriteRAM called with %04X, want FF30", tbl.lastRAMWrite)
	}

	tbl.Write8(0xFF4F, 0x34)
	tbl.wantRead8(0xFF3F, 0x34)
	if tbl.RAM.Data[0xF] != 0x34 {
		t.Errorf("RAM[F] = %02X, want 34", tbl.RAM.Data[0xF])
	}
}

func TestTableRegs(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0xFF10, 0x77)

	// Reg1
	tbl.wantRead8(0xFF11, 0x9a)
	tbl.Write8(0xFF11, 0xff)
	tbl.wantRead8(0xFF11, 0xfa)
	tbl.Write8(0xFF11, 0xF0)
	tbl.wantRead8(0xFF11, 0xfa)
	tbl.Write8(0xFF11, 0x0F)
	tbl.wantRead8(0xFF11, 0x0A)

	// Reg2
	tbl.wantRead8(0xFF12, 0x00)
	tbl.wantPeek8(0xFF12, 0x12)
	tbl.Write8(0xFF12, 0x9b)
	tbl.wantRead8(0xFF12, 0x00)
	tbl.wantPeek8(0xFF12, 0x12)
}

func TestTableUnmapped(t *testing.T) {
	tbl := newTestTable(t)
	tbl.wantRead8(0xFF13, 0xff)
	tbl.wantPeek8(0xFF13, 0xfe)

	tbl.Write8(0xFF13, 0x12)
	tbl.wantRead8(0xFF13, 0xff)

	tbl.Bus.Unmapped = nil
	tbl.wantRead8(0xFF13, 0x00)
	tbl.wantPeek8(0xFF13, 0x00)
}

func TestTableDoubleMapPanics(t *testing.T) {
	tbl := newTestTable(t)
	defer func() {
		if recover() == nil {
			t.Error("mapping twice the same bank should panic")
		}
	}()
	tbl.Bus.MapBank(0xFF10, tbl, 1)
}
