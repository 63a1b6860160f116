package hwio

import (
	"fmt"

	"gbapu/emu/log"
)

// log unmapped accesses (verbose: games poke the whole FF10-FF3F range)
const logUnmapped = false

type BankIO8 interface {
	Read8(addr uint16) uint8
	// Peek8 reads a byte without side effects (debugging/tracing).
	Peek8(addr uint16) uint8
	Write8(addr uint16, val uint8)
}

type page [256]BankIO8

// Table maps 8-bit devices over a 16-bit address space. Lookups go through a
// two-level page table, pages being allocated on first mapping.
type Table struct {
	Name string

	// Unmapped, if set, serves accesses to addresses nothing is mapped at.
	Unmapped BankIO8

	pages [256]*page
}

func NewTable(name string) *Table {
	t := new(Table)
	t.Name = name
	return t
}

// Map a register bank (that is, a structure containing multiple Reg8/Mem
// fields). For this function to work, registers must have a struct tag
// "hwio", containing the following fields:
//
//	offset=0x12     Byte-offset within the register bank at which this
//	                register is mapped. There is no default value: if this
//	                option is missing, the register is assumed not to be
//	                part of the bank, and is ignored by this call.
//
//	bank=NN         Ordinal bank number (if not specified, default to zero).
//	                This option allows for a structure to expose multiple
//	                banks, as regs can be grouped by bank by specified the
//	                bank number.
func (t *Table) MapBank(addr uint16, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Mem:
			t.MapMem(addr+reg.offset, r)
		case *Reg8:
			t.MapReg8(addr+reg.offset, r)
		default:
			panic(fmt.Errorf("invalid reg type: %T", r))
		}
	}
}

func (t *Table) mapBus8(addr, size uint16, io BankIO8) {
	end := uint32(addr) + uint32(size)
	if end > 0x10000 {
		panic(fmt.Errorf("hwio: mapping %s at %04x+%x overflows the address space", t.Name, addr, size))
	}
	for a := uint32(addr); a < end; a++ {
		p := t.pages[a>>8]
		if p == nil {
			p = new(page)
			t.pages[a>>8] = p
		}
		if p[a&0xFF] != nil {
			panic(fmt.Errorf("hwio: address %04x already mapped in %s", a, t.Name))
		}
		p[a&0xFF] = io
	}
}

func (t *Table) MapReg8(addr uint16, io *Reg8) {
	t.mapBus8(addr, 1, io)
}

func (t *Table) MapMem(addr uint16, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex16("addr", addr).
		Hex16("size", uint16(mem.VSize)).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	t.mapBus8(addr, uint16(mem.VSize), mem.BankIO8(addr))
}

func (t *Table) search(addr uint16) BankIO8 {
	if p := t.pages[addr>>8]; p != nil {
		return p[addr&0xFF]
	}
	return nil
}

// Read8 searches in the table for the device mapped at the given address and
// forward the read to it.
func (t *Table) Read8(addr uint16) uint8 {
	io := t.search(addr)
	if io == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Read8").
				String("name", t.Name).
				Hex16("addr", addr).
				End()
		}
		if t.Unmapped != nil {
			return t.Unmapped.Read8(addr)
		}
		return 0
	}
	return io.Read8(addr)
}

func (t *Table) Peek8(addr uint16) uint8 {
	io := t.search(addr)
	if io == nil {
		if t.Unmapped != nil {
			return t.Unmapped.Peek8(addr)
		}
		return 0
	}
	return io.Peek8(addr)
}

func (t *Table) Write8(addr uint16, val uint8) {
	io := t.search(addr)
	if io == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Write8").
				String("name", t.Name).
				Hex16("addr", addr).
				Hex8("val", val).
				End()
		}
		if t.Unmapped != nil {
			t.Unmapped.Write8(addr, val)
		}
		return
	}
	io.Write8(addr, val)
}
