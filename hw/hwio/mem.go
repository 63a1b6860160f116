package hwio

import "gbapu/emu/log"

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlag8ReadOnly MemFlags = (1 << iota) // read-only accesses
)

// Linear memory area that can be mapped into a Table.
//
// Mem doesn't implement BankIO8 itself: BankIO8 returns an adaptor bound to
// the address the area is mapped at, so that the flags are decoded once.
type Mem struct {
	Name    string              // name of the memory area (for debugging)
	Data    []byte              // actual memory buffer
	VSize   int                 // virtual size of the memory (can be bigger than physical size, mirrored)
	Flags   MemFlags            // flags determining how the memory can be accessed
	WriteCb func(uint16, uint8) // optional callback, called after the write
}

func (m *Mem) BankIO8(base uint16) BankIO8 {
	if len(m.Data)&(len(m.Data)-1) != 0 {
		panic("memory buffer size is not pow2")
	}
	return &mem{
		buf:  m.Data,
		base: base,
		mask: uint16(len(m.Data) - 1),
		wcb:  m.WriteCb,
		ro:   m.Flags,
		name: m.Name,
	}
}

type mem struct {
	buf  []byte
	base uint16
	mask uint16
	wcb  func(uint16, uint8)
	ro   MemFlags
	name string
}

func (m *mem) Read8(addr uint16) uint8 {
	return m.buf[(addr-m.base)&m.mask]
}

func (m *mem) Peek8(addr uint16) uint8 {
	return m.buf[(addr-m.base)&m.mask]
}

func (m *mem) Write8(addr uint16, val uint8) {
	switch m.ro {
	case MemFlagReadWrite:
		m.buf[(addr-m.base)&m.mask] = val
		if m.wcb != nil {
			m.wcb(addr, val)
		}
	case MemFlag8ReadOnly:
		log.ModHwIo.ErrorZ("Write8 to readonly memory").
			String("name", m.name).
			Hex8("val", val).
			Hex16("addr", addr).
			End()
	}
}
