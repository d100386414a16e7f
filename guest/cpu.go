package guest

import (
	"fmt"

	"github.com/colorfulnotion/xlate/predvec"
	"github.com/colorfulnotion/xlate/regbank"
)

// Register file indices into CPU.Regs. The scalar registers and the pc
// share one slice so translated code and helper closures see the same
// storage.
const (
	NumScalarRegs = 16
	RegPC         = 16
	NumGlobals    = 17

	NumVecRegs  = 4
	NumPredRegs = 4
)

// Exit codes reported by translated blocks.
const (
	ExitNormal  = 0 // fell through or branched; pc is up to date
	ExitHalt    = 1
	ExitDebug   = 2
	ExitIllegal = 3
)

// IOBase is the guest address the memory-mapped control registers are
// reported at by the instrumentation hooks. The io instructions address
// the bank by register offset; RAM never overlaps this window.
const IOBase = 0xf0000000

// Control register offsets.
const (
	IOCtrl    = 0x00
	IOStatus  = 0x08
	IOScratch = 0x10
	IOCounter = 0x18
)

// CPU is the complete architectural state of a toy32 core.
type CPU struct {
	// Regs holds r0..r15 then the pc, indexed by RegPC.
	Regs []uint64

	V     [NumVecRegs]predvec.Vector
	P     [NumPredRegs]predvec.Pred
	Flags predvec.Flags

	Mem []byte
	IO  *regbank.Bank

	// InvalidateHook is called after every store so the owner can
	// drop translations overlapping the written range.
	InvalidateHook func(start, end uint64)

	// SwBreakOneInsn makes a breakpoint hit execute the trapped
	// instruction before stopping, instead of stopping in front of it.
	SwBreakOneInsn bool
}

func ioRegDefs() []*regbank.AccessInfo {
	return []*regbank.AccessInfo{
		{Name: "ctrl", Addr: IOCtrl, Reset: 0},
		{Name: "status", Addr: IOStatus, Reset: 0x1, RO: ^uint64(0)},
		{Name: "scratch", Addr: IOScratch, Reset: 0},
		{Name: "counter", Addr: IOCounter, Reset: 0, W1C: ^uint64(0)},
	}
}

// NewCPU builds a core with memSize bytes of RAM and a reset control
// register bank.
func NewCPU(memSize int) *CPU {
	c := &CPU{
		Regs: make([]uint64, NumGlobals),
		Mem:  make([]byte, memSize),
		IO:   regbank.NewBank("io", ioRegDefs()),
	}
	for i := range c.V {
		c.V[i] = predvec.NewVector()
	}
	for i := range c.P {
		c.P[i] = predvec.NewPred()
	}
	c.IO.Reset()
	return c
}

// PC returns the current program counter.
func (c *CPU) PC() uint64 { return c.Regs[RegPC] }

// SetPC sets the program counter.
func (c *CPU) SetPC(pc uint64) { c.Regs[RegPC] = pc }

// Load implements ir.Memory over guest RAM, little-endian.
func (c *CPU) Load(addr uint64, size int) (uint64, error) {
	if addr+uint64(size) > uint64(len(c.Mem)) || addr+uint64(size) < addr {
		return 0, fmt.Errorf("guest: load %d bytes at %#x out of range", size, addr)
	}
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(c.Mem[addr+uint64(i)])
	}
	return v, nil
}

// Store implements ir.Memory over guest RAM and notifies the
// invalidation hook so stale translations of the written range are
// discarded.
func (c *CPU) Store(addr, val uint64, size int) error {
	if addr+uint64(size) > uint64(len(c.Mem)) || addr+uint64(size) < addr {
		return fmt.Errorf("guest: store %d bytes at %#x out of range", size, addr)
	}
	for i := 0; i < size; i++ {
		c.Mem[addr+uint64(i)] = byte(val >> (8 * i))
	}
	if c.InvalidateHook != nil {
		c.InvalidateHook(addr, addr+uint64(size))
	}
	return nil
}

// LoadProgram copies encoded instruction words into RAM at base.
func (c *CPU) LoadProgram(base uint64, words []uint32) {
	for i, w := range words {
		a := base + uint64(i)*InsnBytes
		c.Mem[a] = byte(w)
		c.Mem[a+1] = byte(w >> 8)
		c.Mem[a+2] = byte(w >> 16)
		c.Mem[a+3] = byte(w >> 24)
	}
}
