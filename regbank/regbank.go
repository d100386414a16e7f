// Package regbank provides register-mapped field access for device
// control pages: per-register write-enable masks, read-only and
// write-1-to-clear bits, clear-on-read, and advisory logging of
// suspicious guest behavior (reserved-bit changes, writes to
// unimplemented features). Suspicious writes are logged and continue;
// they are guest behavior, not engine errors.
package regbank

import (
	"fmt"

	"github.com/colorfulnotion/xlate/log"
)

// AccessError describes one invalid or unimplemented bit pattern and
// the reason it is flagged.
type AccessError struct {
	Mask   uint64
	Reason string
}

// AccessInfo is the static definition of one register.
type AccessInfo struct {
	Name  string
	Addr  uint64
	Reset uint64

	RO   uint64 // read-only bits
	W1C  uint64 // write-1-to-clear bits
	Rsvd uint64 // reserved bits; changes are logged
	COR  uint64 // clear-on-read bits

	// GE1/GE0 flag invalid writes of 1s/0s; UI1/UI0 flag writes
	// touching unimplemented features.
	GE1, GE0 []AccessError
	UI1, UI0 []AccessError

	PreWrite  func(reg *Register, val uint64) uint64
	PostWrite func(reg *Register, val uint64)
	PostRead  func(reg *Register, val uint64) uint64
}

// Register is one live register instance.
type Register struct {
	Access *AccessInfo
	Prefix string
	Value  uint64
}

func writeLog(reg *Register, dir int, val uint64, msg, reason string) {
	sep := ""
	if reason != "" {
		sep = ": "
	}
	log.Warn(log.RegbankMonitoring,
		fmt.Sprintf("%s:%s bits %#x %s write of %d%s%s",
			reg.Prefix, reg.Access.Name, val, msg, dir, sep, reason))
}

// Write stores val into the register under the write-enable mask we,
// honoring read-only and write-1-to-clear bits and logging advisory
// conditions.
func (reg *Register) Write(val, we uint64) {
	ac := reg.Access
	if ac == nil || ac.Name == "" {
		log.Warn(log.RegbankMonitoring,
			fmt.Sprintf("%s: write to undefined device state (written value: %#x)", reg.Prefix, val))
		return
	}

	oldVal := reg.Value
	noWMask := ac.RO | ac.W1C | ^we

	if test := (oldVal ^ val) & ac.Rsvd; test != 0 {
		log.Warn(log.RegbankMonitoring,
			fmt.Sprintf("%s: change of value in reserved bit fields: %#x", reg.Prefix, test))
	}
	for _, rae := range ac.GE1 {
		if test := val & rae.Mask; test != 0 {
			writeLog(reg, 1, test, "invalid", rae.Reason)
		}
	}
	for _, rae := range ac.GE0 {
		if test := ^val & rae.Mask; test != 0 {
			writeLog(reg, 0, test, "invalid", rae.Reason)
		}
	}
	for _, rae := range ac.UI1 {
		if test := val & rae.Mask; test != 0 {
			writeLog(reg, 1, test, "unimplemented", rae.Reason)
		}
	}
	for _, rae := range ac.UI0 {
		if test := ^val & rae.Mask; test != 0 {
			writeLog(reg, 0, test, "unimplemented", rae.Reason)
		}
	}

	newVal := val&^noWMask | oldVal&noWMask
	newVal &^= val & ac.W1C

	if ac.PreWrite != nil {
		newVal = ac.PreWrite(reg, newVal)
	}
	reg.Value = newVal
	if ac.PostWrite != nil {
		ac.PostWrite(reg, newVal)
	}
}

// Read returns the register value, applying clear-on-read bits.
func (reg *Register) Read() uint64 {
	ac := reg.Access
	if ac == nil || ac.Name == "" {
		log.Warn(log.RegbankMonitoring,
			fmt.Sprintf("%s: read from undefined device state", reg.Prefix))
		return 0
	}

	ret := reg.Value
	reg.Value = ret &^ ac.COR

	if ac.PostRead != nil {
		ret = ac.PostRead(reg, ret)
	}
	return ret
}

// Reset restores the register to its reset value.
func (reg *Register) Reset() {
	if reg.Access != nil {
		reg.Value = reg.Access.Reset
	}
}

// Bank is an address-indexed group of registers.
type Bank struct {
	Prefix string
	regs   map[uint64]*Register
}

// NewBank instantiates every register of defs at its reset value.
func NewBank(prefix string, defs []*AccessInfo) *Bank {
	b := &Bank{Prefix: prefix, regs: make(map[uint64]*Register, len(defs))}
	for _, ac := range defs {
		b.regs[ac.Addr] = &Register{Access: ac, Prefix: prefix, Value: ac.Reset}
	}
	return b
}

// Lookup returns the register at addr, or nil.
func (b *Bank) Lookup(addr uint64) *Register {
	return b.regs[addr]
}

// Write dispatches a full-width write to the register at addr. Writes
// to unmapped addresses are logged and dropped.
func (b *Bank) Write(addr, val uint64) {
	reg := b.regs[addr]
	if reg == nil {
		log.Warn(log.RegbankMonitoring,
			fmt.Sprintf("%s: write to unmapped register at %#x (written value: %#x)", b.Prefix, addr, val))
		return
	}
	reg.Write(val, ^uint64(0))
}

// Read dispatches a read of the register at addr; unmapped reads
// return 0.
func (b *Bank) Read(addr uint64) uint64 {
	reg := b.regs[addr]
	if reg == nil {
		log.Warn(log.RegbankMonitoring,
			fmt.Sprintf("%s: read from unmapped register at %#x", b.Prefix, addr))
		return 0
	}
	return reg.Read()
}

// Reset restores every register in the bank.
func (b *Bank) Reset() {
	for _, reg := range b.regs {
		reg.Reset()
	}
}
