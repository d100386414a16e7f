// Package predvec implements predicated (masked) fixed-width vector
// arithmetic with ARM SVE-style semantics: per-lane predicate gating,
// reductions, predicate logic, first/next-active-element scans and
// NZCV flag synthesis via the PredTest pseudo-function.
//
// Vector registers are raw byte buffers addressed at element granularity
// through the Lane accessors; predicate registers carry one bit per vector
// byte. All operations are total functions over their fixed-size inputs.
// Malformed sizes are caller contract violations and panic.
package predvec

import (
	"encoding/binary"
	"math/bits"
)

// VecBytes is the vector register width in bytes (1024-bit vectors).
// PredBytes is the matching predicate width: one bit per vector byte.
const (
	VecBytes  = 128
	PredBytes = VecBytes / 8
	PredWords = PredBytes / 8
)

// ElemSize is the log2 of an element width in bytes, matching the
// esz encoding used throughout: 0=8-bit, 1=16-bit, 2=32-bit, 3=64-bit.
type ElemSize int

const (
	ES8 ElemSize = iota
	ES16
	ES32
	ES64
)

func (es ElemSize) Bytes() int { return 1 << es }
func (es ElemSize) Bits() int  { return 8 << es }

// predEszMasks restricts predicate bit scans to the positions that mark
// real lane boundaries at a given element width: every bit for 8-bit
// lanes, every 2nd bit for 16-bit, every 4th for 32-bit, every 8th for
// 64-bit.
var predEszMasks = [4]uint64{
	0xffffffffffffffff,
	0x5555555555555555,
	0x1111111111111111,
	0x0101010101010101,
}

// EszMask returns the significance mask for the given element width.
func EszMask(es ElemSize) uint64 { return predEszMasks[es] }

// Vector is raw vector register storage. Elements are addressed in
// little-endian byte order regardless of host byte order, so lane i of
// width w always starts at byte i*w.
type Vector []byte

func NewVector() Vector { return make(Vector, VecBytes) }

// Lane accessors. These are the only sanctioned way to address sub-word
// elements; callers never index the raw buffer directly.

func Lane8(v Vector, i int) uint8 { return v[i] }

func SetLane8(v Vector, i int, x uint8) { v[i] = x }

func Lane16(v Vector, i int) uint16 { return binary.LittleEndian.Uint16(v[i*2:]) }
func SetLane16(v Vector, i int, x uint16) {
	binary.LittleEndian.PutUint16(v[i*2:], x)
}

func Lane32(v Vector, i int) uint32 { return binary.LittleEndian.Uint32(v[i*4:]) }
func SetLane32(v Vector, i int, x uint32) {
	binary.LittleEndian.PutUint32(v[i*4:], x)
}

func Lane64(v Vector, i int) uint64 { return binary.LittleEndian.Uint64(v[i*8:]) }
func SetLane64(v Vector, i int, x uint64) {
	binary.LittleEndian.PutUint64(v[i*8:], x)
}

// Pred is a predicate register: bit i governs byte i of a same-indexed
// vector register. Bits outside the significance mask for the element
// width in use must be zero; every predicate-writing primitive maintains
// this.
type Pred []byte

func NewPred() Pred { return make(Pred, PredBytes) }

// Words returns the number of 64-bit words in the predicate.
func (p Pred) Words() int { return len(p) / 8 }

// Word returns 64 predicate bits starting at bit i*64.
func (p Pred) Word(i int) uint64 { return binary.LittleEndian.Uint64(p[i*8:]) }

// SetWord stores 64 predicate bits starting at bit i*64.
func (p Pred) SetWord(i int, w uint64) { binary.LittleEndian.PutUint64(p[i*8:], w) }

// Bit reports predicate bit i (one bit per vector byte).
func (p Pred) Bit(i int) bool { return p[i>>3]&(1<<(uint(i)&7)) != 0 }

// SetBit sets predicate bit i.
func (p Pred) SetBit(i int) { p[i>>3] |= 1 << (uint(i) & 7) }

// Zero clears every bit of the predicate.
func (p Pred) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// PTrue activates every lane at the given element width, clearing all
// non-significant bits.
func PTrue(d Pred, es ElemSize) {
	mask := predEszMasks[es]
	for i := 0; i < d.Words(); i++ {
		d.SetWord(i, mask)
	}
}

// ActiveCount returns the number of active lanes at the given width.
func ActiveCount(g Pred, es ElemSize) int {
	n := 0
	mask := predEszMasks[es]
	for i := 0; i < g.Words(); i++ {
		n += bits.OnesCount64(g.Word(i) & mask)
	}
	return n
}
