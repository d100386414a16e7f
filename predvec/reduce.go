package predvec

import (
	"fmt"
	"math"
)

// RedOp names a predicated reduction over the active lanes of one vector.
type RedOp int

const (
	OpOrv RedOp = iota
	OpEorv
	OpAndv
	OpSaddv
	OpUaddv
	OpSmaxv
	OpUmaxv
	OpSminv
	OpUminv
	numRedOps
)

var redOpNames = [numRedOps]string{
	"orv", "eorv", "andv", "saddv", "uaddv", "smaxv", "umaxv", "sminv", "uminv",
}

func (op RedOp) String() string {
	if op >= 0 && op < numRedOps {
		return redOpNames[op]
	}
	return fmt.Sprintf("redop(%d)", int(op))
}

type redFn func(n Vector, g Pred) uint64

// vpz folds the active lanes left to right. The fold type R and the
// final conversion differ because of sign extension: e.g. a signed MAX
// reduction of 8-bit lanes must widen the 8-bit result without sign
// extending past the reduction type.
func vpz[E Lane, R Lane](init R, fold func(R, E) R, ret func(R) uint64) redFn {
	es := laneBytes[E]()
	return func(n Vector, g Pred) uint64 {
		acc := init
		for i := 0; i < len(n); i += es {
			if g.Bit(i) {
				acc = fold(acc, load[E](n, i))
			}
		}
		return ret(acc)
	}
}

func foldOr[T UnsignedLane](r, e T) T  { return r | e }
func foldEor[T UnsignedLane](r, e T) T { return r ^ e }
func foldAnd[T UnsignedLane](r, e T) T { return r & e }

func foldAddS[E SignedLane](r uint64, e E) uint64   { return r + uint64(int64(e)) }
func foldAddU[E UnsignedLane](r uint64, e E) uint64 { return r + uint64(e) }

func retU64(r uint64) uint64 { return r }

// Widening of the reduction result: unsigned results zero-extend, signed
// results convert to the same-width unsigned representation first.
func retU[R UnsignedLane](r R) uint64 { return uint64(r) }

func retS8(r int8) uint64   { return uint64(uint8(r)) }
func retS16(r int16) uint64 { return uint64(uint16(r)) }
func retS32(r int32) uint64 { return uint64(uint32(r)) }
func retS64(r int64) uint64 { return uint64(r) }

// Valid reports whether the reduction exists at the given element size.
func (op RedOp) Valid(es ElemSize) bool {
	return op >= 0 && op < numRedOps && es <= ES64 && redFns[op][es] != nil
}

var redFns [numRedOps][4]redFn

func init() {
	redFns[OpOrv] = [4]redFn{
		vpz(uint8(0), foldOr[uint8], retU[uint8]),
		vpz(uint16(0), foldOr[uint16], retU[uint16]),
		vpz(uint32(0), foldOr[uint32], retU[uint32]),
		vpz(uint64(0), foldOr[uint64], retU[uint64]),
	}
	redFns[OpEorv] = [4]redFn{
		vpz(uint8(0), foldEor[uint8], retU[uint8]),
		vpz(uint16(0), foldEor[uint16], retU[uint16]),
		vpz(uint32(0), foldEor[uint32], retU[uint32]),
		vpz(uint64(0), foldEor[uint64], retU[uint64]),
	}
	redFns[OpAndv] = [4]redFn{
		vpz(^uint8(0), foldAnd[uint8], retU[uint8]),
		vpz(^uint16(0), foldAnd[uint16], retU[uint16]),
		vpz(^uint32(0), foldAnd[uint32], retU[uint32]),
		vpz(^uint64(0), foldAnd[uint64], retU[uint64]),
	}
	// The additive reductions widen into a 64-bit accumulator; the
	// signed variant sign-extends each lane on the way in. A signed
	// 64-bit variant would be identical to the unsigned one.
	redFns[OpSaddv] = [4]redFn{
		vpz(uint64(0), foldAddS[int8], retU64),
		vpz(uint64(0), foldAddS[int16], retU64),
		vpz(uint64(0), foldAddS[int32], retU64),
		nil,
	}
	redFns[OpUaddv] = [4]redFn{
		vpz(uint64(0), foldAddU[uint8], retU64),
		vpz(uint64(0), foldAddU[uint16], retU64),
		vpz(uint64(0), foldAddU[uint32], retU64),
		vpz(uint64(0), foldAddU[uint64], retU64),
	}
	redFns[OpSmaxv] = [4]redFn{
		vpz(int8(math.MinInt8), doMax[int8], retS8),
		vpz(int16(math.MinInt16), doMax[int16], retS16),
		vpz(int32(math.MinInt32), doMax[int32], retS32),
		vpz(int64(math.MinInt64), doMax[int64], retS64),
	}
	redFns[OpUmaxv] = [4]redFn{
		vpz(uint8(0), doMax[uint8], retU[uint8]),
		vpz(uint16(0), doMax[uint16], retU[uint16]),
		vpz(uint32(0), doMax[uint32], retU[uint32]),
		vpz(uint64(0), doMax[uint64], retU[uint64]),
	}
	redFns[OpSminv] = [4]redFn{
		vpz(int8(math.MaxInt8), doMin[int8], retS8),
		vpz(int16(math.MaxInt16), doMin[int16], retS16),
		vpz(int32(math.MaxInt32), doMin[int32], retS32),
		vpz(int64(math.MaxInt64), doMin[int64], retS64),
	}
	redFns[OpUminv] = [4]redFn{
		vpz(^uint8(0), doMin[uint8], retU[uint8]),
		vpz(^uint16(0), doMin[uint16], retU[uint16]),
		vpz(^uint32(0), doMin[uint32], retU[uint32]),
		vpz(^uint64(0), doMin[uint64], retU[uint64]),
	}
}

// Reduce folds all active lanes of n with the op's identity element and
// returns the widened scalar. Panics if the op does not exist at that
// width.
func Reduce(op RedOp, es ElemSize, n Vector, g Pred) uint64 {
	fn := redFns[op][es]
	if fn == nil {
		panic(fmt.Sprintf("predvec: op %s undefined at esz %d", op, es))
	}
	return fn(n, g)
}
