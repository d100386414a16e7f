package predvec

import (
	"fmt"
	"math/bits"
)

// BinOp names a predicated binary elementwise operation.
type BinOp int

const (
	OpAnd BinOp = iota
	OpOrr
	OpEor
	OpBic
	OpAdd
	OpSub
	OpSmax
	OpUmax
	OpSmin
	OpUmin
	OpSabd
	OpUabd
	OpMul
	OpSmulh
	OpUmulh
	OpSdiv
	OpUdiv
	OpAsr
	OpLsr
	OpLsl
	numBinOps
)

var binOpNames = [numBinOps]string{
	"and", "orr", "eor", "bic", "add", "sub", "smax", "umax", "smin", "umin",
	"sabd", "uabd", "mul", "smulh", "umulh", "sdiv", "udiv", "asr", "lsr", "lsl",
}

func (op BinOp) String() string {
	if op >= 0 && op < numBinOps {
		return binOpNames[op]
	}
	return fmt.Sprintf("binop(%d)", int(op))
}

type zpzzFn func(d, n, m Vector, g Pred)

// zpzz builds the lane loop for one (op, type) pair. For each active lane
// d[i] = op(n[i], m[i]); inactive lanes are left untouched. A caller that
// wants zeroed inactive lanes clears them first (see Clr).
func zpzz[T Lane](op func(T, T) T) zpzzFn {
	es := laneBytes[T]()
	return func(d, n, m Vector, g Pred) {
		for i := 0; i < len(d); i += es {
			if g.Bit(i) {
				store(d, i, op(load[T](n, i), load[T](m, i)))
			}
		}
	}
}

func doAnd[T UnsignedLane](n, m T) T { return n & m }
func doOrr[T UnsignedLane](n, m T) T { return n | m }
func doEor[T UnsignedLane](n, m T) T { return n ^ m }
func doBic[T UnsignedLane](n, m T) T { return n &^ m }
func doAdd[T UnsignedLane](n, m T) T { return n + m }
func doSub[T UnsignedLane](n, m T) T { return n - m }
func doMul[T UnsignedLane](n, m T) T { return n * m }

func doMax[T Lane](n, m T) T {
	if n >= m {
		return n
	}
	return m
}

func doMin[T Lane](n, m T) T {
	if n >= m {
		return m
	}
	return n
}

func doAbd[T Lane](n, m T) T {
	if n >= m {
		return n - m
	}
	return m - n
}

// doUdiv yields 0 on a zero divisor rather than trapping.
func doUdiv[T UnsignedLane](n, m T) T {
	if m == 0 {
		return 0
	}
	return n / m
}

// doSdiv yields 0 on a zero divisor; MinInt / -1 wraps to MinInt.
func doSdiv[T SignedLane](n, m T) T {
	if m == 0 {
		return 0
	}
	if m == -1 {
		return -n
	}
	return n / m
}

// All bits of the shift operand are significant, not modulo the element
// size. Logical shifts by >= width produce 0; arithmetic right shift
// clamps to width-1 so the result is sign fill.
func doAsr[T SignedLane](n, m T) T {
	w := uint64(laneBytes[T]()) * 8
	sh := uint64(m)
	if sh >= w {
		sh = w - 1
	}
	return n >> sh
}

func doLsr[T UnsignedLane](n, m T) T {
	w := uint64(laneBytes[T]()) * 8
	if uint64(m) >= w {
		return 0
	}
	return n >> uint64(m)
}

func doLsl[T UnsignedLane](n, m T) T {
	w := uint64(laneBytes[T]()) * 8
	if uint64(m) >= w {
		return 0
	}
	return n << uint64(m)
}

// Multiply-high variants compute in double width and keep the upper half.
// For the narrow widths one signed intermediate serves both signednesses,
// since the computation type is at least twice as large as the operands.
func mulh8(n, m int32) int32  { return (n * m) >> 8 }
func mulh16(n, m int32) int32 { return (n * m) >> 16 }
func mulh32(n, m int64) int64 { return (n * m) >> 32 }

func smulh64(n, m int64) int64 {
	hi, _ := bits.Mul64(uint64(n), uint64(m))
	if n < 0 {
		hi -= uint64(m)
	}
	if m < 0 {
		hi -= uint64(n)
	}
	return int64(hi)
}

func umulh64(n, m uint64) uint64 {
	hi, _ := bits.Mul64(n, m)
	return hi
}

// Valid reports whether the op has an implementation at the given
// element size. Division and the high-half multiplies are not defined
// for every width.
func (op BinOp) Valid(es ElemSize) bool {
	return op >= 0 && op < numBinOps && es <= ES64 && zpzzFns[op][es] != nil
}

var zpzzFns [numBinOps][4]zpzzFn

func init() {
	zpzzFns[OpAnd] = [4]zpzzFn{zpzz(doAnd[uint8]), zpzz(doAnd[uint16]), zpzz(doAnd[uint32]), zpzz(doAnd[uint64])}
	zpzzFns[OpOrr] = [4]zpzzFn{zpzz(doOrr[uint8]), zpzz(doOrr[uint16]), zpzz(doOrr[uint32]), zpzz(doOrr[uint64])}
	zpzzFns[OpEor] = [4]zpzzFn{zpzz(doEor[uint8]), zpzz(doEor[uint16]), zpzz(doEor[uint32]), zpzz(doEor[uint64])}
	zpzzFns[OpBic] = [4]zpzzFn{zpzz(doBic[uint8]), zpzz(doBic[uint16]), zpzz(doBic[uint32]), zpzz(doBic[uint64])}
	zpzzFns[OpAdd] = [4]zpzzFn{zpzz(doAdd[uint8]), zpzz(doAdd[uint16]), zpzz(doAdd[uint32]), zpzz(doAdd[uint64])}
	zpzzFns[OpSub] = [4]zpzzFn{zpzz(doSub[uint8]), zpzz(doSub[uint16]), zpzz(doSub[uint32]), zpzz(doSub[uint64])}
	zpzzFns[OpSmax] = [4]zpzzFn{zpzz(doMax[int8]), zpzz(doMax[int16]), zpzz(doMax[int32]), zpzz(doMax[int64])}
	zpzzFns[OpUmax] = [4]zpzzFn{zpzz(doMax[uint8]), zpzz(doMax[uint16]), zpzz(doMax[uint32]), zpzz(doMax[uint64])}
	zpzzFns[OpSmin] = [4]zpzzFn{zpzz(doMin[int8]), zpzz(doMin[int16]), zpzz(doMin[int32]), zpzz(doMin[int64])}
	zpzzFns[OpUmin] = [4]zpzzFn{zpzz(doMin[uint8]), zpzz(doMin[uint16]), zpzz(doMin[uint32]), zpzz(doMin[uint64])}
	zpzzFns[OpSabd] = [4]zpzzFn{zpzz(doAbd[int8]), zpzz(doAbd[int16]), zpzz(doAbd[int32]), zpzz(doAbd[int64])}
	zpzzFns[OpUabd] = [4]zpzzFn{zpzz(doAbd[uint8]), zpzz(doAbd[uint16]), zpzz(doAbd[uint32]), zpzz(doAbd[uint64])}
	zpzzFns[OpMul] = [4]zpzzFn{zpzz(doMul[uint8]), zpzz(doMul[uint16]), zpzz(doMul[uint32]), zpzz(doMul[uint64])}
	zpzzFns[OpSmulh] = [4]zpzzFn{
		zpzz(func(n, m int8) int8 { return int8(mulh8(int32(n), int32(m))) }),
		zpzz(func(n, m int16) int16 { return int16(mulh16(int32(n), int32(m))) }),
		zpzz(func(n, m int32) int32 { return int32(mulh32(int64(n), int64(m))) }),
		zpzz(smulh64),
	}
	zpzzFns[OpUmulh] = [4]zpzzFn{
		zpzz(func(n, m uint8) uint8 { return uint8(mulh8(int32(n), int32(m))) }),
		zpzz(func(n, m uint16) uint16 { return uint16(mulh16(int32(n), int32(m))) }),
		zpzz(func(n, m uint32) uint32 { return uint32(mulh32(int64(n), int64(m))) }),
		zpzz(umulh64),
	}
	// Division exists only at 32 and 64-bit widths.
	zpzzFns[OpSdiv] = [4]zpzzFn{nil, nil, zpzz(doSdiv[int32]), zpzz(doSdiv[int64])}
	zpzzFns[OpUdiv] = [4]zpzzFn{nil, nil, zpzz(doUdiv[uint32]), zpzz(doUdiv[uint64])}
	zpzzFns[OpAsr] = [4]zpzzFn{zpzz(doAsr[int8]), zpzz(doAsr[int16]), zpzz(doAsr[int32]), zpzz(doAsr[int64])}
	zpzzFns[OpLsr] = [4]zpzzFn{zpzz(doLsr[uint8]), zpzz(doLsr[uint16]), zpzz(doLsr[uint32]), zpzz(doLsr[uint64])}
	zpzzFns[OpLsl] = [4]zpzzFn{zpzz(doLsl[uint8]), zpzz(doLsl[uint16]), zpzz(doLsl[uint32]), zpzz(doLsl[uint64])}
}

// ZPZZ applies the predicated binary op at the given element width:
// d[i] = op(n[i], m[i]) for every lane whose governing predicate bit is
// set. Panics if the op does not exist at that width.
func ZPZZ(op BinOp, es ElemSize, d, n, m Vector, g Pred) {
	fn := zpzzFns[op][es]
	if fn == nil {
		panic(fmt.Sprintf("predvec: op %s undefined at esz %d", op, es))
	}
	fn(d, n, m, g)
}
