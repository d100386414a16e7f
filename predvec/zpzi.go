package predvec

import "fmt"

// ImmOp names a predicated elementwise op whose second operand is a
// scalar attached at translation time.
type ImmOp int

const (
	OpAsrImm ImmOp = iota
	OpLsrImm
	OpLslImm
	OpAsrdImm
	numImmOps
)

var immOpNames = [numImmOps]string{"asr", "lsr", "lsl", "asrd"}

func (op ImmOp) String() string {
	if op >= 0 && op < numImmOps {
		return immOpNames[op]
	}
	return fmt.Sprintf("immop(%d)", int(op))
}

type zpziFn func(d, n Vector, g Pred, imm uint64)

// zpzi is the immediate-operand counterpart of zpzz: same lane masking,
// second operand fixed. The immediate is pre-validated by the caller to
// be in range for the element width.
func zpzi[T Lane](op func(T, uint64) T) zpziFn {
	es := laneBytes[T]()
	return func(d, n Vector, g Pred, imm uint64) {
		for i := 0; i < len(d); i += es {
			if g.Bit(i) {
				store(d, i, op(load[T](n, i), imm))
			}
		}
	}
}

func doShrImm[T Lane](n T, imm uint64) T { return n >> imm }

func doShlImm[T Lane](n T, imm uint64) T { return n << imm }

// doAsrdImm is arithmetic shift right for division: rounds negative
// values toward zero by adding 2**imm - 1 before shifting.
func doAsrdImm[T SignedLane](n T, imm uint64) T {
	if n < 0 {
		n += T(1)<<imm - 1
	}
	return n >> imm
}

// Valid reports whether op names an immediate-shift form.
func (op ImmOp) Valid(es ElemSize) bool {
	return op >= 0 && op < numImmOps && es <= ES64
}

var zpziFns [numImmOps][4]zpziFn

func init() {
	zpziFns[OpAsrImm] = [4]zpziFn{zpzi(doShrImm[int8]), zpzi(doShrImm[int16]), zpzi(doShrImm[int32]), zpzi(doShrImm[int64])}
	zpziFns[OpLsrImm] = [4]zpziFn{zpzi(doShrImm[uint8]), zpzi(doShrImm[uint16]), zpzi(doShrImm[uint32]), zpzi(doShrImm[uint64])}
	zpziFns[OpLslImm] = [4]zpziFn{zpzi(doShlImm[uint8]), zpzi(doShlImm[uint16]), zpzi(doShlImm[uint32]), zpzi(doShlImm[uint64])}
	zpziFns[OpAsrdImm] = [4]zpziFn{zpzi(doAsrdImm[int8]), zpzi(doAsrdImm[int16]), zpzi(doAsrdImm[int32]), zpzi(doAsrdImm[int64])}
}

// ZPZI applies the predicated immediate op at the given element width.
// The shift amount must be < the element width; a shift equal to the
// width is expressed by the caller as Clr on the active lanes instead.
func ZPZI(op ImmOp, es ElemSize, d, n Vector, g Pred, imm uint64) {
	if imm >= uint64(es.Bits()) {
		panic(fmt.Sprintf("predvec: immediate %d out of range at esz %d", imm, es))
	}
	zpziFns[op][es](d, n, g, imm)
}
