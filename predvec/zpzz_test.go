package predvec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// evenPred returns a predicate with every second lane of the given
// width active.
func evenPred(es ElemSize) Pred {
	g := NewPred()
	for i := 0; i < VecBytes/es.Bytes(); i += 2 {
		g.SetBit(i * es.Bytes())
	}
	return g
}

func TestZPZZInactiveLanesUntouched(t *testing.T) {
	d := NewVector()
	n := NewVector()
	m := NewVector()
	for i := range d {
		d[i] = 0xcc
		n[i] = 0x01
		m[i] = 0x02
	}
	g := evenPred(ES8)

	ZPZZ(OpAdd, ES8, d, n, m, g)

	for i := 0; i < VecBytes; i++ {
		if i%2 == 0 {
			require.Equal(t, uint8(3), Lane8(d, i), "active lane %d", i)
		} else {
			require.Equal(t, uint8(0xcc), Lane8(d, i), "inactive lane %d", i)
		}
	}
}

func TestZPZZShiftEdgeCases(t *testing.T) {
	g := NewPred()
	PTrue(g, ES32)

	n := NewVector()
	m := NewVector()
	for i := 0; i < VecBytes/4; i++ {
		SetLane32(n, i, 0x80000001)
		SetLane32(m, i, 32+uint32(i)) // every shift >= width
	}

	d := NewVector()
	ZPZZ(OpLsr, ES32, d, n, m, g)
	for i := 0; i < VecBytes/4; i++ {
		require.Zero(t, Lane32(d, i), "lsr lane %d", i)
	}

	ZPZZ(OpLsl, ES32, d, n, m, g)
	for i := 0; i < VecBytes/4; i++ {
		require.Zero(t, Lane32(d, i), "lsl lane %d", i)
	}

	// Arithmetic shift clamps to width-1: sign fill.
	ZPZZ(OpAsr, ES32, d, n, m, g)
	for i := 0; i < VecBytes/4; i++ {
		require.Equal(t, uint32(0xffffffff), Lane32(d, i), "asr negative lane %d", i)
	}

	for i := 0; i < VecBytes/4; i++ {
		SetLane32(n, i, 0x40000001)
	}
	ZPZZ(OpAsr, ES32, d, n, m, g)
	for i := 0; i < VecBytes/4; i++ {
		require.Zero(t, Lane32(d, i), "asr positive lane %d", i)
	}
}

func TestZPZZDivByZero(t *testing.T) {
	g := evenPred(ES32)
	d := NewVector()
	n := NewVector()
	m := NewVector()
	for i := 0; i < VecBytes/4; i++ {
		SetLane32(d, i, 0xdeadbeef)
		SetLane32(n, i, 100)
		if i%4 == 0 {
			SetLane32(m, i, 0) // zero divisor on some active lanes
		} else {
			SetLane32(m, i, 7)
		}
	}

	ZPZZ(OpUdiv, ES32, d, n, m, g)

	for i := 0; i < VecBytes/4; i++ {
		switch {
		case i%2 != 0:
			require.Equal(t, uint32(0xdeadbeef), Lane32(d, i), "inactive lane %d", i)
		case i%4 == 0:
			require.Zero(t, Lane32(d, i), "zero-divisor lane %d", i)
		default:
			require.Equal(t, uint32(100/7), Lane32(d, i), "lane %d", i)
		}
	}
}

func TestZPZZSdivOverflowWraps(t *testing.T) {
	g := NewPred()
	PTrue(g, ES64)
	d := NewVector()
	n := NewVector()
	m := NewVector()
	SetLane64(n, 0, 0x8000000000000000) // MinInt64
	SetLane64(m, 0, 0xffffffffffffffff) // -1

	ZPZZ(OpSdiv, ES64, d, n, m, g)
	require.Equal(t, uint64(0x8000000000000000), Lane64(d, 0))
}

func TestZPZZMulh64(t *testing.T) {
	g := NewPred()
	PTrue(g, ES64)
	d := NewVector()
	n := NewVector()
	m := NewVector()

	SetLane64(n, 0, uint64(0x8000000000000000))
	SetLane64(m, 0, 2)
	SetLane64(n, 1, 0xffffffffffffffff) // -1 signed
	SetLane64(m, 1, 0xffffffffffffffff)

	ZPZZ(OpUmulh, ES64, d, n, m, g)
	require.Equal(t, uint64(1), Lane64(d, 0))
	require.Equal(t, uint64(0xfffffffffffffffe), Lane64(d, 1))

	ZPZZ(OpSmulh, ES64, d, n, m, g)
	require.Equal(t, uint64(0xffffffffffffffff), Lane64(d, 0)) // MinInt64 * 2 keeps sign
	require.Equal(t, uint64(0), Lane64(d, 1))                  // -1 * -1 = 1, high half 0
}

func TestZPZZMulhNarrow(t *testing.T) {
	g := NewPred()
	PTrue(g, ES8)
	d := NewVector()
	n := NewVector()
	m := NewVector()
	SetLane8(n, 0, 0x80) // -128 signed, 128 unsigned
	SetLane8(m, 0, 0x80)

	ZPZZ(OpSmulh, ES8, d, n, m, g)
	require.Equal(t, uint8(0x40), Lane8(d, 0)) // (-128 * -128) >> 8

	ZPZZ(OpUmulh, ES8, d, n, m, g)
	require.Equal(t, uint8(0x40), Lane8(d, 0)) // (128 * 128) >> 8
}

func TestZPZZAbd(t *testing.T) {
	g := NewPred()
	PTrue(g, ES16)
	d := NewVector()
	n := NewVector()
	m := NewVector()
	SetLane16(n, 0, 10)
	SetLane16(m, 0, 30)
	SetLane16(n, 1, 0x8000) // most negative signed
	SetLane16(m, 1, 1)

	ZPZZ(OpUabd, ES16, d, n, m, g)
	require.Equal(t, uint16(20), Lane16(d, 0))

	ZPZZ(OpSabd, ES16, d, n, m, g)
	require.Equal(t, uint16(20), Lane16(d, 0))
	require.Equal(t, uint16(0x8001), Lane16(d, 1)) // wraps, matching two's complement distance
}

func TestZPZZValid(t *testing.T) {
	require.True(t, OpAdd.Valid(ES8))
	require.True(t, OpSdiv.Valid(ES32))
	require.False(t, OpSdiv.Valid(ES8))
	require.False(t, OpUdiv.Valid(ES16))
	require.False(t, BinOp(numBinOps).Valid(ES8))
	require.Panics(t, func() {
		ZPZZ(OpSdiv, ES8, NewVector(), NewVector(), NewVector(), NewPred())
	})
}
