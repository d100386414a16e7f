package predvec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClrZeroesActiveLanesOnly(t *testing.T) {
	for es := ES8; es <= ES64; es++ {
		d := NewVector()
		for i := range d {
			d[i] = 0xff
		}
		g := evenPred(es)

		Clr(es, d, g)

		lanes := VecBytes / es.Bytes()
		for i := 0; i < lanes; i++ {
			off := i * es.Bytes()
			for b := 0; b < es.Bytes(); b++ {
				if i%2 == 0 {
					require.Equal(t, byte(0), d[off+b], "esz %d lane %d byte %d", es, i, b)
				} else {
					require.Equal(t, byte(0xff), d[off+b], "esz %d lane %d byte %d", es, i, b)
				}
			}
		}
	}
}

func TestClrIgnoresInsignificantBits(t *testing.T) {
	// Garbage bits outside the 32-bit significance positions must not
	// clear anything.
	d := NewVector()
	for i := range d {
		d[i] = 0xff
	}
	g := NewPred()
	for i := 0; i < PredBytes*8; i++ {
		if i%4 != 0 {
			g.SetBit(i)
		}
	}

	ClrS(d, g)

	for i := range d {
		require.Equal(t, byte(0xff), d[i], "byte %d", i)
	}
}
