package predvec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPPPPMaskedByGoverningPredicate(t *testing.T) {
	d := NewPred()
	n := NewPred()
	m := NewPred()
	g := NewPred()
	n.SetWord(0, 0xff00ff00ff00ff00)
	m.SetWord(0, 0xffff0000ffff0000)
	g.SetWord(0, 0x00000000ffffffff)

	PPPP(POpAnd, d, n, m, g)
	require.Equal(t, uint64(0xff000000&0xffffffff), d.Word(0))
	require.Zero(t, d.Word(1), "untouched high word stays clear")

	PPPP(POpNand, d, n, m, g)
	require.Equal(t, ^uint64(0xff000000)&0xffffffff, d.Word(0))

	PPPP(POpOrn, d, n, m, g)
	require.Equal(t, (0xff00ff00ff00ff00|^uint64(0xffff0000ffff0000))&0xffffffff, d.Word(0))
}

func TestPPPPSelIsUnmasked(t *testing.T) {
	d := NewPred()
	n := NewPred()
	m := NewPred()
	g := NewPred()
	n.SetWord(0, 0xaaaaaaaaaaaaaaaa)
	m.SetWord(0, 0x5555555555555555)
	g.SetWord(0, 0x00000000ffffffff)

	PPPP(POpSel, d, n, m, g)
	// Selector low half picks n, high half picks m; nothing else masks.
	require.Equal(t, uint64(0x55555555aaaaaaaa), d.Word(0))
}
