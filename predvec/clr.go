package predvec

// Store zero into every active element of a vector. Used by predicated
// instructions for which logic dictates a zero result, in particular
// logical shift by the element size.
//
// For element sizes smaller than a 64-bit word a single storage word
// holds several predicate-governed elements, so the 8 predicate bits
// covering each word are expanded to a byte mask through a lookup table;
// the 64-bit case is a direct bit test per element. The tables are
// derived constants, built once at package init.

var (
	expandPredB [256]uint64
	expandPredH [256]uint64
	expandPredS [256]uint64
)

func init() {
	for i := 0; i < 256; i++ {
		var b, h, s uint64
		for j := 0; j < 8; j++ {
			if i>>j&1 == 0 {
				continue
			}
			b |= 0xff << (j * 8)
			if j%2 == 0 {
				h |= 0xffff << (j * 8)
			}
			if j%4 == 0 {
				s |= 0xffffffff << (j * 8)
			}
		}
		expandPredB[i] = b
		expandPredH[i&0x55] = h
		expandPredS[i&0x11] = s
	}
}

// ClrB zeroes every active byte lane of d.
func ClrB(d Vector, g Pred) {
	for i := 0; i < len(d)/8; i++ {
		SetLane64(d, i, Lane64(d, i)&^expandPredB[g[i]])
	}
}

// ClrH zeroes every active 16-bit lane of d.
func ClrH(d Vector, g Pred) {
	for i := 0; i < len(d)/8; i++ {
		SetLane64(d, i, Lane64(d, i)&^expandPredH[g[i]&0x55])
	}
}

// ClrS zeroes every active 32-bit lane of d.
func ClrS(d Vector, g Pred) {
	for i := 0; i < len(d)/8; i++ {
		SetLane64(d, i, Lane64(d, i)&^expandPredS[g[i]&0x11])
	}
}

// ClrD zeroes every active 64-bit lane of d.
func ClrD(d Vector, g Pred) {
	for i := 0; i < len(d)/8; i++ {
		if g[i]&1 != 0 {
			SetLane64(d, i, 0)
		}
	}
}

// Clr dispatches to the width-specific clear.
func Clr(es ElemSize, d Vector, g Pred) {
	switch es {
	case ES8:
		ClrB(d, g)
	case ES16:
		ClrH(d, g)
	case ES32:
		ClrS(d, g)
	default:
		ClrD(d, g)
	}
}
