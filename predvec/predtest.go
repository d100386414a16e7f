package predvec

import "math/bits"

// Flags is an NZCV value as per the ARM PredTest pseudofunction: bit 31
// set if N is set, bit 1 set if Z is clear (i.e. some active bit of D was
// set), bit 0 set if C is set. Bit 2 is internal: it marks that the first
// active bit of G has been seen while iterating word by word.
type Flags uint32

// PredTestInit is the accumulator seed: for no G bits set, NZCV = C.
const PredTestInit Flags = 1

func (f Flags) N() bool { return f&(1<<31) != 0 }
func (f Flags) Z() bool { return f&2 != 0 }
func (f Flags) C() bool { return f&1 != 0 }

// Arch strips the internal iteration marker, leaving only the
// architecturally visible bits. Consumers storing flags into guest
// state go through this.
func (f Flags) Arch() Flags { return f & (1<<31 | 2 | 1) }

// pow2floor returns the highest set bit of g; g must be nonzero.
func pow2floor(g uint64) uint64 {
	return 1 << (63 - uint(bits.LeadingZeros64(g)))
}

// iterPredTestFwd folds one (D, G) word pair into the running flags.
// "First" and "last" are defined over the whole multi-word predicate,
// which is why this is inherently sequential, called for each word
// moving forward.
func iterPredTestFwd(d, g uint64, flags Flags) Flags {
	if g != 0 {
		// Compute N from first D & G. Bit 2 signals first G bit seen.
		if flags&4 == 0 {
			if d&(g&-g) != 0 {
				flags |= 1 << 31
			}
			flags |= 4
		}

		// Accumulate Z from each D & G.
		if d&g != 0 {
			flags |= 2
		}

		// Compute C from last !(D & G). Replace previous.
		flags &^= 1
		if d&pow2floor(g) == 0 {
			flags |= 1
		}
	}
	return flags
}

// PredTest1 computes PredTest flags for a single-word predicate pair.
func PredTest1(d, g uint64) Flags {
	return iterPredTestFwd(d, g, PredTestInit)
}

// PredTest computes PredTest flags for a multi-word predicate pair,
// word by word in index order.
func PredTest(d, g Pred) Flags {
	flags := PredTestInit
	for i := 0; i < d.Words(); i++ {
		flags = iterPredTestFwd(d.Word(i), g.Word(i), flags)
	}
	return flags
}

// lastActiveElement is the ARM LastActiveElement pseudocode function
// except the result is multiplied by the element size. This includes the
// not-found indication: not found for esz=3 is -8.
func lastActiveElement(g Pred, es ElemSize) int {
	mask := predEszMasks[es]
	i := g.Words()

	for {
		i--
		thisG := g.Word(i) & mask
		if thisG != 0 {
			return i*64 + (63 - bits.LeadingZeros64(thisG))
		}
		if i == 0 {
			return -1 << es
		}
	}
}

// PFirst finds the first active bit of G and, if it is not already set
// in D, sets it; the flags reflect PredTest over the possibly modified D.
// D is mutated in place.
func PFirst(d, g Pred) Flags {
	flags := PredTestInit

	for i := 0; i < d.Words(); i++ {
		thisD := d.Word(i)
		thisG := g.Word(i)

		if thisG != 0 {
			if flags&4 == 0 {
				// Set in D the first bit of G.
				thisD |= thisG & -thisG
				d.SetWord(i, thisD)
			}
			flags = iterPredTestFwd(thisD, thisG, flags)
		}
	}
	return flags
}

// PNext advances D to the next active element of G after the last active
// element of D at the given width, or to no element if exhausted. D ends
// up with at most one bit set; the return value is PredTest(D, G) over
// the significance-masked G.
func PNext(d, g Pred, es ElemSize) Flags {
	words := d.Words()
	flags := PredTestInit
	eszMask := predEszMasks[es]

	// Scaled by the element size so that the correct bit is found.
	next := lastActiveElement(d, es) + es.Bytes()

	if next < words*64 {
		mask := ^uint64(0)

		if next&63 != 0 {
			mask = ^(uint64(1)<<(uint(next)&63) - 1)
			next &^= 63
		}
		for next < words*64 {
			thisG := g.Word(next/64) & eszMask & mask
			if thisG != 0 {
				next = (next &^ 63) + bits.TrailingZeros64(thisG)
				break
			}
			next += 64
			mask = ^uint64(0)
		}
	}

	for i := 0; i < words; i++ {
		var thisD uint64
		if i == next/64 {
			thisD = 1 << (uint(next) & 63)
		}
		d.SetWord(i, thisD)
		flags = iterPredTestFwd(thisD, g.Word(i)&eszMask, flags)
	}
	return flags
}
