package predvec

import "fmt"

// PredOp names a bitwise operation across whole predicate-register words.
// The predicate registers themselves are the operands; each result word
// is masked by the governing predicate, except SEL which uses the
// governing predicate as the selector with no additional masking.
type PredOp int

const (
	POpAnd PredOp = iota
	POpBic
	POpEor
	POpSel
	POpOrr
	POpOrn
	POpNor
	POpNand
	numPredOps
)

var predOpNames = [numPredOps]string{
	"and", "bic", "eor", "sel", "orr", "orn", "nor", "nand",
}

func (op PredOp) String() string {
	if op >= 0 && op < numPredOps {
		return predOpNames[op]
	}
	return fmt.Sprintf("predop(%d)", int(op))
}

var predOpFns = [numPredOps]func(n, m, g uint64) uint64{
	POpAnd:  func(n, m, g uint64) uint64 { return n & m & g },
	POpBic:  func(n, m, g uint64) uint64 { return n &^ m & g },
	POpEor:  func(n, m, g uint64) uint64 { return (n ^ m) & g },
	POpSel:  func(n, m, g uint64) uint64 { return n&g | m&^g },
	POpOrr:  func(n, m, g uint64) uint64 { return (n | m) & g },
	POpOrn:  func(n, m, g uint64) uint64 { return (n | ^m) & g },
	POpNor:  func(n, m, g uint64) uint64 { return ^(n | m) & g },
	POpNand: func(n, m, g uint64) uint64 { return ^(n & m) & g },
}

// Valid reports whether op names a predicate logical form.
func (op PredOp) Valid() bool { return op >= 0 && op < numPredOps }

// PPPP applies the predicate-logic op word by word: d = op(n, m, g).
func PPPP(op PredOp, d, n, m, g Pred) {
	fn := predOpFns[op]
	for i := 0; i < d.Words(); i++ {
		d.SetWord(i, fn(n.Word(i), m.Word(i), g.Word(i)))
	}
}
