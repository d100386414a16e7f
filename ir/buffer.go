package ir

import (
	"fmt"

	"github.com/colorfulnotion/xlate/plugin"
)

// DefaultMaxOps bounds the number of operations one block may emit; the
// driver treats a full buffer as a stop condition.
const DefaultMaxOps = 4096

// Buffer collects operations for one translation block. StartFunc resets
// it; the same buffer is reused across both passes of an instrumented
// translation and across blocks.
type Buffer struct {
	maxOps   int
	nGlobals int

	ops       []Op
	nTemps    int
	liveTemps int

	// memCbs, when set during pass 2, are attached to every inline
	// memory op emitted for the current instruction.
	memCbs    []plugin.MemCallback
	insnVaddr uint64
}

// NewBuffer returns a buffer whose first nGlobals value slots are bound
// to guest registers.
func NewBuffer(nGlobals, maxOps int) *Buffer {
	if maxOps <= 0 {
		maxOps = DefaultMaxOps
	}
	return &Buffer{maxOps: maxOps, nGlobals: nGlobals}
}

// StartFunc resets the buffer for a fresh translation attempt. Pairs
// with the temp-leak check: the temporary counters restart at zero.
func (b *Buffer) StartFunc() {
	b.ops = b.ops[:0]
	b.nTemps = 0
	b.liveTemps = 0
	b.memCbs = nil
	b.insnVaddr = 0
}

// Full reports whether the output buffer has no room for another
// instruction's worth of operations.
func (b *Buffer) Full() bool {
	return len(b.ops) >= b.maxOps
}

// LiveTemps returns the number of allocated-but-unfreed temporaries.
func (b *Buffer) LiveTemps() int {
	return b.liveTemps
}

// NewTemp allocates a scratch value slot.
func (b *Buffer) NewTemp() Ref {
	r := Ref(b.nGlobals + b.nTemps)
	b.nTemps++
	b.liveTemps++
	return r
}

// FreeTemp releases a scratch value slot.
func (b *Buffer) FreeTemp(r Ref) {
	if int(r) < b.nGlobals {
		panic(fmt.Sprintf("ir: free of global slot %d", r))
	}
	b.liveTemps--
}

// SetInsnVaddr records the guest PC subsequent ops are emitted for.
func (b *Buffer) SetInsnVaddr(vaddr uint64) {
	b.insnVaddr = vaddr
}

func (b *Buffer) push(op Op) {
	op.Vaddr = b.insnVaddr
	b.ops = append(b.ops, op)
}

// Emit3 emits a three-address op.
func (b *Buffer) Emit3(kind OpKind, dst, a, bb Ref) {
	b.push(Op{Kind: kind, Dst: dst, A: a, B: bb})
}

// Emit2 emits a two-address op.
func (b *Buffer) Emit2(kind OpKind, dst, a Ref) {
	b.push(Op{Kind: kind, Dst: dst, A: a})
}

// EmitMovImm loads a constant into a value slot.
func (b *Buffer) EmitMovImm(dst Ref, imm uint64) {
	b.push(Op{Kind: OpMovImm, Dst: dst, Imm: imm})
}

// EmitLoad emits a zero-extending guest memory load of size bytes from
// addr+off. Inline memory instrumentation, when armed, rides along on
// the op itself.
func (b *Buffer) EmitLoad(dst, addr Ref, off uint64, size int) {
	b.push(Op{Kind: OpLoad, Dst: dst, A: addr, Imm: off, Size: size, MemCbs: b.memCbs})
}

// EmitStore emits a guest memory store of size bytes to addr+off.
func (b *Buffer) EmitStore(addr, src Ref, off uint64, size int) {
	b.push(Op{Kind: OpStore, A: addr, B: src, Imm: off, Size: size, MemCbs: b.memCbs})
}

// EmitSetPC sets the guest PC slot to a constant.
func (b *Buffer) EmitSetPC(pcReg Ref, pc uint64) {
	b.push(Op{Kind: OpSetPC, Dst: pcReg, Imm: pc})
}

// EmitSetPCCond sets the guest PC slot to taken when cond is nonzero,
// to fallthrough otherwise.
func (b *Buffer) EmitSetPCCond(pcReg, cond Ref, taken, fallthru uint64) {
	b.push(Op{Kind: OpSetPCCond, Dst: pcReg, A: cond, Imm: taken, Imm2: fallthru})
}

// EmitGotoTB marks a direct-jump chain slot.
func (b *Buffer) EmitGotoTB(slot int) {
	b.push(Op{Kind: OpGotoTB, Imm: uint64(slot)})
}

// EmitExit ends the block with the given disposition code.
func (b *Buffer) EmitExit(code uint64) {
	b.push(Op{Kind: OpExit, Imm: code})
}

// EmitHelper emits a host helper call.
func (b *Buffer) EmitHelper(fn func(env *Env)) {
	b.push(Op{Kind: OpHelper, Call: fn})
}

// --- driver-facing emission (instrumentation and policy markers) ---

// EmitExecCallbacks emits the instrumentation execution callbacks ops.
func (b *Buffer) EmitExecCallbacks(cbs []plugin.ExecCallback) {
	b.push(Op{Kind: OpExecCb, Cbs: cbs})
}

// SetMemCallbacks arms (or with nil disarms) inline memory
// instrumentation for the current instruction.
func (b *Buffer) SetMemCallbacks(cbs []plugin.MemCallback) {
	b.memCbs = cbs
}

// EmitMemEnable brackets helper-based memory instrumentation on.
func (b *Buffer) EmitMemEnable(cbs []plugin.MemCallback) {
	b.push(Op{Kind: OpMemEnable, MemCbs: cbs})
}

// EmitMemDisable brackets helper-based memory instrumentation off.
func (b *Buffer) EmitMemDisable() {
	b.push(Op{Kind: OpMemDisable})
}

// EmitIOStart opens the I/O window on the last allowed instruction.
func (b *Buffer) EmitIOStart() {
	b.push(Op{Kind: OpIOStart})
}

// EmitIOEnd closes the I/O window.
func (b *Buffer) EmitIOEnd() {
	b.push(Op{Kind: OpIOEnd})
}

// NumOps returns the number of ops emitted so far.
func (b *Buffer) NumOps() int {
	return len(b.ops)
}

// Finalize snapshots the emitted operations into an immutable block.
func (b *Buffer) Finalize() *Block {
	ops := make([]Op, len(b.ops))
	copy(ops, b.ops)
	return &Block{
		Ops:       ops,
		NumValues: b.nGlobals + b.nTemps,
		NumTemps:  b.nTemps,
	}
}

// Block is a finalized, read-only operation sequence.
type Block struct {
	Ops       []Op
	NumValues int
	NumTemps  int
}
