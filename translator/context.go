// Package translator implements the generic, front-end-agnostic block
// translation driver: it pulls instructions from a target's decoder one
// at a time, drives per-instruction translate callbacks into a code
// buffer, tracks control-flow disposition across instructions, enforces
// instruction-count and breakpoint policy, and runs the two-pass
// translate-then-instrument protocol when instrumentation subscribers
// exist.
package translator

import (
	"github.com/colorfulnotion/xlate/ir"
	"github.com/colorfulnotion/xlate/plugin"
)

// DisasJumpType is the per-block control-flow disposition driving the
// translation loop's state machine.
type DisasJumpType int

const (
	// DisasNext: keep translating the next instruction.
	DisasNext DisasJumpType = iota
	// DisasTooMany: stop after this instruction (cap reached, buffer
	// full, or a breakpoint that wants one more instruction executed).
	DisasTooMany
	// DisasNoReturn: the block ends without falling through.
	DisasNoReturn
	// DisasTarget0 and up are target-specific terminal states.
	DisasTarget0
)

// Context is the architecture-independent part of the per-translation
// disassembly state. Targets embed it in their own context type.
type Context struct {
	TB         *TranslationBlock
	PCFirst    uint64
	PCNext     uint64
	IsJmp      DisasJumpType
	NumInsns   int
	MaxInsns   int
	SingleStep bool
}

// Breakpoint is an active debug breakpoint on a guest PC.
type Breakpoint struct {
	PC uint64
}

// CPUState is the execution context a block is translated for.
type CPUState struct {
	SingleStep  bool
	Breakpoints []Breakpoint

	// Env is target-owned state; the driver never inspects it.
	Env any
}

// Target is the per-architecture translation contract. All methods are
// invoked with exclusive access to the target context for the duration
// of one Translate call. TranslateInsn must advance Base().PCNext and
// set Base().IsJmp; everything it mutates other than its context and
// the code buffer must be re-derivable, because an instrumented
// translation runs it twice over the same instructions.
type Target interface {
	// Base returns the embedded architecture-independent context.
	Base() *Context

	// Checkpoint captures the full target context (including Base)
	// right before the first instruction; Restore rewinds to it for
	// the second pass.
	Checkpoint() any
	Restore(snapshot any)

	// InitContext finishes per-translation context setup.
	InitContext(cpu *CPUState)

	// TBStart emits block prologue operations.
	TBStart(cpu *CPUState)

	// InsnStart hooks the beginning of each instruction.
	InsnStart(cpu *CPUState)

	// BreakpointCheck lets the target handle a breakpoint at PCNext.
	// Returning true consumes the breakpoint as an extra instruction;
	// the target signals how translation proceeds through IsJmp:
	// DisasTooMany to execute one more instruction then stop, or a
	// stronger exit state to stop immediately.
	BreakpointCheck(cpu *CPUState, bp Breakpoint) bool

	// TranslateInsn decodes and translates one instruction.
	TranslateInsn(cpu *CPUState, slot *plugin.Insn)

	// TBStop emits the block's final exit edge for the terminal IsJmp.
	TBStop(cpu *CPUState)

	// DisasLog pretty-prints the finished block for debug logging.
	DisasLog(cpu *CPUState)
}

// Emitter is the code-emission surface the driver itself needs. The
// concrete ir.Buffer implements it alongside the richer target-facing
// API.
type Emitter interface {
	StartFunc()
	Full() bool
	LiveTemps() int
	SetInsnVaddr(vaddr uint64)
	EmitExecCallbacks(cbs []plugin.ExecCallback)
	SetMemCallbacks(cbs []plugin.MemCallback)
	EmitMemEnable(cbs []plugin.MemCallback)
	EmitMemDisable()
	EmitIOStart()
	EmitIOEnd()
	Finalize() *ir.Block
}

var _ Emitter = (*ir.Buffer)(nil)
