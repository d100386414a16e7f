// Package ir is the code-emission backend of the translation engine: a
// symbolic operation buffer that targets emit into, plus an evaluator
// that executes a finalized block against guest state. Temporaries are
// explicitly allocated and freed so the driver can detect leaks.
package ir

import (
	"fmt"

	"github.com/colorfulnotion/xlate/plugin"
)

// Ref names a value slot. Slots below the buffer's global count are
// bound to guest registers; the rest are scratch temporaries.
type Ref int

type OpKind int

const (
	OpNop OpKind = iota
	OpMovImm      // dst <- Imm
	OpMov         // dst <- a
	OpAdd         // dst <- a + b
	OpSub         // dst <- a - b
	OpAnd         // dst <- a & b
	OpOr          // dst <- a | b
	OpXor         // dst <- a ^ b
	OpShl         // dst <- a << (b & 63)
	OpShr         // dst <- a >> (b & 63), logical
	OpSar         // dst <- a >> (b & 63), arithmetic
	OpMul         // dst <- a * b
	OpSetCondEQ   // dst <- a == b ? 1 : 0
	OpSetCondLTU  // dst <- a < b (unsigned) ? 1 : 0
	OpLoad        // dst <- mem[a + Imm], Size bytes, zero extended
	OpStore       // mem[a + Imm] <- b, Size bytes
	OpSetPC       // pc <- Imm
	OpSetPCCond   // pc <- a != 0 ? Imm : Imm2
	OpGotoTB      // direct-jump chain slot Imm (0 or 1)
	OpExit        // end execution with disposition Imm
	OpHelper      // call host helper (Call payload)
	OpExecCb      // instrumentation execution callbacks (Cbs payload)
	OpMemEnable   // arm helper-based memory instrumentation (MemCbs payload)
	OpMemDisable  // disarm helper-based memory instrumentation
	OpIOStart     // I/O window open marker
	OpIOEnd       // I/O window close marker
)

var opKindNames = map[OpKind]string{
	OpNop: "nop", OpMovImm: "movi", OpMov: "mov", OpAdd: "add", OpSub: "sub",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpShl: "shl", OpShr: "shr",
	OpSar: "sar", OpMul: "mul", OpSetCondEQ: "seteq", OpSetCondLTU: "setltu",
	OpLoad: "ld", OpStore: "st", OpSetPC: "setpc", OpSetPCCond: "setpc.cond",
	OpGotoTB: "goto_tb", OpExit: "exit", OpHelper: "helper", OpExecCb: "exec_cb",
	OpMemEnable: "mem_enable", OpMemDisable: "mem_disable",
	OpIOStart: "io_start", OpIOEnd: "io_end",
}

func (k OpKind) String() string {
	if s, ok := opKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Op is one emitted operation. Which fields are meaningful depends on
// Kind; unused ones are zero.
type Op struct {
	Kind OpKind
	Dst  Ref
	A, B Ref
	Imm  uint64
	Imm2 uint64
	Size int

	// Call is the host function for OpHelper ops.
	Call func(env *Env)

	// Cbs / MemCbs carry instrumentation payloads for OpExecCb,
	// OpMemEnable and for inline-instrumented memory ops.
	Cbs    []plugin.ExecCallback
	MemCbs []plugin.MemCallback

	// Vaddr is the guest PC the op was emitted for, used when invoking
	// instrumentation callbacks.
	Vaddr uint64
}
