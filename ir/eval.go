package ir

import (
	"fmt"

	"github.com/colorfulnotion/xlate/plugin"
)

// Memory is the guest memory surface the evaluator loads from and
// stores to.
type Memory interface {
	Load(addr uint64, size int) (uint64, error)
	Store(addr uint64, val uint64, size int) error
}

// Env is the execution environment of one block run. Helper ops receive
// it so they can touch guest memory and fire armed memory
// instrumentation.
type Env struct {
	Regs []uint64 // global value slots, bound to guest registers
	Mem  Memory

	temps  []uint64
	memCbs []plugin.MemCallback
	vaddr  uint64
}

func (e *Env) get(r Ref) uint64 {
	if int(r) < len(e.Regs) {
		return e.Regs[r]
	}
	return e.temps[int(r)-len(e.Regs)]
}

func (e *Env) set(r Ref, v uint64) {
	if int(r) < len(e.Regs) {
		e.Regs[r] = v
		return
	}
	e.temps[int(r)-len(e.Regs)] = v
}

// MemHook reports a helper-performed memory access to any armed
// instrumentation callbacks. Helpers that access guest memory call this
// once per access.
func (e *Env) MemHook(addr uint64, size int, isStore bool) {
	for _, cb := range e.memCbs {
		cb.Fn(e.vaddr, addr, size, isStore, cb.Userdata)
	}
}

// Exit is the terminal state of a block run: the disposition code the
// block was ended with.
type Exit struct {
	Code uint64
}

// Run executes a finalized block against the given register file and
// memory. The only error source is a faulting guest memory access; the
// bad address is reported in the error.
func Run(blk *Block, regs []uint64, mem Memory) (Exit, error) {
	env := &Env{
		Regs:  regs,
		Mem:   mem,
		temps: make([]uint64, blk.NumTemps),
	}

	for i := range blk.Ops {
		op := &blk.Ops[i]
		env.vaddr = op.Vaddr

		switch op.Kind {
		case OpNop, OpGotoTB, OpIOStart, OpIOEnd:
			// markers; no runtime effect here
		case OpMovImm:
			env.set(op.Dst, op.Imm)
		case OpMov:
			env.set(op.Dst, env.get(op.A))
		case OpAdd:
			env.set(op.Dst, env.get(op.A)+env.get(op.B))
		case OpSub:
			env.set(op.Dst, env.get(op.A)-env.get(op.B))
		case OpAnd:
			env.set(op.Dst, env.get(op.A)&env.get(op.B))
		case OpOr:
			env.set(op.Dst, env.get(op.A)|env.get(op.B))
		case OpXor:
			env.set(op.Dst, env.get(op.A)^env.get(op.B))
		case OpShl:
			env.set(op.Dst, env.get(op.A)<<(env.get(op.B)&63))
		case OpShr:
			env.set(op.Dst, env.get(op.A)>>(env.get(op.B)&63))
		case OpSar:
			env.set(op.Dst, uint64(int64(env.get(op.A))>>(env.get(op.B)&63)))
		case OpMul:
			env.set(op.Dst, env.get(op.A)*env.get(op.B))
		case OpSetCondEQ:
			env.set(op.Dst, b2u(env.get(op.A) == env.get(op.B)))
		case OpSetCondLTU:
			env.set(op.Dst, b2u(env.get(op.A) < env.get(op.B)))
		case OpLoad:
			addr := env.get(op.A) + op.Imm
			v, err := mem.Load(addr, op.Size)
			if err != nil {
				return Exit{}, fmt.Errorf("load at %#x: %w", addr, err)
			}
			env.set(op.Dst, v)
			for _, cb := range op.MemCbs {
				cb.Fn(op.Vaddr, addr, op.Size, false, cb.Userdata)
			}
		case OpStore:
			addr := env.get(op.A) + op.Imm
			if err := mem.Store(addr, env.get(op.B), op.Size); err != nil {
				return Exit{}, fmt.Errorf("store at %#x: %w", addr, err)
			}
			for _, cb := range op.MemCbs {
				cb.Fn(op.Vaddr, addr, op.Size, true, cb.Userdata)
			}
		case OpSetPC:
			env.set(op.Dst, op.Imm)
		case OpSetPCCond:
			if env.get(op.A) != 0 {
				env.set(op.Dst, op.Imm)
			} else {
				env.set(op.Dst, op.Imm2)
			}
		case OpExit:
			return Exit{Code: op.Imm}, nil
		case OpHelper:
			op.Call(env)
		case OpExecCb:
			for _, cb := range op.Cbs {
				cb.Fn(op.Vaddr, cb.Userdata)
			}
		case OpMemEnable:
			env.memCbs = op.MemCbs
		case OpMemDisable:
			env.memCbs = nil
		default:
			panic(fmt.Sprintf("ir: unhandled op kind %s", op.Kind))
		}
	}
	panic("ir: block has no exit")
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
