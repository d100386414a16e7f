package guest

import (
	"fmt"

	"github.com/colorfulnotion/xlate/ir"
	"github.com/colorfulnotion/xlate/log"
	"github.com/colorfulnotion/xlate/plugin"
	"github.com/colorfulnotion/xlate/predvec"
	"github.com/colorfulnotion/xlate/translator"
)

const pcRef = ir.Ref(RegPC)

// DisasHalt ends a block at a halt instruction.
const DisasHalt = translator.DisasTarget0

// DisasContext is the toy32 translation context. It is transient: one
// is created per Translate call and thrown away after.
type DisasContext struct {
	translator.Context

	cpu *CPU
	buf *ir.Buffer

	// bpHit marks that this block ends because of a breakpoint folded
	// in as one extra instruction.
	bpHit bool
}

// NewDisasContext builds a context translating cpu's code into buf.
func NewDisasContext(cpu *CPU, buf *ir.Buffer) *DisasContext {
	return &DisasContext{cpu: cpu, buf: buf}
}

var _ translator.Target = (*DisasContext)(nil)

func (dc *DisasContext) Base() *translator.Context { return &dc.Context }

// Checkpoint and Restore snapshot the whole context by value; every
// field is either plain data or a pointer whose referent the
// translation loop never mutates.
func (dc *DisasContext) Checkpoint() any {
	cp := *dc
	return &cp
}

func (dc *DisasContext) Restore(snapshot any) {
	*dc = *snapshot.(*DisasContext)
}

func (dc *DisasContext) InitContext(cpu *translator.CPUState) {}

func (dc *DisasContext) TBStart(cpu *translator.CPUState) {}

func (dc *DisasContext) InsnStart(cpu *translator.CPUState) {}

func (dc *DisasContext) BreakpointCheck(cpu *translator.CPUState, bp translator.Breakpoint) bool {
	dc.bpHit = true
	if dc.cpu.SwBreakOneInsn {
		// Run the trapped instruction, then stop.
		dc.IsJmp = translator.DisasTooMany
		return true
	}
	dc.buf.EmitSetPC(pcRef, dc.PCNext)
	dc.buf.EmitExit(ExitDebug)
	dc.IsJmp = translator.DisasNoReturn
	return true
}

func (dc *DisasContext) TranslateInsn(cpu *translator.CPUState, slot *plugin.Insn) {
	pc := dc.PCNext
	insn := DecodeOne(dc.cpu.Mem, pc)
	if insn.Len == 0 {
		dc.genIllegal(pc)
		return
	}
	if slot != nil && (insn.Op == IOW || insn.Op == IOR) {
		// Accesses through the register bank happen inside a helper
		// call, invisible to inline memory instrumentation.
		slot.CallsHelpers = true
	}
	fn := translateFns[insn.Op]
	if fn == nil {
		dc.genIllegal(pc)
		return
	}
	dc.PCNext = pc + uint64(insn.Len)
	fn(dc, pc, insn)
	translator.TempCheck(&dc.Context, dc.buf)
}

func (dc *DisasContext) TBStop(cpu *translator.CPUState) {
	switch dc.IsJmp {
	case translator.DisasTooMany:
		dc.buf.EmitSetPC(pcRef, dc.PCNext)
		if dc.bpHit {
			dc.buf.EmitExit(ExitDebug)
		} else {
			dc.buf.EmitExit(ExitNormal)
		}
	case translator.DisasNoReturn:
		// The exit edge was already emitted.
	case DisasHalt:
		dc.buf.EmitSetPC(pcRef, dc.PCNext)
		dc.buf.EmitExit(ExitHalt)
	default:
		panic(fmt.Sprintf("guest: tb_stop with is_jmp=%d", dc.IsJmp))
	}
}

func (dc *DisasContext) DisasLog(cpu *translator.CPUState) {
	for pc := dc.PCFirst; pc < dc.PCNext; pc += InsnBytes {
		insn := DecodeOne(dc.cpu.Mem, pc)
		log.Trace(log.GuestMonitoring, "in", "pc", fmt.Sprintf("%#x", pc), "asm", insn.Disasm(pc))
	}
}

func (dc *DisasContext) genIllegal(pc uint64) {
	dc.buf.EmitSetPC(pcRef, pc)
	dc.buf.EmitExit(ExitIllegal)
	dc.IsJmp = translator.DisasNoReturn
}

type translateFn func(dc *DisasContext, pc uint64, insn Insn)

var translateFns [256]translateFn

func init() {
	translateFns[NOP] = func(dc *DisasContext, pc uint64, insn Insn) {}
	translateFns[HALT] = func(dc *DisasContext, pc uint64, insn Insn) {
		dc.IsJmp = DisasHalt
	}
	translateFns[MOVI] = func(dc *DisasContext, pc uint64, insn Insn) {
		dc.buf.EmitMovImm(ir.Ref(insn.Rd), uint64(insn.Imm16))
	}
	translateFns[RDF] = func(dc *DisasContext, pc uint64, insn Insn) {
		cpu, rd := dc.cpu, insn.Rd
		dc.buf.EmitHelper(func(env *ir.Env) {
			env.Regs[rd] = uint64(cpu.Flags)
		})
	}

	alu := map[byte]ir.OpKind{
		ADD: ir.OpAdd, SUB: ir.OpSub, AND: ir.OpAnd, OR: ir.OpOr,
		XOR: ir.OpXor, SHL: ir.OpShl, SHR: ir.OpShr, SAR: ir.OpSar,
		MUL: ir.OpMul,
	}
	for op, kind := range alu {
		k := kind
		translateFns[op] = func(dc *DisasContext, pc uint64, insn Insn) {
			dc.buf.Emit3(k, ir.Ref(insn.Rd), ir.Ref(insn.Ra), ir.Ref(insn.Rb))
		}
	}

	translateFns[LD] = func(dc *DisasContext, pc uint64, insn Insn) {
		dc.buf.EmitLoad(ir.Ref(insn.Rd), ir.Ref(insn.Ra), uint64(insn.Imm12), 8)
	}
	translateFns[LDB] = func(dc *DisasContext, pc uint64, insn Insn) {
		dc.buf.EmitLoad(ir.Ref(insn.Rd), ir.Ref(insn.Ra), uint64(insn.Imm12), 1)
	}
	translateFns[ST] = func(dc *DisasContext, pc uint64, insn Insn) {
		dc.buf.EmitStore(ir.Ref(insn.Ra), ir.Ref(insn.Rd), uint64(insn.Imm12), 8)
	}
	translateFns[STB] = func(dc *DisasContext, pc uint64, insn Insn) {
		dc.buf.EmitStore(ir.Ref(insn.Ra), ir.Ref(insn.Rd), uint64(insn.Imm12), 1)
	}

	translateFns[BR] = translateBR
	translateFns[BEQ] = translateBcc
	translateFns[BNE] = translateBcc

	translateFns[IOW] = translateIOW
	translateFns[IOR] = translateIOR

	translateFns[VOP] = translateVOP
	translateFns[VRED] = translateVRED
	translateFns[VSHI] = translateVSHI
	translateFns[VCLR] = translateVCLR
	translateFns[PLOG] = translatePLOG
	translateFns[PTEST] = translatePTEST
	translateFns[PFIRST] = translatePFIRST
	translateFns[PNEXT] = translatePNEXT
	translateFns[PTRUE] = translatePTRUE
}

// translateBR emits a direct jump: a chainable goto_tb slot when the
// block may be linked, a plain debug exit under single-stepping.
func translateBR(dc *DisasContext, pc uint64, insn Insn) {
	dest := insn.brTarget(pc)
	dc.TB.JumpPC[0] = dest
	if dc.SingleStep {
		dc.buf.EmitSetPC(pcRef, dest)
		dc.buf.EmitExit(ExitDebug)
	} else {
		dc.buf.EmitGotoTB(0)
		dc.buf.EmitSetPC(pcRef, dest)
		dc.buf.EmitExit(ExitNormal)
	}
	dc.IsJmp = translator.DisasNoReturn
}

func translateBcc(dc *DisasContext, pc uint64, insn Insn) {
	taken := insn.condTarget(pc)
	fallthru := dc.PCNext
	if insn.Op == BNE {
		taken, fallthru = fallthru, taken
	}
	t := dc.buf.NewTemp()
	dc.buf.Emit3(ir.OpSetCondEQ, t, ir.Ref(insn.Ra), ir.Ref(insn.Rb))
	dc.buf.EmitSetPCCond(pcRef, t, taken, fallthru)
	dc.buf.FreeTemp(t)
	dc.TB.JumpPC[0] = taken
	dc.TB.JumpPC[1] = fallthru
	if dc.SingleStep {
		dc.buf.EmitExit(ExitDebug)
	} else {
		dc.buf.EmitExit(ExitNormal)
	}
	dc.IsJmp = translator.DisasNoReturn
}

func translateIOW(dc *DisasContext, pc uint64, insn Insn) {
	cpu, ra, off := dc.cpu, insn.Ra, uint64(insn.Imm12)
	dc.buf.EmitHelper(func(env *ir.Env) {
		cpu.IO.Write(off, env.Regs[ra])
		env.MemHook(IOBase+off, 8, true)
	})
}

func translateIOR(dc *DisasContext, pc uint64, insn Insn) {
	cpu, rd, off := dc.cpu, insn.Rd, uint64(insn.Imm12)
	dc.buf.EmitHelper(func(env *ir.Env) {
		env.Regs[rd] = cpu.IO.Read(off)
		env.MemHook(IOBase+off, 8, false)
	})
}

func translateVOP(dc *DisasContext, pc uint64, insn Insn) {
	op, es := insn.vecOp(), insn.esz()
	if !op.Valid(es) {
		dc.genIllegal(pc)
		return
	}
	cpu := dc.cpu
	vd, vn, vm, pg := insn.Rd&3, insn.Ra&3, insn.Rb&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		predvec.ZPZZ(op, es, cpu.V[vd], cpu.V[vn], cpu.V[vm], cpu.P[pg])
	})
}

func translateVRED(dc *DisasContext, pc uint64, insn Insn) {
	op, es := insn.redOp(), insn.esz()
	if !op.Valid(es) {
		dc.genIllegal(pc)
		return
	}
	cpu := dc.cpu
	rd, vn, pg := insn.Rd, insn.Ra&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		env.Regs[rd] = predvec.Reduce(op, es, cpu.V[vn], cpu.P[pg])
	})
}

func translateVSHI(dc *DisasContext, pc uint64, insn Insn) {
	op, es, sh := insn.immOp(), insn.esz(), insn.shImm()
	if !op.Valid(es) || sh >= uint64(es.Bits()) {
		dc.genIllegal(pc)
		return
	}
	cpu := dc.cpu
	vd, vn, pg := insn.Rd&3, insn.Ra&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		predvec.ZPZI(op, es, cpu.V[vd], cpu.V[vn], cpu.P[pg], sh)
	})
}

func translateVCLR(dc *DisasContext, pc uint64, insn Insn) {
	es := insn.esz()
	cpu := dc.cpu
	vd, pg := insn.Rd&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		predvec.Clr(es, cpu.V[vd], cpu.P[pg])
	})
}

func translatePLOG(dc *DisasContext, pc uint64, insn Insn) {
	op := insn.predOp()
	if !op.Valid() {
		dc.genIllegal(pc)
		return
	}
	cpu := dc.cpu
	pd, pn, pm, pg := insn.Rd&3, insn.Ra&3, insn.Rb&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		predvec.PPPP(op, cpu.P[pd], cpu.P[pn], cpu.P[pm], cpu.P[pg])
	})
}

func translatePTEST(dc *DisasContext, pc uint64, insn Insn) {
	cpu := dc.cpu
	pn, pg := insn.Ra&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		cpu.Flags = predvec.PredTest(cpu.P[pn], cpu.P[pg]).Arch()
	})
}

func translatePFIRST(dc *DisasContext, pc uint64, insn Insn) {
	cpu := dc.cpu
	pd, pg := insn.Rd&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		cpu.Flags = predvec.PFirst(cpu.P[pd], cpu.P[pg]).Arch()
	})
}

func translatePNEXT(dc *DisasContext, pc uint64, insn Insn) {
	es := insn.esz()
	cpu := dc.cpu
	pd, pg := insn.Rd&3, insn.pg()
	dc.buf.EmitHelper(func(env *ir.Env) {
		cpu.Flags = predvec.PNext(cpu.P[pd], cpu.P[pg], es).Arch()
	})
}

func translatePTRUE(dc *DisasContext, pc uint64, insn Insn) {
	es := insn.esz()
	cpu := dc.cpu
	pd := insn.Rd & 3
	dc.buf.EmitHelper(func(env *ir.Env) {
		predvec.PTrue(cpu.P[pd], es)
	})
}
