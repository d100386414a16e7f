package translator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/colorfulnotion/xlate/log"
	"github.com/colorfulnotion/xlate/plugin"
)

var tracer = otel.Tracer("xlate/translator")

// Driver holds the per-translator-instance policy, constructed once and
// passed explicitly; it carries no hidden static state.
type Driver struct {
	// SingleStep forces one-instruction blocks for every CPU.
	SingleStep bool

	// Plugins is the instrumentation registry, or nil.
	Plugins *plugin.Registry
}

func NewDriver(plugins *plugin.Registry) *Driver {
	return &Driver{Plugins: plugins}
}

// TempCheck logs an advisory warning when scratch temporaries remain
// live. To be called by a target's TranslateInsn or TBStop if (1) the
// target is sufficiently clean to support reporting, (2) as and when
// all temporaries are known to be consumed.
func TempCheck(base *Context, buf Emitter) {
	if n := buf.LiveTemps(); n > 0 {
		log.Warn(log.TranslatorMonitoring, "temporary leaks before pc",
			"pc", fmt.Sprintf("%#x", base.PCNext), "live", n)
	}
}

func assertIsNext(base *Context, where string) {
	if base.IsJmp != DisasNext {
		panic(fmt.Sprintf("translator: early exit from %s (is_jmp=%d)", where, base.IsJmp))
	}
}

// Translate produces a finished block from tb.PC, running the
// per-instruction loop once, or twice when an instrumentation
// subscriber registered interest in this block's translation.
//
// In the first pass the block is fully determined. If subscribers exist,
// the per-block descriptor is then shared with them so they can attach
// callbacks to instruction slots; since operation emission cannot be
// undone, the context is rewound to its pre-first-instruction checkpoint
// and the identical loop runs again, this time also emitting the now
// known instrumentation operations. All translation state lives in the
// target context, which is why TranslateInsn must not mutate anything
// else.
func (dr *Driver) Translate(ctx context.Context, target Target, buf Emitter, cpu *CPUState, tb *TranslationBlock) {
	_, span := tracer.Start(ctx, "translate")
	defer span.End()
	span.SetAttributes(attribute.Int64("tb.pc", int64(tb.PC)))

	bpInsn := 0
	insnIdx := 0
	tbTransCb := dr.Plugins != nil && tb.PluginMask&plugin.EvTBTrans != 0
	firstPass := true
	var ptb *plugin.TB
	if tbTransCb {
		ptb = plugin.NewTB(tb.PC)
	}

	base := target.Base()
	base.TB = tb
	base.PCFirst = tb.PC
	base.PCNext = tb.PC
	base.IsJmp = DisasNext
	base.NumInsns = 0
	base.SingleStep = cpu.SingleStep

	// Instruction counting.
	maxInsns := int(tb.CFlags & CFCountMask)
	if maxInsns == 0 {
		maxInsns = int(CFCountMask)
	}
	if maxInsns > MaxInsnsPerTB {
		maxInsns = MaxInsnsPerTB
	}
	if base.SingleStep || dr.SingleStep {
		maxInsns = 1
	}
	base.MaxInsns = maxInsns

	var snap any

translate:
	buf.StartFunc()
	buf.SetInsnVaddr(tb.PC)

	// See the 2-pass protocol note above: checkpoint before the first
	// instruction of pass 1, rewind before pass 2.
	if tbTransCb {
		if firstPass {
			snap = target.Checkpoint()
		} else {
			target.Restore(snap)
		}
	}

	target.InitContext(cpu)
	assertIsNext(base, "init_context")

	target.TBStart(cpu)
	assertIsNext(base, "tb_start")

	if !firstPass && len(ptb.ExecCbs) > 0 {
		buf.EmitExecCallbacks(ptb.ExecCbs)
	}

	for {
		var pinsn *plugin.Insn
		memHelpers := false

		if tbTransCb {
			if firstPass {
				pinsn = ptb.InsnGet(base.PCNext)
			} else {
				insn := ptb.Insns[insnIdx]
				insnIdx++

				if len(insn.ExecCbs) > 0 {
					buf.EmitExecCallbacks(insn.ExecCbs)
				}
				if len(insn.MemCbs) > 0 {
					buf.SetMemCallbacks(insn.MemCbs)
					if insn.CallsHelpers {
						buf.EmitMemEnable(insn.MemCbs)
						memHelpers = true
					}
				} else {
					buf.SetMemCallbacks(nil)
				}
			}
		}

		base.NumInsns++
		buf.SetInsnVaddr(base.PCNext)
		target.InsnStart(cpu)
		assertIsNext(base, "insn_start")

		// Pass breakpoint hits to the target for further processing.
		if !base.SingleStep && len(cpu.Breakpoints) > 0 {
			for _, bp := range cpu.Breakpoints {
				if bp.PC == base.PCNext {
					if target.BreakpointCheck(cpu, bp) {
						bpInsn = 1
						break
					}
				}
			}
			// BreakpointCheck may use DisasTooMany to indicate that
			// only one more instruction is to be executed; anything
			// stronger stops translation right here.
			if base.IsJmp > DisasTooMany {
				break
			}
		}

		// Translate one instruction. TranslateInsn updates PCNext and
		// IsJmp to indicate what should be done next: exiting this
		// loop, or locating the start of the next instruction.
		if base.NumInsns == base.MaxInsns && tb.CFlags&CFLastIO != 0 {
			// Accept I/O on the last instruction.
			buf.EmitIOStart()
			target.TranslateInsn(cpu, pinsn)
			buf.EmitIOEnd()
		} else {
			target.TranslateInsn(cpu, pinsn)
		}

		if memHelpers {
			buf.EmitMemDisable()
		}

		if base.IsJmp != DisasNext {
			break
		}

		// Stop translation if the output buffer is full, or we have
		// executed all of the allowed instructions.
		if buf.Full() || base.NumInsns >= base.MaxInsns {
			base.IsJmp = DisasTooMany
			break
		}
	}

	if tbTransCb && firstPass {
		dr.Plugins.TBTrans(ptb)
		firstPass = false
		goto translate
	}

	// Emit code to exit the TB, as indicated by IsJmp.
	target.TBStop(cpu)

	tb.Size = base.PCNext - base.PCFirst
	tb.ICount = base.NumInsns
	tb.Code = buf.Finalize()

	if bpInsn != 0 {
		log.Debug(log.TranslatorMonitoring, "breakpoint instruction folded into block",
			"pc", base.PCFirst)
	}

	span.SetAttributes(
		attribute.Int("tb.icount", tb.ICount),
		attribute.Int64("tb.size", int64(tb.Size)),
	)

	if log.Root().Enabled(context.Background(), log.LevelTrace) {
		target.DisasLog(cpu)
	}
}
