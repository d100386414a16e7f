package guest

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/colorfulnotion/xlate/ir"
	"github.com/colorfulnotion/xlate/log"
	"github.com/colorfulnotion/xlate/translator"
)

var engineTracer = otel.Tracer("xlate/engine")

// ErrBlockLimit is returned by Run when the block budget is spent
// before the guest halts.
var ErrBlockLimit = errors.New("guest: block limit reached")

// Machine executes a toy32 core through the translation cache:
// translate on miss, then run finished blocks until the guest exits.
type Machine struct {
	CPU    *CPU
	Driver *translator.Driver
	Cache  *translator.Cache

	// CFlags seeds every translated block's compile flags, so the
	// owner can cap instruction counts or request last-insn I/O
	// bracketing.
	CFlags uint32

	SingleStep  bool
	Breakpoints []translator.Breakpoint

	buf *ir.Buffer
}

// NewMachine wires a core to a translation driver. Guest stores
// invalidate overlapping cached blocks, which is what makes
// self-modifying code come out right.
func NewMachine(cpu *CPU, drv *translator.Driver) *Machine {
	m := &Machine{
		CPU:    cpu,
		Driver: drv,
		Cache:  translator.NewCache(),
		buf:    ir.NewBuffer(NumGlobals, ir.DefaultMaxOps),
	}
	cpu.InvalidateHook = m.Cache.Invalidate
	return m
}

func (m *Machine) cpuState() *translator.CPUState {
	return &translator.CPUState{
		SingleStep:  m.SingleStep,
		Breakpoints: m.Breakpoints,
		Env:         m.CPU,
	}
}

// TranslateAt produces a block starting at pc without executing it.
func (m *Machine) TranslateAt(ctx context.Context, pc uint64) *translator.TranslationBlock {
	tb := &translator.TranslationBlock{
		PC:         pc,
		CFlags:     m.CFlags,
		PluginMask: m.Driver.Plugins.Mask(),
	}
	dc := NewDisasContext(m.CPU, m.buf)
	m.Driver.Translate(ctx, dc, m.buf, m.cpuState(), tb)
	return tb
}

// cacheable reports whether the cache may serve the current debug
// state. Breakpoints and single-stepping change the generated code
// without changing the lookup key, so while either is set blocks are
// neither memoized nor looked up.
func (m *Machine) cacheable() bool {
	return !m.SingleStep && len(m.Breakpoints) == 0
}

// RunResult summarizes one Run call.
type RunResult struct {
	Exit   uint64
	Blocks int
	Insns  int
}

// Run executes from the current pc until the guest halts, hits a debug
// or illegal-instruction exit, faults on memory, or spends maxBlocks
// blocks (0 means no limit).
func (m *Machine) Run(ctx context.Context, maxBlocks int) (RunResult, error) {
	ctx, span := engineTracer.Start(ctx, "run")
	defer span.End()

	var res RunResult
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		pc := m.CPU.PC()
		var tb *translator.TranslationBlock
		if m.cacheable() {
			tb = m.Cache.Lookup(pc, m.CFlags)
		}
		if tb == nil {
			tb = m.TranslateAt(ctx, pc)
			if m.cacheable() {
				m.Cache.Insert(tb)
			}
		}

		exit, err := ir.Run(tb.Code, m.CPU.Regs, m.CPU)
		if err != nil {
			span.SetAttributes(attribute.Int("run.blocks", res.Blocks))
			return res, err
		}
		res.Blocks++
		res.Insns += tb.ICount

		switch exit.Code {
		case ExitNormal:
		case ExitHalt, ExitDebug, ExitIllegal:
			res.Exit = exit.Code
			span.SetAttributes(
				attribute.Int("run.blocks", res.Blocks),
				attribute.Int("run.insns", res.Insns),
			)
			log.Debug(log.EngineMonitoring, "guest exited",
				"exit", exit.Code, "pc", fmt.Sprintf("%#x", m.CPU.PC()),
				"blocks", res.Blocks, "insns", res.Insns)
			return res, nil
		default:
			return res, fmt.Errorf("guest: unknown exit code %d at pc %#x", exit.Code, m.CPU.PC())
		}

		if maxBlocks > 0 && res.Blocks >= maxBlocks {
			return res, ErrBlockLimit
		}
	}
}

// Disassemble renders n instructions starting at pc, one per line.
func Disassemble(mem []byte, pc uint64, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		insn := DecodeOne(mem, pc)
		if insn.Len == 0 {
			out = append(out, fmt.Sprintf("%08x:  <invalid>", pc))
			break
		}
		out = append(out, fmt.Sprintf("%08x:  %08x  %s", pc, insn.Raw, insn.Disasm(pc)))
		pc += uint64(insn.Len)
	}
	return out
}
