package guest

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/xlate/plugin"
	"github.com/colorfulnotion/xlate/predvec"
	"github.com/colorfulnotion/xlate/trace"
	"github.com/colorfulnotion/xlate/translator"
)

func encVOP(vd, vn, vm, pg int, op predvec.BinOp, es predvec.ElemSize) uint32 {
	imm := uint16(vm&0xf)<<12 | uint16(pg&3)<<10 | uint16(op)<<5 | uint16(es)
	return Encode(VOP, vd, vn, imm)
}

func encVRED(rd, vn, pg int, op predvec.RedOp, es predvec.ElemSize) uint32 {
	return Encode(VRED, rd, vn, uint16(pg&3)<<10|uint16(op)<<5|uint16(es))
}

func encPTRUE(pd int, es predvec.ElemSize) uint32 {
	return Encode(PTRUE, pd, 0, uint16(es))
}

func encPTEST(pn, pg int) uint32 {
	return Encode(PTEST, 0, pn, uint16(pg&3)<<10)
}

func encBranch(op byte, ra, rb, off int) uint32 {
	return Encode(op, 0, ra, uint16(rb&0xf)<<12|uint16(off)&0xfff)
}

func newTestMachine(t *testing.T, prog []uint32) *Machine {
	t.Helper()
	cpu := NewCPU(1 << 16)
	cpu.LoadProgram(0, prog)
	return NewMachine(cpu, translator.NewDriver(nil))
}

func TestMachineArithmetic(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 21),
		Encode(MOVI, 2, 0, 2),
		EncodeR(MUL, 3, 1, 2),
		EncodeR(SUB, 4, 3, 2),
		Encode(HALT, 0, 0, 0),
	})

	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitHalt), res.Exit)
	require.Equal(t, uint64(42), m.CPU.Regs[3])
	require.Equal(t, uint64(40), m.CPU.Regs[4])
	require.Equal(t, uint64(20), m.CPU.PC())
	require.Equal(t, 5, res.Insns)
}

func TestMachineBranchLoopAndCache(t *testing.T) {
	// Count r0 down from 5; the loop body becomes its own cached block.
	prog := []uint32{
		Encode(MOVI, 0, 0, 5),
		Encode(MOVI, 1, 0, 1),
		Encode(MOVI, 2, 0, 0),
		EncodeR(SUB, 0, 0, 1),       // 12: loop
		encBranch(BNE, 0, 2, -2),    // 16: -> 12
		Encode(HALT, 0, 0, 0),       // 20
	}
	m := newTestMachine(t, prog)

	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitHalt), res.Exit)
	require.Zero(t, m.CPU.Regs[0])
	require.Equal(t, 6, res.Blocks, "entry + 4 loop iterations + halt")
	require.Equal(t, 3, m.Cache.Len(), "each region translated once")
}

func TestMachineSelfModifyingCodeInvalidation(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 1),
		Encode(HALT, 0, 0, 0),
	})
	_, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, m.Cache.Len())

	// Overwrite the first instruction through guest memory: the
	// overlapping block must drop out of the cache.
	require.NoError(t, m.CPU.Store(0, uint64(Encode(MOVI, 1, 0, 9)), 4))
	require.Zero(t, m.Cache.Len())

	m.CPU.SetPC(0)
	_, err = m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(9), m.CPU.Regs[1])
}

func TestMachineMemoryOps(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 0x1234),
		Encode(MOVI, 2, 0, 0x100),
		Encode(ST, 1, 2, 8), // mem[r2+8] <- r1
		Encode(LD, 3, 2, 8),
		Encode(LDB, 4, 2, 8),
		Encode(HALT, 0, 0, 0),
	})

	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitHalt), res.Exit)
	require.Equal(t, uint64(0x1234), m.CPU.Regs[3])
	require.Equal(t, uint64(0x34), m.CPU.Regs[4])
}

func TestMachineVectorProgram(t *testing.T) {
	m := newTestMachine(t, []uint32{
		encPTRUE(0, predvec.ES32),
		encVOP(0, 1, 2, 0, predvec.OpAdd, predvec.ES32),
		encVRED(5, 0, 0, predvec.OpUaddv, predvec.ES32),
		encPTEST(0, 0),
		Encode(RDF, 6, 0, 0),
		Encode(HALT, 0, 0, 0),
	})

	var want uint64
	for i := 0; i < predvec.VecBytes/4; i++ {
		predvec.SetLane32(m.CPU.V[1], i, uint32(i))
		predvec.SetLane32(m.CPU.V[2], i, uint32(2*i))
		want += uint64(3 * i)
	}

	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitHalt), res.Exit)
	require.Equal(t, want, m.CPU.Regs[5])

	// PTEST of an all-true predicate against itself: N set, some
	// active bit set, last active bit set (C clear).
	require.Equal(t, uint64(0x80000002), m.CPU.Regs[6])
}

func TestMachineIORegisters(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 7),
		Encode(IOW, 0, 1, IOScratch),
		Encode(IOR, 2, 0, IOScratch),
		Encode(IOR, 3, 0, IOStatus),
		Encode(IOW, 0, 1, IOStatus), // read-only, dropped
		Encode(IOR, 4, 0, IOStatus),
		Encode(HALT, 0, 0, 0),
	})

	_, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(7), m.CPU.Regs[2])
	require.Equal(t, uint64(1), m.CPU.Regs[3])
	require.Equal(t, uint64(1), m.CPU.Regs[4], "status register ignores writes")
}

func TestMachineIllegalInstruction(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 1),
		Encode(0xee, 0, 0, 0),
	})

	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitIllegal), res.Exit)
	require.Equal(t, uint64(4), m.CPU.PC(), "pc points at the offending instruction")
}

func TestMachineInvalidVectorEncoding(t *testing.T) {
	// sdiv has no 8-bit form.
	m := newTestMachine(t, []uint32{
		encVOP(0, 1, 2, 0, predvec.OpSdiv, predvec.ES8),
	})
	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitIllegal), res.Exit)
}

func TestMachineBreakpoint(t *testing.T) {
	prog := []uint32{
		Encode(MOVI, 1, 0, 1),
		Encode(MOVI, 2, 0, 2),
		Encode(HALT, 0, 0, 0),
	}

	m := newTestMachine(t, prog)
	m.Breakpoints = []translator.Breakpoint{{PC: 4}}
	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitDebug), res.Exit)
	require.Equal(t, uint64(4), m.CPU.PC(), "stopped in front of the breakpoint")
	require.Equal(t, uint64(1), m.CPU.Regs[1])
	require.Zero(t, m.CPU.Regs[2])
	require.Zero(t, m.Cache.Len(), "debug blocks are not memoized")

	// One-more-instruction policy: the trapped instruction runs.
	m2 := newTestMachine(t, prog)
	m2.CPU.SwBreakOneInsn = true
	m2.Breakpoints = []translator.Breakpoint{{PC: 4}}
	res, err = m2.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitDebug), res.Exit)
	require.Equal(t, uint64(8), m2.CPU.PC())
	require.Equal(t, uint64(2), m2.CPU.Regs[2])
}

func TestMachineBreakpointAfterCachedRun(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 1),
		Encode(MOVI, 2, 0, 2),
		Encode(HALT, 0, 0, 0),
	})

	// Populate the cache with a plain run first.
	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitHalt), res.Exit)
	require.NotZero(t, m.Cache.Len())

	// A breakpoint set afterwards must not be shadowed by the cached
	// translation of the same block.
	m.Breakpoints = []translator.Breakpoint{{PC: 4}}
	m.CPU.SetPC(0)
	m.CPU.Regs[1] = 0
	m.CPU.Regs[2] = 0
	res, err = m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitDebug), res.Exit)
	require.Equal(t, uint64(4), m.CPU.PC())
	require.Equal(t, uint64(1), m.CPU.Regs[1])
	require.Zero(t, m.CPU.Regs[2], "instruction past the breakpoint did not run")
}

func TestMachineSingleStep(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 1),
		Encode(MOVI, 2, 0, 2),
		Encode(HALT, 0, 0, 0),
	})
	m.SingleStep = true

	var res RunResult
	var err error
	for i := 0; i < 3; i++ {
		res, err = m.Run(context.Background(), 1)
		if res.Exit == uint64(ExitHalt) {
			err = nil
			break
		}
		require.ErrorIs(t, err, ErrBlockLimit)
	}
	require.NoError(t, err)
	require.Equal(t, uint64(1), m.CPU.Regs[1])
	require.Equal(t, uint64(2), m.CPU.Regs[2])
}

func TestMachineBlockLimit(t *testing.T) {
	// Tight infinite loop: br to itself.
	m := newTestMachine(t, []uint32{
		Encode(BR, 0, 0, 0xffff), // branch to self
	})

	res, err := m.Run(context.Background(), 10)
	require.ErrorIs(t, err, ErrBlockLimit)
	require.Equal(t, 10, res.Blocks)
}

func TestMachineInstructionCapFlag(t *testing.T) {
	m := newTestMachine(t, []uint32{
		Encode(MOVI, 1, 0, 1),
		Encode(MOVI, 2, 0, 2),
		Encode(MOVI, 3, 0, 3),
		Encode(MOVI, 4, 0, 4),
		Encode(HALT, 0, 0, 0),
	})
	m.CFlags = 2 // two instructions per block

	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitHalt), res.Exit)
	require.Equal(t, 3, res.Blocks)
	for _, tb := range []uint64{0, 8, 16} {
		require.NotNil(t, m.Cache.Lookup(tb, m.CFlags))
		require.LessOrEqual(t, m.Cache.Lookup(tb, m.CFlags).ICount, 2)
	}
}

func TestMachineTraceInstrumentation(t *testing.T) {
	var out bytes.Buffer
	tw := trace.NewJSONLWriter(&out)

	reg := plugin.NewRegistry()
	cpu := NewCPU(1 << 16)
	cpu.LoadProgram(0, []uint32{
		Encode(MOVI, 1, 0, 0x100),
		Encode(ST, 2, 1, 0),  // inline store
		Encode(IOW, 0, 1, IOScratch), // helper access
		Encode(HALT, 0, 0, 0),
	})
	trace.Subscribe(reg, tw, func(vaddr uint64) string {
		return DecodeOne(cpu.Mem, vaddr).Disasm(vaddr)
	})

	m := NewMachine(cpu, translator.NewDriver(reg))
	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(ExitHalt), res.Exit)
	require.NoError(t, tw.Flush())

	var blocks, execs, mems int
	var memRecs []trace.MemRecord
	dec := json.NewDecoder(&out)
	for dec.More() {
		var rec trace.Record
		require.NoError(t, dec.Decode(&rec))
		switch rec.Kind {
		case "block":
			blocks++
		case "exec":
			execs++
			require.NotEmpty(t, rec.Exec.Asm)
		case "mem":
			mems++
			memRecs = append(memRecs, *rec.Mem)
		}
	}

	require.Equal(t, 1, blocks, "one descriptor for the single block")
	require.Equal(t, 4, execs, "one exec record per executed instruction")
	require.Equal(t, 2, mems, "inline store plus helper io access")

	require.Equal(t, uint64(0x100), memRecs[0].Addr)
	require.True(t, memRecs[0].IsStore)
	require.Equal(t, uint64(IOBase+IOScratch), memRecs[1].Addr)
	require.True(t, memRecs[1].IsStore)
}
