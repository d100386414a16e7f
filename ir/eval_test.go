package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/xlate/plugin"
)

type flatMem []byte

func (m flatMem) Load(addr uint64, size int) (uint64, error) {
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(m[addr+uint64(i)])
	}
	return v, nil
}

func (m flatMem) Store(addr, val uint64, size int) error {
	for i := 0; i < size; i++ {
		m[addr+uint64(i)] = byte(val >> (8 * i))
	}
	return nil
}

func TestRunBasicBlock(t *testing.T) {
	b := NewBuffer(2, 0)
	b.StartFunc()
	b.EmitMovImm(0, 40)
	b.EmitMovImm(1, 2)
	t0 := b.NewTemp()
	b.Emit3(OpAdd, t0, 0, 1)
	b.Emit2(OpMov, 0, t0)
	b.FreeTemp(t0)
	b.EmitExit(7)

	regs := make([]uint64, 2)
	exit, err := Run(b.Finalize(), regs, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(7), exit.Code)
	require.Equal(t, uint64(42), regs[0])
}

func TestRunShiftAndCond(t *testing.T) {
	b := NewBuffer(3, 0)
	b.StartFunc()
	b.EmitMovImm(0, 0x8000000000000000)
	b.EmitMovImm(1, 63)
	b.Emit3(OpSar, 2, 0, 1)
	b.Emit3(OpSetCondEQ, 0, 1, 1)
	b.Emit3(OpSetCondLTU, 1, 1, 1)
	b.EmitExit(0)

	regs := make([]uint64, 3)
	_, err := Run(b.Finalize(), regs, nil)
	require.NoError(t, err)
	require.Equal(t, ^uint64(0), regs[2], "arithmetic shift sign-fills")
	require.Equal(t, uint64(1), regs[0])
	require.Zero(t, regs[1])
}

func TestRunMemoryAndConditionalPC(t *testing.T) {
	mem := make(flatMem, 64)
	b := NewBuffer(3, 0)
	b.StartFunc()
	b.EmitMovImm(0, 8)
	b.EmitMovImm(1, 0x11223344)
	b.EmitStore(0, 1, 4, 4)
	b.EmitLoad(2, 0, 4, 2)
	b.EmitSetPCCond(0, 2, 100, 200)
	b.EmitExit(0)

	regs := make([]uint64, 3)
	_, err := Run(b.Finalize(), regs, mem)
	require.NoError(t, err)
	require.Equal(t, uint64(0x3344), regs[2])
	require.Equal(t, uint64(100), regs[0], "nonzero cond takes the taken edge")
}

func TestRunMemFault(t *testing.T) {
	b := NewBuffer(1, 0)
	b.StartFunc()
	b.EmitLoad(0, 0, 0, 8)
	b.EmitExit(0)

	_, err := Run(b.Finalize(), make([]uint64, 1), faultMem{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "load at")
}

type faultMem struct{}

func (faultMem) Load(addr uint64, size int) (uint64, error) {
	return 0, errFault
}

func (faultMem) Store(addr, val uint64, size int) error {
	return errFault
}

var errFault = &faultErr{}

type faultErr struct{}

func (*faultErr) Error() string { return "fault" }

func TestHelperMemHookFiresOnlyWhenArmed(t *testing.T) {
	var hits []uint64
	cb := plugin.MemCallback{Fn: func(vaddr, addr uint64, size int, isStore bool, userdata any) {
		hits = append(hits, addr)
	}}

	b := NewBuffer(1, 0)
	b.StartFunc()
	b.EmitHelper(func(env *Env) { env.MemHook(0x10, 8, true) })
	b.EmitMemEnable([]plugin.MemCallback{cb})
	b.EmitHelper(func(env *Env) { env.MemHook(0x20, 8, true) })
	b.EmitMemDisable()
	b.EmitHelper(func(env *Env) { env.MemHook(0x30, 8, true) })
	b.EmitExit(0)

	_, err := Run(b.Finalize(), make([]uint64, 1), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0x20}, hits)
}

func TestBufferFullAndTempAccounting(t *testing.T) {
	b := NewBuffer(1, 4)
	b.StartFunc()
	require.False(t, b.Full())
	for i := 0; i < 4; i++ {
		b.EmitMovImm(0, uint64(i))
	}
	require.True(t, b.Full())

	b.StartFunc()
	require.False(t, b.Full(), "reset empties the buffer")

	t0 := b.NewTemp()
	require.Equal(t, 1, b.LiveTemps())
	b.FreeTemp(t0)
	require.Zero(t, b.LiveTemps())
	require.Panics(t, func() { b.FreeTemp(Ref(0)) }, "globals cannot be freed")
}

func TestFinalizeSnapshotsOps(t *testing.T) {
	b := NewBuffer(1, 0)
	b.StartFunc()
	b.SetInsnVaddr(0x40)
	b.EmitExit(1)
	blk := b.Finalize()

	b.StartFunc()
	b.EmitExit(2)

	require.Len(t, blk.Ops, 1)
	require.Equal(t, uint64(1), blk.Ops[0].Imm)
	require.Equal(t, uint64(0x40), blk.Ops[0].Vaddr)
}
