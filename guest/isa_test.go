package guest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/xlate/predvec"
)

func TestDecodeOne(t *testing.T) {
	mem := make([]byte, 16)
	cpu := &CPU{Mem: mem}
	cpu.LoadProgram(0, []uint32{
		Encode(MOVI, 3, 0, 0xbeef),
		EncodeR(ADD, 1, 2, 3),
	})

	insn := DecodeOne(mem, 0)
	require.Equal(t, byte(MOVI), insn.Op)
	require.Equal(t, 3, insn.Rd)
	require.Equal(t, uint16(0xbeef), insn.Imm16)
	require.Equal(t, InsnBytes, insn.Len)

	insn = DecodeOne(mem, 4)
	require.Equal(t, byte(ADD), insn.Op)
	require.Equal(t, 1, insn.Rd)
	require.Equal(t, 2, insn.Ra)
	require.Equal(t, 3, insn.Rb)
}

func TestDecodeRejectsBadPC(t *testing.T) {
	mem := make([]byte, 8)
	require.Zero(t, DecodeOne(mem, 2).Len, "misaligned")
	require.Zero(t, DecodeOne(mem, 8).Len, "out of range")
	require.Zero(t, DecodeOne(mem, ^uint64(0)).Len)
}

func TestBranchTargets(t *testing.T) {
	// Backward branch: off -2 means pc+4-8.
	i := Insn{Op: BR, Imm16: 0xfffe} // -2
	require.Equal(t, uint64(16), i.brTarget(20))

	i = Insn{Op: BEQ, Imm12: 0xffe} // 12-bit -2
	require.Equal(t, uint64(16), i.condTarget(20))

	i = Insn{Op: BEQ, Imm12: 3}
	require.Equal(t, uint64(36), i.condTarget(20))
}

func TestDisasm(t *testing.T) {
	cases := []struct {
		raw  uint32
		pc   uint64
		want string
	}{
		{Encode(MOVI, 2, 0, 0x10), 0, "movi r2, 0x10"},
		{EncodeR(ADD, 1, 2, 3), 0, "add r1, r2, r3"},
		{Encode(HALT, 0, 0, 0), 0, "halt"},
		{Encode(LD, 4, 5, 0x20), 0, "ld r4, [r5+0x20]"},
		{Encode(IOW, 0, 7, 0x10), 0, "iow [0x10], r7"},
	}
	mem := make([]byte, 4)
	for _, tc := range cases {
		cpu := &CPU{Mem: mem}
		cpu.LoadProgram(0, []uint32{tc.raw})
		require.Equal(t, tc.want, DecodeOne(mem, 0).Disasm(tc.pc))
	}
}

func TestVectorFieldExtraction(t *testing.T) {
	raw := encVOP(1, 2, 3, 1, predvec.OpAdd, predvec.ES32)
	mem := make([]byte, 4)
	(&CPU{Mem: mem}).LoadProgram(0, []uint32{raw})
	insn := DecodeOne(mem, 0)

	require.Equal(t, byte(VOP), insn.Op)
	require.Equal(t, 1, insn.Rd&3)
	require.Equal(t, 2, insn.Ra&3)
	require.Equal(t, 3, insn.Rb&3)
	require.Equal(t, 1, insn.pg())
	require.Equal(t, predvec.OpAdd, insn.vecOp())
	require.Equal(t, predvec.ES32, insn.esz())
}
