// Package guest implements toy32, a small demonstration guest
// architecture for the translation engine: fixed 4-byte instructions,
// 16 scalar registers, and a predicated vector extension whose
// instructions drive the predvec primitives directly.
package guest

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/xlate/predvec"
)

// Instruction word layout (little-endian 32-bit words):
//
//	bits 31:24  opcode
//	bits 23:20  rd
//	bits 19:16  ra
//	bits 15:12  rb
//	bits 15:0   imm16 (overlaps rb)
//	bits 11:0   imm12
const InsnBytes = 4

const (
	NOP  = 0x00
	HALT = 0x01
	MOVI = 0x02 // rd <- imm16 (zero extended)
	RDF  = 0x03 // rd <- NZC flags

	ADD = 0x10 // rd <- ra + rb
	SUB = 0x11
	AND = 0x12
	OR  = 0x13
	XOR = 0x14
	SHL = 0x15
	SHR = 0x16
	SAR = 0x17
	MUL = 0x18

	LD  = 0x20 // rd <- mem64[ra + imm12]
	ST  = 0x21 // mem64[ra + imm12] <- rd
	LDB = 0x22 // rd <- mem8[ra + imm12]
	STB = 0x23 // mem8[ra + imm12] <- rd

	BR  = 0x30 // pc <- pc + 4 + sext(imm16)*4
	BEQ = 0x31 // if ra == rb: pc <- pc + 4 + sext(imm12)*4
	BNE = 0x32

	IOW = 0x38 // ioreg[imm12] <- ra  (helper call)
	IOR = 0x39 // rd <- ioreg[imm12] (helper call)

	// Vector extension. Vector fields use the low 2 bits of their
	// nibble (4 vector and 4 predicate registers).
	VOP    = 0x40 // vd, vn, vm, pg=imm[11:10], op=imm[9:5], esz=imm[1:0]
	VRED   = 0x41 // rd, vn, pg=imm[11:10], op=imm[9:5], esz=imm[1:0]
	VSHI   = 0x42 // vd, vn, pg=imm[11:10], op=imm[9:8], sh=imm[7:2], esz=imm[1:0]
	VCLR   = 0x43 // vd, pg=imm[11:10], esz=imm[1:0]
	PLOG   = 0x44 // pd, pn, pm, pg=imm[11:10], op=imm[9:5]
	PTEST  = 0x45 // pn=ra, pg=imm[11:10]
	PFIRST = 0x46 // pd (src and dest), pg=imm[11:10]
	PNEXT  = 0x47 // pd (src and dest), pg=imm[11:10], esz=imm[1:0]
	PTRUE  = 0x48 // pd, esz=imm[1:0]
)

// Insn is one decoded instruction.
type Insn struct {
	Raw   uint32
	Op    byte
	Rd    int
	Ra    int
	Rb    int
	Imm16 uint16
	Imm12 uint16
	Len   int
}

// DecodeOne decodes the instruction at pc. It is a pure function of the
// memory contents at pc; an out-of-range or misaligned pc yields an
// instruction with Len 0, which translates to an illegal-instruction
// exit.
func DecodeOne(mem []byte, pc uint64) Insn {
	if pc%InsnBytes != 0 || pc+InsnBytes > uint64(len(mem)) {
		return Insn{Len: 0}
	}
	raw := binary.LittleEndian.Uint32(mem[pc:])
	return Insn{
		Raw:   raw,
		Op:    byte(raw >> 24),
		Rd:    int(raw >> 20 & 0xf),
		Ra:    int(raw >> 16 & 0xf),
		Rb:    int(raw >> 12 & 0xf),
		Imm16: uint16(raw),
		Imm12: uint16(raw & 0xfff),
		Len:   InsnBytes,
	}
}

// Encode assembles one instruction word; the inverse of DecodeOne,
// used by tests and tooling.
func Encode(op byte, rd, ra int, imm16 uint16) uint32 {
	return uint32(op)<<24 | uint32(rd&0xf)<<20 | uint32(ra&0xf)<<16 | uint32(imm16)
}

// EncodeR assembles a three-register instruction.
func EncodeR(op byte, rd, ra, rb int) uint32 {
	return uint32(op)<<24 | uint32(rd&0xf)<<20 | uint32(ra&0xf)<<16 | uint32(rb&0xf)<<12
}

func (i Insn) pg() int                  { return int(i.Imm12 >> 10 & 3) }
func (i Insn) vecOp() predvec.BinOp     { return predvec.BinOp(i.Imm12 >> 5 & 0x1f) }
func (i Insn) redOp() predvec.RedOp     { return predvec.RedOp(i.Imm12 >> 5 & 0x1f) }
func (i Insn) predOp() predvec.PredOp   { return predvec.PredOp(i.Imm12 >> 5 & 0x1f) }
func (i Insn) immOp() predvec.ImmOp     { return predvec.ImmOp(i.Imm12 >> 8 & 3) }
func (i Insn) shImm() uint64            { return uint64(i.Imm12 >> 2 & 0x3f) }
func (i Insn) esz() predvec.ElemSize    { return predvec.ElemSize(i.Imm12 & 3) }
func (i Insn) brTarget(pc uint64) uint64 {
	return uint64(int64(pc) + InsnBytes + int64(int16(i.Imm16))*InsnBytes)
}
func (i Insn) condTarget(pc uint64) uint64 {
	off := int64(i.Imm12)
	if i.Imm12&0x800 != 0 {
		off -= 0x1000
	}
	return uint64(int64(pc) + InsnBytes + off*InsnBytes)
}

var opcodeNames = map[byte]string{
	NOP: "nop", HALT: "halt", MOVI: "movi", RDF: "rdf",
	ADD: "add", SUB: "sub", AND: "and", OR: "or", XOR: "xor",
	SHL: "shl", SHR: "shr", SAR: "sar", MUL: "mul",
	LD: "ld", ST: "st", LDB: "ldb", STB: "stb",
	BR: "br", BEQ: "beq", BNE: "bne",
	IOW: "iow", IOR: "ior",
	VOP: "vop", VRED: "vred", VSHI: "vshi", VCLR: "vclr",
	PLOG: "plog", PTEST: "ptest", PFIRST: "pfirst", PNEXT: "pnext", PTRUE: "ptrue",
}

func opcodeStr(op byte) string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op%#02x", op)
}

// Disasm renders one decoded instruction as assembly text.
func (i Insn) Disasm(pc uint64) string {
	name := opcodeStr(i.Op)
	switch i.Op {
	case NOP, HALT:
		return name
	case MOVI:
		return fmt.Sprintf("%s r%d, %#x", name, i.Rd, i.Imm16)
	case RDF:
		return fmt.Sprintf("%s r%d", name, i.Rd)
	case ADD, SUB, AND, OR, XOR, SHL, SHR, SAR, MUL:
		return fmt.Sprintf("%s r%d, r%d, r%d", name, i.Rd, i.Ra, i.Rb)
	case LD, LDB:
		return fmt.Sprintf("%s r%d, [r%d+%#x]", name, i.Rd, i.Ra, i.Imm12)
	case ST, STB:
		return fmt.Sprintf("%s [r%d+%#x], r%d", name, i.Ra, i.Imm12, i.Rd)
	case BR:
		return fmt.Sprintf("%s %#x", name, i.brTarget(pc))
	case BEQ, BNE:
		return fmt.Sprintf("%s r%d, r%d, %#x", name, i.Ra, i.Rb, i.condTarget(pc))
	case IOW:
		return fmt.Sprintf("%s [%#x], r%d", name, i.Imm12, i.Ra)
	case IOR:
		return fmt.Sprintf("%s r%d, [%#x]", name, i.Rd, i.Imm12)
	case VOP:
		return fmt.Sprintf("%s.%s v%d, p%d, v%d, v%d (esz %d)", name, i.vecOp(), i.Rd&3, i.pg(), i.Ra&3, i.Rb&3, i.esz())
	case VRED:
		return fmt.Sprintf("%s.%s r%d, p%d, v%d (esz %d)", name, i.redOp(), i.Rd, i.pg(), i.Ra&3, i.esz())
	case VSHI:
		return fmt.Sprintf("%s.%s v%d, p%d, v%d, #%d (esz %d)", name, i.immOp(), i.Rd&3, i.pg(), i.Ra&3, i.shImm(), i.esz())
	case VCLR:
		return fmt.Sprintf("%s v%d, p%d (esz %d)", name, i.Rd&3, i.pg(), i.esz())
	case PLOG:
		return fmt.Sprintf("%s.%s p%d, p%d, p%d, p%d", name, i.predOp(), i.Rd&3, i.pg(), i.Ra&3, i.Rb&3)
	case PTEST:
		return fmt.Sprintf("%s p%d, p%d", name, i.Ra&3, i.pg())
	case PFIRST, PNEXT:
		return fmt.Sprintf("%s p%d, p%d", name, i.Rd&3, i.pg())
	case PTRUE:
		return fmt.Sprintf("%s p%d (esz %d)", name, i.Rd&3, i.esz())
	default:
		return fmt.Sprintf("%s raw=%#08x", name, i.Raw)
	}
}
