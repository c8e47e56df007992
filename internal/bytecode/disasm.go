package bytecode

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of chunk to w, one instruction
// per line, for use by the CLI's `-trace`/`-dump-bytecode` flags.
func Disassemble(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = disassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction writes a single decoded instruction at offset to w,
// for the VM's `-trace` mode. Returns the offset of the following instruction.
func DisassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	return disassembleInstruction(w, chunk, offset)
}

func disassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d %4d ", offset, chunk.GetLine(offset))
	op := OpCode(chunk.Code[offset])
	operands := op.OperandBytes()
	if offset+1+operands > len(chunk.Code) {
		fmt.Fprintf(w, "%s <abgeschnittene Operanden>\n", op)
		return len(chunk.Code)
	}

	switch operands {
	case 0:
		fmt.Fprintf(w, "%s\n", op)
	case 1:
		arg := chunk.Code[offset+1]
		if op == OP_CONSTANT || op == OP_DEFINE_GLOBAL || op == OP_GET_GLOBAL || op == OP_SET_GLOBAL {
			fmt.Fprintf(w, "%-18s %4d '%s'\n", op, arg, constantPreview(chunk, arg))
		} else {
			fmt.Fprintf(w, "%-18s %4d\n", op, arg)
		}
	case 2:
		hi, lo := chunk.Code[offset+1], chunk.Code[offset+2]
		val := uint16(hi)<<8 | uint16(lo)
		switch op {
		case OP_JUMP, OP_JUMP_IF_FALSE, OP_FORTEST:
			fmt.Fprintf(w, "%-18s %4d -> %d\n", op, val, offset+3+int(val))
		case OP_LOOP:
			fmt.Fprintf(w, "%-18s %4d -> %d\n", op, val, offset+3-int(val))
		case OP_ARRAY:
			fmt.Fprintf(w, "%-18s k=%d t=%s\n", op, hi, Type(lo))
		case OP_DEFINE_EMPTY_ARR_LOCAL:
			fmt.Fprintf(w, "%-18s slot=%d t=%s\n", op, hi, Type(lo))
		default:
			fmt.Fprintf(w, "%-18s %4d\n", op, val)
		}
	}
	return offset + 1 + operands
}

func constantPreview(chunk *Chunk, idx byte) string {
	if int(idx) >= len(chunk.Constants) {
		return "?"
	}
	return chunk.Constants[idx].String()
}
