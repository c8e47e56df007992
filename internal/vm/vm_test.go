package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/go-ddp/internal/bytecode"
)

func constChunk(c *bytecode.Chunk, v bytecode.Value) byte {
	idx, err := c.AddConstant(v)
	if err != nil {
		panic(err)
	}
	return idx
}

func TestVM_ArithmeticPrecedence(t *testing.T) {
	// 3 + 4 * 2 -> push 3, push 4, push 2, multiply, add, print
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(3)), 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(4)), 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(2)), 1)
	c.WriteOp(bytecode.OP_MULTIPLY, 1)
	c.WriteOp(bytecode.OP_ADD, 1)
	c.WriteOp(bytecode.OP_PRINT, 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	var out bytes.Buffer
	v := New(WithOutput(&out))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "11", out.String())
}

func TestVM_GlobalAssignmentPersists(t *testing.T) {
	c := bytecode.NewChunk()
	nameIdx := constChunk(c, bytecode.StringValue("x"))

	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(5)), 1)
	c.WriteOp(bytecode.OP_DEFINE_GLOBAL, 1)
	c.WriteByte(nameIdx, 1)

	c.WriteOp(bytecode.OP_GET_GLOBAL, 2)
	c.WriteByte(nameIdx, 2)
	c.WriteOp(bytecode.OP_PRINT, 2)
	c.WriteOp(bytecode.OP_RETURN, 2)

	var out bytes.Buffer
	v := New(WithOutput(&out))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "5", out.String())
}

func TestVM_UnboundGlobalIsRuntimeError(t *testing.T) {
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_GET_GLOBAL, 1)
	c.WriteByte(constChunk(c, bytecode.StringValue("unbekannt")), 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	v := New()
	err := v.Run(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbekannt")
}

func TestVM_LocalSlotRoundtrip(t *testing.T) {
	// slot 0 = 7, slot 0 = slot0 + 1, print slot 0
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(7)), 1)

	c.WriteOp(bytecode.OP_GET_LOCAL, 2)
	c.WriteByte(0, 2)
	c.WriteOp(bytecode.OP_CONSTANT, 2)
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 2)
	c.WriteOp(bytecode.OP_ADD, 2)
	c.WriteOp(bytecode.OP_SET_LOCAL, 2)
	c.WriteByte(0, 2)
	c.WriteOp(bytecode.OP_POP, 2)

	c.WriteOp(bytecode.OP_GET_LOCAL, 3)
	c.WriteByte(0, 3)
	c.WriteOp(bytecode.OP_PRINT, 3)
	c.WriteOp(bytecode.OP_RETURN, 3)

	var out bytes.Buffer
	v := New(WithOutput(&out))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "8", out.String())
}

func TestVM_JumpIfFalseSkipsThenBranch(t *testing.T) {
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.BoolValue(false)), 1)

	jumpOffset := c.WriteOp(bytecode.OP_JUMP_IF_FALSE, 1)
	c.Write16(0xffff, 1)
	c.WriteOp(bytecode.OP_POP, 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.StringValue("dann")), 1)
	c.WriteOp(bytecode.OP_PRINT, 1)

	require.NoError(t, c.PatchJump(jumpOffset+1))
	c.WriteOp(bytecode.OP_POP, 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	var out bytes.Buffer
	v := New(WithOutput(&out))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "", out.String())
}

func TestVM_ForLoopCountsAscending(t *testing.T) {
	// für jede Zahl i von 1 bis 3 mache: $i.
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1) // slot 0: counter = 1
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1) // slot 1: end = 3
	c.WriteByte(constChunk(c, bytecode.IntValue(3)), 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1) // slot 2: step = 1
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 1)

	c.WriteOp(bytecode.OP_FORPREP, 1)
	loopStart := len(c.Code)
	testJump := c.WriteOp(bytecode.OP_FORTEST, 1)
	c.Write16(0xffff, 1)

	c.WriteOp(bytecode.OP_GET_LOCAL, 1)
	c.WriteByte(0, 1)
	c.WriteOp(bytecode.OP_PRINT, 1)

	c.WriteOp(bytecode.OP_GET_LOCAL, 1)
	c.WriteByte(0, 1)
	c.WriteOp(bytecode.OP_GET_LOCAL, 1)
	c.WriteByte(2, 1)
	c.WriteOp(bytecode.OP_ADD, 1)
	c.WriteOp(bytecode.OP_SET_LOCAL, 1)
	c.WriteByte(0, 1)
	c.WriteOp(bytecode.OP_POP, 1)

	require.NoError(t, c.EmitLoop(loopStart, 1))
	require.NoError(t, c.PatchJump(testJump+1))
	c.WriteOp(bytecode.OP_FORDONE, 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	var out bytes.Buffer
	v := New(WithOutput(&out))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "123", out.String())
}

func TestVM_ArrayLiteralAndIndexing(t *testing.T) {
	// die Zahlen a sind [1; 2; 3]. $a an der 2 Stelle.
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(2)), 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(3)), 1)
	c.WriteOp(bytecode.OP_ARRAY, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(3)), 1)
	c.WriteByte(byte(bytecode.Int), 1)

	c.WriteOp(bytecode.OP_CONSTANT, 2) // 1-based index 2 -> element at slice index 1
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 2)
	c.WriteOp(bytecode.OP_GET_ARRAY_ELEMENT, 2)
	c.WriteOp(bytecode.OP_PRINT, 2)
	c.WriteOp(bytecode.OP_RETURN, 2)

	var out bytes.Buffer
	v := New(WithOutput(&out))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "2", out.String())
}

func TestVM_IntegerDivisionByZeroIsRuntimeError(t *testing.T) {
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 1)
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(0)), 1)
	c.WriteOp(bytecode.OP_DIVIDE, 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	v := New()
	err := v.Run(c)
	require.Error(t, err)
	assert.Equal(t, "Division durch 0!", err.Error())
}

func TestVM_ArrayIndexOutOfBoundsIsRuntimeError(t *testing.T) {
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 1)
	c.WriteOp(bytecode.OP_ARRAY, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(1)), 1)
	c.WriteByte(byte(bytecode.Int), 1)

	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.IntValue(9)), 1)
	c.WriteOp(bytecode.OP_GET_ARRAY_ELEMENT, 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	v := New()
	err := v.Run(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Grenzen")
}

func TestVM_NativeCallSchreibeWritesToConfiguredOutput(t *testing.T) {
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CONSTANT, 1)
	c.WriteByte(constChunk(c, bytecode.StringValue("hallo")), 1)
	c.WriteOp(bytecode.OP_CALL, 1)
	c.WriteByte(constChunk(c, bytecode.StringValue("schreibe")), 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	var out bytes.Buffer
	v := New(WithOutput(&out))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "hallo", out.String())
}

func TestVM_NativeCallLeseZeileReadsConfiguredInput(t *testing.T) {
	c := bytecode.NewChunk()
	c.WriteOp(bytecode.OP_CALL, 1)
	c.WriteByte(constChunk(c, bytecode.StringValue("leseZeile")), 1)
	c.WriteOp(bytecode.OP_PRINT, 1)
	c.WriteOp(bytecode.OP_RETURN, 1)

	var out bytes.Buffer
	v := New(WithOutput(&out), WithInput(strings.NewReader("servus\n")))
	require.NoError(t, v.Run(c))
	assert.Equal(t, "servus", out.String())
}

func TestVM_StackOverflowReportsStapelUeberfluss(t *testing.T) {
	c := bytecode.NewChunk()
	idx := constChunk(c, bytecode.IntValue(1))
	for i := 0; i < StackMax+1; i++ {
		c.WriteOp(bytecode.OP_CONSTANT, 1)
		c.WriteByte(idx, 1)
	}
	c.WriteOp(bytecode.OP_RETURN, 1)

	v := New()
	err := v.Run(c)
	require.Error(t, err)
	assert.Equal(t, "Stapel Überfluss!", err.Error())
}
