package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_StringFormatting(t *testing.T) {
	assert.Equal(t, "11", IntValue(11).String())
	assert.Equal(t, "3,14", DoubleValue(3.14).String())
	assert.Equal(t, "wahr", BoolValue(true).String())
	assert.Equal(t, "falsch", BoolValue(false).String())
	assert.Equal(t, "Hallo, Welt", StringValue("Hallo, Welt").String())
	assert.Equal(t, "[1; 2; 3]", IntArrValue([]int32{1, 2, 3}).String())
	assert.Equal(t, "[]", IntArrValue(nil).String())
}

func TestValue_CloneDeepCopiesArrays(t *testing.T) {
	original := IntArrValue([]int32{1, 2, 3})
	clone := original.Clone()
	clone.IntArr()[0] = 99

	assert.Equal(t, int32(1), original.IntArr()[0])
	assert.Equal(t, int32(99), clone.IntArr()[0])
}

func TestZeroArray_IsZeroInitialized(t *testing.T) {
	v := ZeroArray(Int, 5)
	assert.Equal(t, 5, v.Len())
	for _, e := range v.IntArr() {
		assert.Equal(t, int32(0), e)
	}
}

func TestType_ArrayOfAndElemTypeRoundtrip(t *testing.T) {
	arr, ok := Int.ArrayOf()
	assert.True(t, ok)
	assert.Equal(t, IntArr, arr)

	elem, ok := arr.ElemType()
	assert.True(t, ok)
	assert.Equal(t, Int, elem)
}

func TestEqual_MixedNumericTypes(t *testing.T) {
	eq, ok := Equal(IntValue(3), DoubleValue(3.0))
	assert.True(t, ok)
	assert.True(t, eq)
}
