package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/go-ddp/internal/bytecode"
	"github.com/cwbudde/go-ddp/internal/lexer"
	"github.com/cwbudde/go-ddp/internal/vm"
)

// run lexes, compiles, and executes src, returning whatever OP_PRINT wrote.
func run(t *testing.T, src string) (string, bool) {
	t.Helper()
	tokens, ok := lexer.New(src).ScanTokens()
	require.True(t, ok, "scanning must succeed")

	c := New(tokens)
	chunk, ok := c.Compile()
	if !ok {
		return "", false
	}

	var out bytes.Buffer
	machine := vm.New(vm.WithOutput(&out))
	require.NoError(t, machine.Run(chunk))
	return out.String(), true
}

func TestCompile_ArithmeticPrecedence(t *testing.T) {
	out, ok := run(t, `die Zahl x ist 3 plus 4 mal 2. $x.`)
	require.True(t, ok)
	assert.Equal(t, "11", out)
}

func TestCompile_BooleanSugarWahrWenn(t *testing.T) {
	out, ok := run(t, `der Boolean b ist wahr wenn 3 kleiner als 4 ist. $b.`)
	require.True(t, ok)
	assert.Equal(t, "wahr", out)
}

func TestCompile_BooleanSugarFalschWenn(t *testing.T) {
	out, ok := run(t, `der Boolean b ist falsch wenn 3 kleiner als 4 ist. $b.`)
	require.True(t, ok)
	assert.Equal(t, "falsch", out)
}

func TestCompile_ArrayDeclarationAndIndex(t *testing.T) {
	out, ok := run(t, `die Zahlen a sind [1; 2; 3]. $a an der 2 Stelle.`)
	require.True(t, ok)
	assert.Equal(t, "2", out)
}

func TestCompile_IfElse(t *testing.T) {
	out, ok := run(t, `
wenn 1 gleich 2 ist dann:
    $1.
sonst:
    $2.
`)
	require.True(t, ok)
	assert.Equal(t, "2", out)
}

func TestCompile_WhileLoop(t *testing.T) {
	out, ok := run(t, `
die Zahl i ist 0.
solange i kleiner als 3 ist mache:
    $i.
    i ist i plus 1.
`)
	require.True(t, ok)
	assert.Equal(t, "012", out)
}

func TestCompile_ForLoopCountsUpInclusive(t *testing.T) {
	out, ok := run(t, `
für jede Zahl i von 1 bis 3 mache:
    $i.
`)
	require.True(t, ok)
	assert.Equal(t, "123", out)
}

func TestCompile_LocalScopeShadowsGlobal(t *testing.T) {
	out, ok := run(t, `
die Zahl x ist 1.
wenn wahr dann:
    die Zahl x ist 2.
    $x.
$x.
`)
	require.True(t, ok)
	assert.Equal(t, "21", out)
}

func TestCompile_TypeMismatchInVarDeclarationFails(t *testing.T) {
	_, ok := run(t, `die Zahl x ist wahr.`)
	assert.False(t, ok)
}

func TestCompile_SelfReferentialLocalInitializerFails(t *testing.T) {
	tokens, ok := lexer.New(`
wenn wahr dann:
    die Zahl x ist x plus 1.
`).ScanTokens()
	require.True(t, ok)

	c := New(tokens)
	_, ok = c.Compile()
	assert.False(t, ok)
	require.NotEmpty(t, c.Errors())
}

func TestCompile_FunktionDeclarationIsRejected(t *testing.T) {
	tokens, ok := lexer.New(`Funktion foo.`).ScanTokens()
	require.True(t, ok)

	c := New(tokens)
	_, ok = c.Compile()
	assert.False(t, ok)
}

func TestCompile_StringConcatWithPlus(t *testing.T) {
	out, ok := run(t, `die Zeichenkette s ist "a" plus "b". $s.`)
	require.True(t, ok)
	assert.Equal(t, "ab", out)
}

func TestCompile_ExponentIsRightAssociative(t *testing.T) {
	// 2 hoch (2 hoch 3) = 2^8 = 256, not (2^2)^3 = 64
	out, ok := run(t, `$2 hoch 2 hoch 3.`)
	require.True(t, ok)
	assert.Equal(t, "256", out)
}
