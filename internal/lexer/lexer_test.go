package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/go-ddp/internal/token"
)

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestScanTokens_SimpleDeclaration(t *testing.T) {
	toks, ok := New(`die Zahl x ist 3 plus 4 mal 2.`).ScanTokens()
	require.True(t, ok)
	assert.Equal(t, []token.Kind{
		token.DIE, token.ZAHL, token.IDENTIFIER, token.IST,
		token.INUMBER, token.PLUS, token.INUMBER, token.MAL, token.INUMBER,
		token.DOT, token.END,
	}, kinds(toks))
}

func TestScanTokens_CommaIsDecimalSeparator(t *testing.T) {
	toks, ok := New(`3,14`).ScanTokens()
	require.True(t, ok)
	require.Len(t, toks, 2)
	assert.Equal(t, token.DNUMBER, toks[0].Kind)
	assert.Equal(t, "3,14", toks[0].Lexeme)
}

func TestScanTokens_IndentDepthFourSpacesOrTab(t *testing.T) {
	src := "wenn:\n    x\n\ty"
	toks, ok := New(src).ScanTokens()
	require.True(t, ok)
	var depths []int
	for _, tk := range toks {
		if tk.Kind == token.IDENTIFIER {
			depths = append(depths, tk.Depth)
		}
	}
	require.Len(t, depths, 2)
	assert.Equal(t, 1, depths[0])
	assert.Equal(t, 1, depths[1])
}

func TestScanTokens_GreaterAlsOderFusesToGreaterOrEqual(t *testing.T) {
	toks, ok := New(`größer als, oder`).ScanTokens()
	require.True(t, ok)
	assert.Equal(t, []token.Kind{token.GROESSERODER, token.END}, kinds(toks))
}

func TestScanTokens_LogischNichtFuses(t *testing.T) {
	toks, ok := New(`logisch nicht`).ScanTokens()
	require.True(t, ok)
	assert.Equal(t, []token.Kind{token.LOGISCHNICHT, token.END}, kinds(toks))
}

func TestScanTokens_BetragVonFuses(t *testing.T) {
	toks, ok := New(`Betrag von x`).ScanTokens()
	require.True(t, ok)
	assert.Equal(t, []token.Kind{token.BETRAG, token.IDENTIFIER, token.END}, kinds(toks))
}

func TestScanTokens_AnDerStelleFuses(t *testing.T) {
	toks, ok := New(`an der Stelle`).ScanTokens()
	require.True(t, ok)
	assert.Equal(t, []token.Kind{token.AN, token.END}, kinds(toks))
}

func TestScanTokens_UnterminatedStringIsLexicalError(t *testing.T) {
	_, ok := New(`"Hallo`).ScanTokens()
	assert.False(t, ok)
}

func TestScanTokens_CharacterLiteralMustBeSingleRune(t *testing.T) {
	_, ok := New(`'ab'`).ScanTokens()
	assert.False(t, ok)
}

func TestScanTokens_UmlautIdentifier(t *testing.T) {
	toks, ok := New(`die Zahl Größe ist 1.`).ScanTokens()
	require.True(t, ok)
	assert.Equal(t, token.IDENTIFIER, toks[2].Kind)
	assert.Equal(t, "Größe", toks[2].Lexeme)
}

func TestScanTokens_DebugPrintSigil(t *testing.T) {
	toks, ok := New(`$x.`).ScanTokens()
	require.True(t, ok)
	assert.Equal(t, []token.Kind{token.PRINT, token.IDENTIFIER, token.DOT, token.END}, kinds(toks))
}
